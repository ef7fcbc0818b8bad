package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"guestmap/internal/domain"
)

// SSHDialer opens SSH sessions for Linux guests.
// Supports both key-based and password authentication.
type SSHDialer struct {
	// ConnectTimeout bounds TCP dial and SSH handshake
	ConnectTimeout time.Duration
	// CommandTimeout bounds each command executed on the session
	CommandTimeout time.Duration
}

// NewSSHDialer creates an SSH dialer with sensible defaults
func NewSSHDialer(connectTimeout, commandTimeout time.Duration) *SSHDialer {
	if connectTimeout == 0 {
		connectTimeout = 10 * time.Second
	}
	if commandTimeout == 0 {
		commandTimeout = 30 * time.Second
	}
	return &SSHDialer{
		ConnectTimeout: connectTimeout,
		CommandTimeout: commandTimeout,
	}
}

// Dial connects and authenticates to host with the given credential
func (d *SSHDialer) Dial(ctx context.Context, host string, cred domain.Credential) (Session, error) {
	config, err := buildClientConfig(cred, d.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	addr := fmt.Sprintf("%s:%d", host, cred.TransportPort(DefaultSSHPort))

	dialer := &net.Dialer{Timeout: d.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		// Handshake failures after a successful TCP dial are almost
		// always credential rejections
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	return &sshSession{
		client:  ssh.NewClient(sshConn, chans, reqs),
		timeout: d.CommandTimeout,
		cred:    cred,
	}, nil
}

// buildClientConfig creates an SSH client config from a credential
func buildClientConfig(cred domain.Credential, timeout time.Duration) (*ssh.ClientConfig, error) {
	if cred.Username == "" {
		return nil, fmt.Errorf("credential has no username")
	}

	var auth []ssh.AuthMethod
	if cred.PrivateKey != "" {
		var signer ssh.Signer
		var err error
		if cred.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(cred.PrivateKey), []byte(cred.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(cred.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else {
		auth = append(auth, ssh.Password(cred.Password))
	}

	return &ssh.ClientConfig{
		User:            cred.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}, nil
}

// sshSession runs commands on an established SSH connection
type sshSession struct {
	client  *ssh.Client
	timeout time.Duration
	cred    domain.Credential
}

// Run executes a command and returns combined output. Commands are
// elevated with sudo when the credential asks for it.
func (s *sshSession) Run(ctx context.Context, command string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	command = SudoWrap(command, s.cred)

	done := make(chan error, 1)
	var output []byte

	go func() {
		var runErr error
		output, runErr = session.CombinedOutput(command)
		done <- runErr
	}()

	select {
	case err := <-done:
		if err != nil {
			if _, ok := err.(*ssh.ExitError); ok {
				// Command ran but exited non-zero (docker ps without
				// docker, grep with no match). The output still counts.
				return string(output), nil
			}
			return "", fmt.Errorf("command failed: %w", err)
		}
		return string(output), nil
	case <-time.After(s.timeout):
		session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command timeout after %s", s.timeout)
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
}

// Close tears down the SSH connection
func (s *sshSession) Close() error {
	return s.client.Close()
}

// SudoWrap elevates a command with non-interactive sudo, falling back
// to the bare command when sudo is unavailable. Root needs no wrap.
func SudoWrap(command string, cred domain.Credential) string {
	if !cred.UseSudo || cred.Username == "root" {
		return command
	}
	return fmt.Sprintf("sudo -n %s 2>/dev/null || %s", command, command)
}
