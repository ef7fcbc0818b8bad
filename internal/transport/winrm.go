package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/masterzen/winrm"

	"guestmap/internal/domain"
)

// WinRMDialer opens WinRM sessions for Windows guests. Commands run
// through PowerShell via the encoded-command wrapper.
type WinRMDialer struct {
	// ConnectTimeout bounds the HTTP transport underneath WinRM
	ConnectTimeout time.Duration
	// CommandTimeout bounds each remote command
	CommandTimeout time.Duration
	// HTTPS switches the endpoint to port 5986 semantics; certificate
	// validation stays off, matching the scan-appliance deployment
	HTTPS bool
}

// NewWinRMDialer creates a WinRM dialer with sensible defaults
func NewWinRMDialer(connectTimeout, commandTimeout time.Duration) *WinRMDialer {
	if connectTimeout == 0 {
		connectTimeout = 15 * time.Second
	}
	if commandTimeout == 0 {
		commandTimeout = 60 * time.Second
	}
	return &WinRMDialer{
		ConnectTimeout: connectTimeout,
		CommandTimeout: commandTimeout,
	}
}

// Dial builds a WinRM client and validates it with a trivial command.
// WinRM authenticates per request, so without the validation a bad
// credential would only surface on the first real probe.
func (d *WinRMDialer) Dial(ctx context.Context, host string, cred domain.Credential) (Session, error) {
	if cred.Username == "" {
		return nil, fmt.Errorf("%w: credential has no username", ErrAuthFailed)
	}

	endpoint := winrm.NewEndpoint(
		host,
		cred.TransportPort(DefaultWinRMPort),
		d.HTTPS,
		true, // insecure: skip certificate verification
		nil, nil, nil,
		d.ConnectTimeout,
	)

	client, err := winrm.NewClient(endpoint, cred.Username, cred.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	session := &winrmSession{client: client, timeout: d.CommandTimeout}

	if _, err := session.Run(ctx, "$PSVersionTable.PSVersion.Major"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	return session, nil
}

// winrmSession runs PowerShell commands against one endpoint
type winrmSession struct {
	client  *winrm.Client
	timeout time.Duration
}

// Run executes a PowerShell command and returns stdout. A command that
// exits non-zero returns its output and a nil error.
func (s *winrmSession) Run(ctx context.Context, command string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stdout, _, _, err := s.client.RunWithContextWithString(runCtx, winrm.Powershell(command), "")
	if err != nil {
		return "", fmt.Errorf("winrm command failed: %w", err)
	}

	return stdout, nil
}

// Close is a no-op; WinRM holds no persistent connection
func (s *winrmSession) Close() error {
	return nil
}
