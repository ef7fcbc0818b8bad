// Package transport executes read-only commands on remote guests over
// two protocol families: an interactive SSH shell transport for Linux
// and a WinRM remote-scripting transport for Windows.
//
// A Dialer validates connectivity and authentication up front; the
// Session it returns treats a command's non-zero exit as "no output",
// never as an error, so probe suites can interpret absence explicitly.
package transport

import (
	"context"
	"errors"

	"guestmap/internal/domain"
)

// Transport default ports
const (
	DefaultSSHPort   = 22
	DefaultWinRMPort = 5985
)

// ErrConnectFailed indicates the remote endpoint could not be reached
var ErrConnectFailed = errors.New("transport: connect failed")

// ErrAuthFailed indicates the endpoint was reached but rejected the
// credential
var ErrAuthFailed = errors.New("transport: authentication failed")

// Session is an authenticated connection to one guest. Run executes a
// single command and returns its captured output. A command that runs
// but exits non-zero returns whatever output it produced and a nil
// error; only transport-level failures return an error.
type Session interface {
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens an authenticated Session to a guest address using one
// credential. Dial fails with ErrConnectFailed or ErrAuthFailed (both
// wrapped) so the credential trial loop can move to the next entry.
type Dialer interface {
	Dial(ctx context.Context, host string, cred domain.Credential) (Session, error)
}
