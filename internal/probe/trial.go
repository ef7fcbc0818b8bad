package probe

import (
	"context"
	"fmt"
	"log"

	"guestmap/internal/domain"
	"guestmap/internal/transport"
)

// TryCredentials runs the full probe suite against host, attempting
// each credential in order until one produces a complete inventory.
//
// Each attempt is all-or-nothing: any failure (connect, auth, or a
// transport error mid-suite) discards the attempt's partial output and
// moves to the next credential. The first success wins; when every
// credential fails the last failure is returned.
func TryCredentials(ctx context.Context, dialer transport.Dialer, host string, creds []domain.Credential, suite Suite) (*Inventory, error) {
	if len(creds) == 0 {
		return nil, fmt.Errorf("no credentials to try for %s", host)
	}

	var lastErr error
	for i, cred := range creds {
		log.Printf("Trying credential %d/%d (%s) on %s", i+1, len(creds), cred.Username, host)

		inv, err := tryOne(ctx, dialer, host, cred, suite)
		if err != nil {
			log.Printf("Credential %d failed for %s: %v", i+1, host, err)
			lastErr = err
			continue
		}
		return inv, nil
	}

	return nil, fmt.Errorf("all %d credentials failed for %s: %w", len(creds), host, lastErr)
}

// tryOne performs a single all-or-nothing probe attempt
func tryOne(ctx context.Context, dialer transport.Dialer, host string, cred domain.Credential, suite Suite) (*Inventory, error) {
	session, err := dialer.Dial(ctx, host, cred)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return suite.Discover(ctx, session)
}
