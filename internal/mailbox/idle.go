package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-imap/client"
	idle "github.com/emersion/go-imap-idle"
)

// WatchUpdates holds an IDLE connection on folder and invokes nudge whenever
// the server reports mailbox activity. It returns when the connection drops
// or ctx is cancelled; the caller owns reconnection.
func (s *IMAPSource) WatchUpdates(ctx context.Context, folder string, nudge func()) error {
	address := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}

	c, err := client.DialWithDialerTLS(dialer, address, &tls.Config{ServerName: s.cfg.Server})
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			slog.Debug("IMAP logout failed", "error", err)
		}
	}()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	if _, err := c.Select(folder, true); err != nil {
		return fmt.Errorf("failed to select %s: %w", folder, err)
	}

	// Buffered so the IDLE goroutine can flush final updates on teardown.
	updates := make(chan client.Update, 64)
	c.Updates = updates

	idleClient := idle.NewClient(c)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- idleClient.IdleWithFallback(stop, 0)
	}()

	slog.Info("Watching mailbox for updates", "folder", folder)

	for {
		select {
		case <-ctx.Done():
			close(stop)
			<-done
			return nil
		case err := <-done:
			return fmt.Errorf("IDLE terminated: %w", err)
		case update := <-updates:
			if _, ok := update.(*client.MailboxUpdate); ok {
				slog.Debug("Mailbox update received", "folder", folder)
				nudge()
			}
		}
	}
}
