package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Config holds the IMAP connection parameters.
type Config struct {
	Server   string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// conn is the subset of the go-imap client used by IMAPSource. Narrowed so
// mutation ordering can be exercised against a scripted fake.
type conn interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	UidCopy(seqset *imap.SeqSet, dest string) error
	Create(name string) error
	Expunge(ch chan uint32) error
	Logout() error
}

// IMAPSource implements Source against a remote IMAP server. Every operation
// dials, logs in, and logs out again; the connection is never shared across
// concurrent operations.
type IMAPSource struct {
	cfg  Config
	dial func() (conn, error)
}

// NewIMAPSource returns a Source for the given server.
func NewIMAPSource(cfg Config) *IMAPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &IMAPSource{cfg: cfg}
	s.dial = s.dialTLS
	return s
}

// dialTLS establishes a secure connection and logs in with the configured
// credentials.
func (s *IMAPSource) dialTLS() (conn, error) {
	address := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)

	tlsConfig := &tls.Config{
		ServerName: s.cfg.Server,
	}
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}

	c, err := client.DialWithDialerTLS(dialer, address, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	c.Timeout = s.cfg.Timeout

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return c, nil
}

// withFolder runs fn against a fresh connection with folder selected, and
// always logs out afterwards.
func (s *IMAPSource) withFolder(ctx context.Context, folder string, readOnly bool, fn func(c conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := s.dial()
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Logout(); err != nil {
			slog.Debug("IMAP logout failed", "error", err)
		}
	}()

	if _, err := c.Select(folder, readOnly); err != nil {
		return fmt.Errorf("failed to select %s: %w", folder, err)
	}

	return fn(c)
}

func (s *IMAPSource) ListUIDs(ctx context.Context, folder string) ([]uint32, error) {
	var uids []uint32
	err := s.withFolder(ctx, folder, true, func(c conn) error {
		criteria := imap.NewSearchCriteria()
		criteria.Uid = new(imap.SeqSet)
		criteria.Uid.AddRange(1, 0) // 1:*

		found, err := c.UidSearch(criteria)
		if err != nil {
			return fmt.Errorf("failed to search %s: %w", folder, err)
		}
		uids = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (s *IMAPSource) Fetch(ctx context.Context, folder string, uid uint32) (*Message, error) {
	var msg *Message
	err := s.withFolder(ctx, folder, true, func(c conn) error {
		seqset := new(imap.SeqSet)
		seqset.AddNum(uid)

		section := &imap.BodySectionName{Peek: true}
		items := []imap.FetchItem{
			imap.FetchEnvelope,
			imap.FetchUid,
			section.FetchItem(),
		}

		ch := make(chan *imap.Message, 1)
		if err := c.UidFetch(seqset, items, ch); err != nil {
			return fmt.Errorf("failed to fetch uid %d in %s: %w", uid, folder, err)
		}

		raw := <-ch
		if raw == nil {
			return ErrNotFound
		}

		decoded, err := decodeMessage(raw, section)
		if err != nil {
			return fmt.Errorf("failed to decode uid %d in %s: %w", uid, folder, err)
		}
		decoded.UID = uid
		decoded.Folder = folder
		msg = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *IMAPSource) Delete(ctx context.Context, folder string, uid uint32) error {
	return s.withFolder(ctx, folder, false, func(c conn) error {
		if err := requireUID(c, uid); err != nil {
			return err
		}
		if err := markDeleted(c, uid); err != nil {
			return err
		}
		if err := c.Expunge(nil); err != nil {
			return fmt.Errorf("failed to expunge %s: %w", folder, err)
		}
		return nil
	})
}

func (s *IMAPSource) Move(ctx context.Context, folder string, uid uint32, label string) error {
	return s.withFolder(ctx, folder, false, func(c conn) error {
		if err := requireUID(c, uid); err != nil {
			return err
		}

		// Most servers answer NO when the mailbox already exists; the copy
		// below surfaces the failure if it is genuinely missing.
		if err := c.Create(label); err != nil {
			slog.Debug("IMAP create returned error", "label", label, "error", err)
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(uid)
		if err := c.UidCopy(seqset, label); err != nil {
			return fmt.Errorf("failed to copy uid %d to %s: %w", uid, label, err)
		}

		// The original is only removed once the copy has succeeded.
		if err := markDeleted(c, uid); err != nil {
			return err
		}
		if err := c.Expunge(nil); err != nil {
			return fmt.Errorf("failed to expunge %s: %w", folder, err)
		}
		return nil
	})
}

// requireUID verifies the message still exists in the selected folder.
func requireUID(c conn, uid uint32) error {
	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddNum(uid)

	found, err := c.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("failed to search for uid %d: %w", uid, err)
	}
	if len(found) == 0 {
		return ErrNotFound
	}
	return nil
}

func markDeleted(c conn, uid uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true) // silent update
	flags := []interface{}{imap.DeletedFlag}

	if err := c.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark uid %d \\Deleted: %w", uid, err)
	}
	return nil
}
