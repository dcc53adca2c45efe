package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	msgmail "github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/erazemk/cargocheck/internal/apperr"
)

// OutboxMailer writes composed mail as .eml files into a directory, where
// the user's mail client or a relay picks them up.
type OutboxMailer struct {
	FS  afero.Fs
	Dir string
	// From is the sender address; may be empty.
	From string
	Now  func() time.Time
}

// Available reports whether an outbox directory is configured.
func (m *OutboxMailer) Available() bool {
	return m != nil && m.FS != nil && m.Dir != ""
}

// Compose writes m as a MIME message.
func (m *OutboxMailer) Compose(ctx context.Context, mail Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}

	msg, err := EncodeMail(mail, m.From, now)
	if err != nil {
		return err
	}

	if err := m.FS.MkdirAll(m.Dir, 0o755); err != nil {
		return storageErr(fmt.Errorf("creating outbox: %w", err))
	}
	name := fmt.Sprintf("%s_%s.eml", now.Format(FullStamp), uuid.New().String()[:8])
	if err := afero.WriteFile(m.FS, filepath.Join(m.Dir, name), msg, 0o644); err != nil {
		return storageErr(fmt.Errorf("writing outbox message: %w", err))
	}
	slog.Info("email queued", "file", name, "attachments", len(mail.Attachments))
	return nil
}

// EncodeMail renders mail as an RFC 5322 message: the body as a text part
// followed by one part per attachment.
func EncodeMail(mail Mail, from string, date time.Time) ([]byte, error) {
	var h msgmail.Header
	h.SetDate(date)
	h.SetSubject(mail.Subject)
	if from != "" {
		addr, err := msgmail.ParseAddress(from)
		if err != nil {
			return nil, fmt.Errorf("parsing sender %q: %w", from, err)
		}
		h.SetAddressList("From", []*msgmail.Address{addr})
	}
	if mail.To != "" {
		addr, err := ParseRecipient(mail.To)
		if err != nil {
			return nil, err
		}
		h.SetAddressList("To", []*msgmail.Address{addr})
	}

	var buf bytes.Buffer
	mw, err := msgmail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("writing mail header: %w", err)
	}

	var th msgmail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	bw, err := mw.CreateSingleInline(th)
	if err != nil {
		return nil, fmt.Errorf("writing mail body: %w", err)
	}
	if _, err := io.WriteString(bw, mail.Body); err != nil {
		return nil, fmt.Errorf("writing mail body: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("writing mail body: %w", err)
	}

	for _, a := range mail.Attachments {
		var ah msgmail.AttachmentHeader
		ah.Set("Content-Type", mimeType(a.Name))
		ah.Set("Content-Transfer-Encoding", "base64")
		ah.SetFilename(a.Name)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("writing attachment %s: %w", a.Name, err)
		}
		if _, err := aw.Write(a.Data); err != nil {
			return nil, fmt.Errorf("writing attachment %s: %w", a.Name, err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("writing attachment %s: %w", a.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finishing mail: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseRecipient parses a single email address, as given for the email sink.
func ParseRecipient(s string) (*msgmail.Address, error) {
	addr, err := msgmail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return nil, apperr.Validation(map[string]string{"recipient": "must be a single email address"})
	}
	return addr, nil
}

func mimeType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
