package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/erazemk/cargocheck/internal/apperr"
	"github.com/erazemk/cargocheck/internal/model"
)

// Sharer hands an output root to the device share capability.
type Sharer interface {
	Available() bool
	// Share returns a location the user can open to retrieve the export.
	Share(ctx context.Context, root, runID string) (string, error)
}

// Mailer composes an email.
type Mailer interface {
	Available() bool
	Compose(ctx context.Context, m Mail) error
}

// Mail is a composed message.
type Mail struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Attachment is a file attached to a Mail.
type Attachment struct {
	Name string
	Data []byte
}

// LinkOpener opens URLs in other apps.
type LinkOpener interface {
	CanOpen(rawURL string) bool
	Open(ctx context.Context, rawURL string) error
}

// MessagingURL is the link the messaging sink opens, with the digest as text.
const MessagingURL = "whatsapp://send"

func (o *Orchestrator) dispatch(ctx context.Context, records []model.InspectionRecord, opts model.ExportOptions, w *writer, res *Result) error {
	switch opts.Sink {
	case model.SinkDevice:
		return o.dispatchDevice(ctx, w, res)
	case model.SinkEmail:
		return o.dispatchEmail(ctx, records, opts, w, res)
	case model.SinkMessaging:
		return o.dispatchMessaging(ctx, records, opts, res)
	case model.SinkCloud:
		if err := o.dispatchDevice(ctx, w, res); err != nil {
			return err
		}
		res.Instructions = CloudInstructions(opts.Provider, path.Base(w.root))
		res.Run.Message = res.Instructions
		return nil
	default:
		return apperr.New(apperr.CodeValidation, fmt.Sprintf("unknown export sink %q", opts.Sink))
	}
}

func (o *Orchestrator) dispatchDevice(ctx context.Context, w *writer, res *Result) error {
	if o.sharer == nil || !o.sharer.Available() {
		res.Run.Message = "Export saved to " + w.root
		return nil
	}
	link, err := o.sharer.Share(ctx, w.root, res.Run.ID)
	if err != nil {
		return fmt.Errorf("sharing export: %w", err)
	}
	res.ShareURL = link
	res.Run.Message = "Export shared: " + link
	return nil
}

func (o *Orchestrator) dispatchEmail(ctx context.Context, records []model.InspectionRecord, opts model.ExportOptions, w *writer, res *Result) error {
	if o.mailer == nil || !o.mailer.Available() {
		return apperr.New(apperr.CodeAppUnavailable, "no mail composer is configured. Save the export to the device and send it manually.")
	}

	mail := Mail{
		To:      opts.Recipient,
		Subject: fmt.Sprintf("Cargo Inspection Report - %d inspection(s)", len(records)),
		Body:    o.renderer.Summary(records, opts),
	}

	attachments, err := stageAttachments(o.fs, w, o.attachmentLimit)
	if err == nil {
		mail.Attachments = attachments
		err = o.mailer.Compose(ctx, mail)
		if err == nil {
			res.Run.Message = fmt.Sprintf("Email composed with %d attachment(s)", len(attachments))
			return nil
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	slog.Warn("email attachments failed, sending body only", "run_id", res.Run.ID, "error", err)
	mail.Attachments = nil
	if err := o.mailer.Compose(ctx, mail); err != nil {
		return fmt.Errorf("composing email: %w", err)
	}
	res.BodyOnly = true
	res.Run.Message = "Email composed without attachments"
	return nil
}

// stageAttachments reads up to limit individual reports back from disk.
func stageAttachments(fs afero.Fs, w *writer, limit int) ([]Attachment, error) {
	reports := w.reports
	if len(reports) > limit {
		reports = reports[:limit]
	}
	out := make([]Attachment, 0, len(reports))
	for _, rel := range reports {
		data, err := afero.ReadFile(fs, w.abs(rel))
		if err != nil {
			return nil, fmt.Errorf("staging attachment %s: %w", rel, err)
		}
		out = append(out, Attachment{Name: path.Base(rel), Data: data})
	}
	return out, nil
}

func (o *Orchestrator) dispatchMessaging(ctx context.Context, records []model.InspectionRecord, opts model.ExportOptions, res *Result) error {
	link := MessageLink(opts.Recipient, o.renderer.Digest(records))
	if o.opener == nil || !o.opener.CanOpen(link) {
		return apperr.New(apperr.CodeAppUnavailable, "the messaging app is not available. Use email or save the export to the device instead.")
	}
	if err := o.opener.Open(ctx, link); err != nil {
		return apperr.Wrap(apperr.CodeAppUnavailable, "opening the messaging app failed", err)
	}
	res.MessageURL = link
	res.Run.Message = "Digest handed to the messaging app"
	return nil
}

// MessageLink builds the messaging URL carrying text, optionally addressed
// to a phone number.
func MessageLink(phone, text string) string {
	q := url.Values{}
	if phone = strings.TrimSpace(phone); phone != "" {
		q.Set("phone", phone)
	}
	q.Set("text", text)
	return MessagingURL + "?" + q.Encode()
}

// CloudInstructions returns the manual upload steps for a cloud provider.
func CloudInstructions(provider, folder string) string {
	if strings.TrimSpace(provider) == "" {
		provider = "your cloud storage"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "To upload this export to %s:\n", provider)
	fmt.Fprintf(&b, "1. Open the %s app or website.\n", provider)
	fmt.Fprintf(&b, "2. Choose upload and select the folder %q.\n", folder)
	b.WriteString("3. Wait for the upload to finish before deleting local files.\n")
	return b.String()
}
