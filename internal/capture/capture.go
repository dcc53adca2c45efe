// Package capture models how a photo source is chosen for an inspection and
// turns raw image bytes into photo attachments.
//
// Source selection is a small state machine:
//
//	ChooseSource -> TryExternalApp -> {Success | Fallback} -> Capture | Gallery
//
// Every transition is a pure function of the current state and an event.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/cargocheck/internal/imaging"
	"github.com/erazemk/cargocheck/internal/model"
)

// GalleryLimit is the maximum number of photos added by one gallery pick.
const GalleryLimit = 5

// State is a step of source selection.
type State string

// States.
const (
	StateChooseSource   State = "choose_source"
	StateTryExternalApp State = "try_external_app"
	StateFallback       State = "fallback"
	StateCapture        State = "capture"
	StateGallery        State = "gallery"
	StateDone           State = "done"
	StateAborted        State = "aborted"
)

// Source is what the user picked.
type Source string

// Sources.
const (
	SourceExternalApp Source = "external_app"
	SourceCamera      Source = "camera"
	SourceGallery     Source = "gallery"
)

// EventKind identifies an Event.
type EventKind string

// Event kinds.
const (
	EventChoose      EventKind = "choose"
	EventOpened      EventKind = "opened"
	EventUnavailable EventKind = "unavailable"
	EventCompleted   EventKind = "completed"
	EventCancel      EventKind = "cancel"
)

// Event drives a transition. Source and App are only read for EventChoose.
type Event struct {
	Kind   EventKind
	Source Source
	App    string
}

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid capture transition")

// Machine is the source-selection state. The zero value is not ready; use Start.
type Machine struct {
	State State
	// App is the external camera app being tried, if any.
	App string
	// FellBack is set once the external app could not be opened.
	FellBack bool
}

// Start returns a machine waiting for the user to choose a source.
func Start() Machine {
	return Machine{State: StateChooseSource}
}

// Next returns the machine after ev, or ErrInvalidTransition.
func (m Machine) Next(ev Event) (Machine, error) {
	if ev.Kind == EventCancel && !m.Terminal() {
		m.State = StateAborted
		return m, nil
	}

	switch m.State {
	case StateChooseSource:
		if ev.Kind != EventChoose {
			break
		}
		switch ev.Source {
		case SourceExternalApp:
			if ev.App == "" {
				return m, fmt.Errorf("%w: external app not named", ErrInvalidTransition)
			}
			m.State = StateTryExternalApp
			m.App = ev.App
			return m, nil
		case SourceCamera:
			m.State = StateCapture
			return m, nil
		case SourceGallery:
			m.State = StateGallery
			return m, nil
		}

	case StateTryExternalApp:
		switch ev.Kind {
		case EventOpened:
			// The external app keeps the photo in the device gallery.
			m.State = StateGallery
			return m, nil
		case EventUnavailable:
			m.State = StateFallback
			m.FellBack = true
			return m, nil
		}

	case StateFallback:
		if ev.Kind != EventChoose {
			break
		}
		switch ev.Source {
		case SourceCamera:
			m.State = StateCapture
			return m, nil
		case SourceGallery:
			m.State = StateGallery
			return m, nil
		}

	case StateCapture, StateGallery:
		if ev.Kind == EventCompleted {
			m.State = StateDone
			return m, nil
		}
	}

	return m, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev.Kind, m.State)
}

// Terminal reports whether no further events are accepted.
func (m Machine) Terminal() bool {
	return m.State == StateDone || m.State == StateAborted
}

// NewPhoto builds an attachment from raw image bytes taken at the given time.
// A photo that cannot be decoded is kept without a payload and is skipped
// on export; it is never an error.
func NewPhoto(data []byte, at time.Time) model.PhotoAttachment {
	photo := model.PhotoAttachment{
		ID:        model.NewPhotoID(at),
		Timestamp: at,
	}
	if len(data) == 0 {
		slog.Warn("photo capture returned no data", "photo_id", photo.ID)
		return photo
	}

	res, err := imaging.Normalize(bytes.NewReader(data))
	if err != nil {
		slog.Warn("photo capture unreadable", "photo_id", photo.ID, "error", err)
		return photo
	}
	payload := res.Base64()
	photo.Base64 = &payload
	photo.Width = res.Width
	photo.Height = res.Height
	return photo
}

// Batch builds attachments for a gallery pick, keeping at most GalleryLimit
// images. The second result is the number of images dropped by the limit.
func Batch(images [][]byte, at time.Time) ([]model.PhotoAttachment, int) {
	dropped := 0
	if len(images) > GalleryLimit {
		dropped = len(images) - GalleryLimit
		images = images[:GalleryLimit]
	}
	photos := make([]model.PhotoAttachment, 0, len(images))
	for _, data := range images {
		photos = append(photos, NewPhoto(data, at))
	}
	return photos, dropped
}
