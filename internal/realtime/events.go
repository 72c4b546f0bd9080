package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/user/trueque/internal/models"
)

// Control signal values the backend pushes on the notification topic.
const (
	tipoDeleted    = "ELIMINADA"
	tipoRefreshAll = "ACTUALIZAR_TODO"
)

type EventKind int

const (
	// EventNotification carries a new notification record.
	EventNotification EventKind = iota
	// EventNotificationDeleted asks for removal of one local entry.
	EventNotificationDeleted
	// EventRefreshAll asks for a full re-fetch of the notification list.
	EventRefreshAll
)

// Event is a classified inbound frame from the notification topic.
type Event struct {
	Kind         EventKind
	Notification *models.Notification // set when Kind == EventNotification
	DeletedID    int64                // set when Kind == EventNotificationDeleted
}

// DecodeNotificationEvent classifies a raw frame body, trying variants in
// fixed priority order: control signal, then notification record. There is
// no shared schema with the backend, so anything that matches neither
// shape is an error and the caller drops the frame.
func DecodeNotificationEvent(raw []byte) (Event, error) {
	var probe struct {
		Tipo   *string         `json:"tipo"`
		ID     json.RawMessage `json:"id"`
		Titulo *string         `json:"titulo"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&probe); err != nil {
		return Event{}, fmt.Errorf("unrecognized payload: %w", err)
	}

	switch {
	case probe.Tipo != nil && *probe.Tipo == tipoDeleted:
		id, err := numericID(probe.ID)
		if err != nil {
			return Event{}, fmt.Errorf("deletion signal without numeric id: %w", err)
		}
		return Event{Kind: EventNotificationDeleted, DeletedID: id}, nil

	case probe.Tipo != nil && *probe.Tipo == tipoRefreshAll:
		return Event{Kind: EventRefreshAll}, nil

	case hasToken(probe.ID) && probe.Titulo != nil:
		var n models.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return Event{}, fmt.Errorf("notification record does not decode: %w", err)
		}
		return Event{Kind: EventNotification, Notification: &n}, nil
	}

	return Event{}, errors.New("unrecognized notification payload")
}

func hasToken(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// numericID accepts only an unquoted JSON number token. The backend sends
// ids as numbers; a quoted "42" would decode into json.Number without
// error, so the raw token is checked first.
func numericID(raw json.RawMessage) (int64, error) {
	if !hasToken(raw) {
		return 0, errors.New("id missing")
	}
	if raw[0] == '"' {
		return 0, errors.New("id is a string")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n.Int64()
}

// ApplyToList applies the event to a local notification list. The second
// return is true when the caller must re-fetch the whole list from the
// backend instead.
func (ev Event) ApplyToList(list []models.Notification) ([]models.Notification, bool) {
	switch ev.Kind {
	case EventNotification:
		return append(list, *ev.Notification), false
	case EventNotificationDeleted:
		out := make([]models.Notification, 0, len(list))
		for _, n := range list {
			if n.ID != ev.DeletedID {
				out = append(out, n)
			}
		}
		return out, false
	case EventRefreshAll:
		return list, true
	}
	return list, false
}

// DecodeChatMessage parses a chat topic frame body.
func DecodeChatMessage(raw []byte) (models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.ChatMessage{}, fmt.Errorf("chat payload does not decode: %w", err)
	}
	return msg, nil
}
