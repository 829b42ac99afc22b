package amqp

import (
	"time"

	"github.com/goccy/go-json"
)

// EventKind distinguishes a single-month change from a change to the set of
// months of a user.
type EventKind string

const (
	EventMonthChanged EventKind = "month_changed"
	EventUserChanged  EventKind = "user_changed"
)

// ChangeEvent announces that cached views of a user's data are stale.
// It carries identifiers only; consumers reload whatever they need.
type ChangeEvent struct {
	Kind      EventKind `json:"kind"`
	UserID    string    `json:"userId"`
	MonthID   string    `json:"monthId,omitempty"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMonthChangedEvent(origin, userID, monthID string) *ChangeEvent {
	return &ChangeEvent{
		Kind:      EventMonthChanged,
		UserID:    userID,
		MonthID:   monthID,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
	}
}

func NewUserChangedEvent(origin, userID string) *ChangeEvent {
	return &ChangeEvent{
		Kind:      EventUserChanged,
		UserID:    userID,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
	}
}

func (e *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ChangeEventFromJSON decodes an event and rejects ones without a user or
// with an unknown kind.
func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.UserID == "" {
		return nil, errMissingUser
	}
	switch e.Kind {
	case EventMonthChanged, EventUserChanged:
	default:
		return nil, &unknownKindError{kind: e.Kind}
	}
	return &e, nil
}
