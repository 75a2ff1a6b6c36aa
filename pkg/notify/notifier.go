package notify

import "time"

// Action identifiers delivered back through OnResponse.
const (
	// ActionDefault is the plain tap/open on a delivered alert.
	ActionDefault = "default"

	// ActionStopReminding is the dedicated "stop reminding" action a nag
	// alert carries alongside the default tap.
	ActionStopReminding = "stop-reminding"

	// CategoryNag is the action category attached to nag alerts.
	CategoryNag = "nag-reminder"
)

// Keys of the occurrence-scoped data payload attached to every alert so
// the response handler can resolve back to an occurrence.
const (
	DataEventID       = "eventId"
	DataDate          = "date"
	DataOccurrenceKey = "occurrenceKey"
)

// EventIdentifier is the stable notification identifier for an event's
// single-shot reminder.
func EventIdentifier(eventID string) string {
	return "event-" + eventID
}

// Action is one user-selectable action on a delivered alert.
type Action struct {
	ID          string
	Title       string
	Destructive bool
}

// Notification is the delivery-agnostic alert content.
type Notification struct {
	Identifier string
	Title      string
	Body       string
	CategoryID string
	Data       map[string]string
}

// ResponseHandler receives user interactions with delivered alerts.
type ResponseHandler func(actionID string, data map[string]string)

// Notifier is the delivery capability the reminder core consumes. The
// desktop implementation lives in this package; tests substitute fakes.
type Notifier interface {
	// Available reports whether the platform granted alert delivery.
	// When false every other call is a silent no-op.
	Available() bool

	// ScheduleAt registers a one-shot future delivery, replacing any
	// pending delivery with the same identifier.
	ScheduleAt(n Notification, at time.Time) (string, error)

	// FireNow delivers an alert immediately (used by nag re-fires).
	FireNow(n Notification) (string, error)

	// Cancel drops a pending delivery. Unknown identifiers are ignored.
	Cancel(identifier string)

	CancelAll()

	// ListScheduled returns the identifiers of pending deliveries.
	ListScheduled() []string

	// DismissDelivered removes every currently-visible alert, since a
	// nag campaign may have produced several stacked alerts.
	DismissDelivered()

	// RegisterActionCategory declares the actions alerts of a category
	// carry. Registering the same category twice is a no-op.
	RegisterActionCategory(categoryID string, actions []Action)

	// OnResponse sets the handler for user interactions.
	OnResponse(h ResponseHandler)
}
