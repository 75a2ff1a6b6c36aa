package nag

import (
	"log"

	"github.com/borgmon/pester/pkg/models"
	"github.com/borgmon/pester/pkg/notify"
)

// ActionBridge routes user interactions with delivered alerts back into
// the campaign manager. Both the dedicated stop action and a plain tap
// acknowledge the occurrence and persist the stop; a tap additionally
// opens the event through the caller-supplied navigation callback.
type ActionBridge struct {
	manager  *Manager
	notifier notify.Notifier
	onOpen   func(eventID, date string)
}

func NewActionBridge(manager *Manager, notifier notify.Notifier, onOpen func(eventID, date string)) *ActionBridge {
	return &ActionBridge{
		manager:  manager,
		notifier: notifier,
		onOpen:   onOpen,
	}
}

// Bind registers the bridge as the notifier's response handler.
func (b *ActionBridge) Bind() {
	b.notifier.OnResponse(b.Handle)
}

// Handle processes one user response from the delivery adapter.
func (b *ActionBridge) Handle(actionID string, data map[string]string) {
	eventID := data[notify.DataEventID]
	date := data[notify.DataDate]

	key := data[notify.DataOccurrenceKey]
	if key == "" && eventID != "" {
		key = models.OccurrenceKey(eventID, date)
	}
	if key == "" {
		log.Printf("Notification response %q carried no occurrence data, ignoring", actionID)
		return
	}

	b.manager.StopCampaign(key, true)

	// A campaign may have stacked several alerts by now.
	b.notifier.DismissDelivered()

	if actionID == notify.ActionDefault && b.onOpen != nil {
		b.onOpen(eventID, date)
	}
}
