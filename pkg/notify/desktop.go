package notify

import (
	"log"
	"sort"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"github.com/google/uuid"
)

// Desktop delivers alerts through fyne system notifications. Future
// deliveries are in-process timers; the host app additionally presents
// delivered nag alerts in its own window, driven by the OnDeliver hook,
// because system notifications carry no action buttons.
type Desktop struct {
	app fyne.App

	mu         sync.Mutex
	pending    map[string]*pendingDelivery
	categories map[string][]Action
	handler    ResponseHandler

	// onDeliver, if set, is called after each delivery so the host app
	// can present the alert surface (window, chime).
	onDeliver func(Notification)

	// onDismiss, if set, is called by DismissDelivered so the host app
	// can tear down visible alert surfaces.
	onDismiss func()
}

type pendingDelivery struct {
	timer        *time.Timer
	notification Notification
}

func NewDesktop(app fyne.App) *Desktop {
	return &Desktop{
		app:        app,
		pending:    make(map[string]*pendingDelivery),
		categories: make(map[string][]Action),
	}
}

// SetOnDeliver registers the host app's alert-surface hook.
func (d *Desktop) SetOnDeliver(f func(Notification)) {
	d.mu.Lock()
	d.onDeliver = f
	d.mu.Unlock()
}

// SetOnDismiss registers the host app's dismiss hook.
func (d *Desktop) SetOnDismiss(f func()) {
	d.mu.Lock()
	d.onDismiss = f
	d.mu.Unlock()
}

func (d *Desktop) Available() bool {
	return d.app != nil
}

func (d *Desktop) ScheduleAt(n Notification, at time.Time) (string, error) {
	if !d.Available() {
		return "", nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Replace any pending delivery with the same identifier.
	if prev, ok := d.pending[n.Identifier]; ok {
		prev.timer.Stop()
		delete(d.pending, n.Identifier)
	}

	identifier := n.Identifier
	timer := time.AfterFunc(time.Until(at), func() {
		d.mu.Lock()
		delete(d.pending, identifier)
		d.mu.Unlock()

		if _, err := d.FireNow(n); err != nil {
			log.Printf("Scheduled notification %s failed to fire: %v", identifier, err)
		}
	})

	d.pending[identifier] = &pendingDelivery{timer: timer, notification: n}
	return uuid.New().String(), nil
}

func (d *Desktop) FireNow(n Notification) (string, error) {
	if !d.Available() {
		return "", nil
	}

	d.app.SendNotification(fyne.NewNotification(n.Title, n.Body))

	d.mu.Lock()
	deliver := d.onDeliver
	d.mu.Unlock()
	if deliver != nil {
		deliver(n)
	}

	return uuid.New().String(), nil
}

func (d *Desktop) Cancel(identifier string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[identifier]; ok {
		p.timer.Stop()
		delete(d.pending, identifier)
	}
}

func (d *Desktop) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for identifier, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, identifier)
	}
}

func (d *Desktop) ListScheduled() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	identifiers := make([]string, 0, len(d.pending))
	for identifier := range d.pending {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)
	return identifiers
}

func (d *Desktop) DismissDelivered() {
	d.mu.Lock()
	dismiss := d.onDismiss
	d.mu.Unlock()
	if dismiss != nil {
		dismiss()
	}
}

func (d *Desktop) RegisterActionCategory(categoryID string, actions []Action) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.categories[categoryID]; ok {
		return
	}
	d.categories[categoryID] = actions
}

// CategoryActions returns the registered actions for a category, used by
// the alert window to render its buttons.
func (d *Desktop) CategoryActions(categoryID string) []Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.categories[categoryID]
}

func (d *Desktop) OnResponse(h ResponseHandler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

// Respond is invoked by the alert window when the user taps an action.
func (d *Desktop) Respond(actionID string, data map[string]string) {
	d.mu.Lock()
	handler := d.handler
	d.mu.Unlock()

	if handler == nil {
		log.Printf("Notification response %q dropped: no handler registered", actionID)
		return
	}
	handler(actionID, data)
}
