package main

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/borgmon/pester/pkg/notify"
)

// NagWindow is the desktop surface for a delivered nag alert. System
// notifications carry no action buttons, so the stop and open actions
// live here. One window exists per occurrence; re-fires for the same
// occurrence just re-raise it instead of stacking new windows.
type NagWindow struct {
	window   fyne.Window
	notifier *notify.Desktop
	data     map[string]string
}

// nagWindows tracks the visible windows so DismissDelivered can close
// them all at once.
var (
	nagWindowsMu sync.Mutex
	nagWindows   = make(map[string]*NagWindow)
)

// ShowNagAlert presents (or re-raises) the alert window for a delivery.
func ShowNagAlert(app fyne.App, notifier *notify.Desktop, n notify.Notification, holdTime time.Duration) {
	key := n.Data[notify.DataOccurrenceKey]
	if key == "" {
		key = n.Identifier
	}

	nagWindowsMu.Lock()
	existing := nagWindows[key]
	nagWindowsMu.Unlock()

	if existing != nil {
		fyne.Do(func() {
			existing.window.RequestFocus()
			existing.window.Show()
		})
		return
	}

	nw := &NagWindow{notifier: notifier, data: n.Data}

	fyne.Do(func() {
		nw.window = app.NewWindow(n.Title)
		nw.buildUI(n, holdTime)
		nw.window.SetOnClosed(func() {
			nagWindowsMu.Lock()
			delete(nagWindows, key)
			nagWindowsMu.Unlock()
		})
		nw.window.Show()
	})

	nagWindowsMu.Lock()
	nagWindows[key] = nw
	nagWindowsMu.Unlock()
}

// DismissNagAlerts closes every visible alert window. Wired to the
// notifier's dismiss hook.
func DismissNagAlerts() {
	nagWindowsMu.Lock()
	windows := make([]*NagWindow, 0, len(nagWindows))
	for _, nw := range nagWindows {
		windows = append(windows, nw)
	}
	nagWindowsMu.Unlock()

	for _, nw := range windows {
		w := nw.window
		fyne.Do(func() {
			w.Close()
		})
	}
}

func (nw *NagWindow) buildUI(n notify.Notification, holdTime time.Duration) {
	title := canvas.NewText(n.Title, theme.ForegroundColor())
	title.TextSize = 24
	title.Alignment = fyne.TextAlignCenter

	body := widget.NewLabel(n.Body)
	body.Wrapping = fyne.TextWrapWord
	body.Alignment = fyne.TextAlignCenter

	openButton := widget.NewButton("Open Event", func() {
		nw.notifier.Respond(notify.ActionDefault, nw.data)
	})
	openButton.Importance = widget.HighImportance

	content := container.NewVBox(
		container.NewPadded(title),
		body,
		widget.NewSeparator(),
		container.NewCenter(openButton),
	)

	// Render the category's registered actions. A destructive action
	// kills all future alerts for this occurrence, so it takes a
	// deliberate hold rather than a click.
	for _, action := range nw.notifier.CategoryActions(n.CategoryID) {
		actionID := action.ID
		if action.Destructive {
			content.Add(container.NewCenter(
				NewHoldButton(action.Title+" (hold)", holdTime, func() {
					nw.notifier.Respond(actionID, nw.data)
				})))
			continue
		}
		content.Add(container.NewCenter(widget.NewButton(action.Title, func() {
			nw.notifier.Respond(actionID, nw.data)
		})))
	}

	nw.window.SetContent(container.NewPadded(content))
}
