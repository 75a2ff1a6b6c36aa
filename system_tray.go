package main

import (
	"fmt"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
)

func (p *Pester) setupSystemTray() {
	p.updateSystemTrayMenu()
}

func (p *Pester) updateSystemTrayMenu() {
	desk, ok := p.app.(desktop.App)
	if !ok {
		return
	}

	menuItems := []*fyne.MenuItem{}

	// Active nag campaigns at the top
	active := p.manager.Active()
	if len(active) > 0 {
		headerItem := fyne.NewMenuItem("Nagging now:", nil)
		headerItem.Disabled = true
		menuItems = append(menuItems, headerItem)

		for _, key := range active {
			item := fyne.NewMenuItem("  "+truncateString(key, 35), nil)
			item.Disabled = true
			menuItems = append(menuItems, item)
		}

		menuItems = append(menuItems, fyne.NewMenuItemSeparator())
	}

	pending := p.notifier.ListScheduled()
	pendingItem := fyne.NewMenuItem(fmt.Sprintf("%d reminders scheduled", len(pending)), nil)
	pendingItem.Disabled = true
	menuItems = append(menuItems, pendingItem)

	menuItems = append(menuItems,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Sync Now", func() {
			go p.syncSources()
		}),
		fyne.NewMenuItem("Reschedule Reminders", func() {
			go func() {
				if err := p.scheduler.RescheduleAll(); err != nil {
					log.Printf("Reschedule failed: %v", err)
				}
				p.updateSystemTrayMenu()
			}()
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() {
			p.quit()
		}),
	)

	menu := fyne.NewMenu("Pester", menuItems...)
	desk.SetSystemTrayMenu(menu)
	desk.SetSystemTrayIcon(theme.InfoIcon())
}

// truncateString truncates a string to maxLen characters, adding "..." if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
