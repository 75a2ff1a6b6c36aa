package main

import (
	"log"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/robfig/cron/v3"

	"github.com/borgmon/pester/pkg/audio"
	"github.com/borgmon/pester/pkg/calendar"
	"github.com/borgmon/pester/pkg/nag"
	"github.com/borgmon/pester/pkg/notify"
	"github.com/borgmon/pester/pkg/sched"
	"github.com/borgmon/pester/pkg/store"
	"github.com/borgmon/pester/pkg/watch"
)

type Pester struct {
	app    fyne.App
	config *Config

	db     *store.DB
	events *store.EventStore
	stops  *store.StopStore

	notifier  *notify.Desktop
	chime     *audio.Chime
	manager   *nag.Manager
	scheduler *sched.Scheduler
	watcher   *watch.Watcher

	cron       *cron.Cron
	syncTicker *time.Ticker
}

func main() {
	p := &Pester{
		app: app.New(),
	}

	if err := p.initialize(); err != nil {
		log.Fatal(err)
	}

	p.run()
}

func (p *Pester) initialize() error {
	configPath, err := DefaultConfigPath()
	if err != nil {
		return err
	}

	p.config, err = LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: failed to load config, using defaults: %v", err)
		p.config = DefaultConfig()
	}

	// Sync autostart state with config on startup
	if err := setupAutostart(p.config.AutoStart); err != nil {
		log.Printf("Warning: failed to setup autostart: %v", err)
	}

	dbPath := p.config.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(filepath.Dir(configPath), "pester.db")
	}
	p.db, err = store.Open(dbPath)
	if err != nil {
		return err
	}

	p.events = store.NewEventStore(p.db)
	p.stops = store.NewStopStore(p.db)
	p.chime = audio.LoadChime(p.config.ChimePath)

	p.notifier = notify.NewDesktop(p.app)
	p.notifier.SetOnDeliver(func(n notify.Notification) {
		p.chime.Play()
		ShowNagAlert(p.app, p.notifier, n, time.Duration(p.config.HoldTimeSeconds)*time.Second)
	})
	p.notifier.SetOnDismiss(DismissNagAlerts)

	p.manager = nag.NewManager(p.notifier, p.stops)
	p.manager.SetMaxAlarmDuration(time.Duration(p.config.MaxAlarmMinutes) * time.Minute)

	bridge := nag.NewActionBridge(p.manager, p.notifier, p.openEvent)
	bridge.Bind()

	p.scheduler = sched.NewScheduler(p.notifier, p.events)
	p.scheduler.SetRepeatOccurrences(p.config.RepeatOccurrences)

	p.watcher = watch.NewWatcher(p.events, p.manager)
	p.watcher.SetMaxAlarmDuration(time.Duration(p.config.MaxAlarmMinutes) * time.Minute)

	p.setupSystemTray()
	p.startBackgroundSync()

	if err := p.scheduler.RescheduleAll(); err != nil {
		log.Printf("Initial reschedule failed: %v", err)
	}

	p.watcher.Start(
		time.Duration(p.config.WatchIntervalSec)*time.Second,
		time.Duration(p.config.NagIntervalSec)*time.Second,
	)

	// Date rollover: rebuild the schedule shortly after midnight.
	p.cron = cron.New()
	if _, err := p.cron.AddFunc("5 0 * * *", func() {
		if err := p.scheduler.RescheduleAll(); err != nil {
			log.Printf("Midnight reschedule failed: %v", err)
		}
	}); err != nil {
		return err
	}
	p.cron.Start()

	return nil
}

func (p *Pester) run() {
	lifecycle := p.app.Lifecycle()
	lifecycle.SetOnEnteredForeground(func() {
		p.watcher.SetForeground(true)
	})
	lifecycle.SetOnExitedForeground(func() {
		p.watcher.SetForeground(false)
	})

	p.app.Run()
}

// openEvent is the navigation callback for the default tap on an alert.
// The daemon has no calendar UI of its own, so it only records the intent.
func (p *Pester) openEvent(eventID, date string) {
	log.Printf("Open requested for event %s on %s", eventID, date)
}

// syncSources re-imports every configured iCal source into the event
// store, then rebuilds the notification schedule.
func (p *Pester) syncSources() {
	if len(p.config.ICalSources) == 0 {
		log.Println("No iCal sources configured")
		return
	}

	imported := 0
	for _, source := range p.config.ICalSources {
		if !source.Validate() {
			continue
		}

		events, err := calendar.Import(source, p.config.HorizonDays)
		if err != nil {
			log.Printf("Error importing iCal source '%s' (%s): %v", source.Name, source.URL, err)
			continue
		}

		for i := range events {
			if err := p.events.Put(&events[i]); err != nil {
				log.Printf("Failed to store event %s: %v", events[i].ID, err)
				continue
			}
			imported++
		}
	}

	log.Printf("Synced %d events from %d iCal sources", imported, len(p.config.ICalSources))

	if err := p.scheduler.RescheduleAll(); err != nil {
		log.Printf("Reschedule after sync failed: %v", err)
	}

	p.updateSystemTrayMenu()
}

func (p *Pester) startBackgroundSync() {
	// Do initial sync synchronously to populate data before UI setup
	if len(p.config.ICalSources) > 0 {
		p.syncSources()
	}

	p.syncTicker = time.NewTicker(time.Duration(p.config.SyncIntervalMin) * time.Minute)
	go func() {
		for range p.syncTicker.C {
			p.syncSources()
		}
	}()
}

func (p *Pester) quit() {
	if p.syncTicker != nil {
		p.syncTicker.Stop()
	}
	if p.cron != nil {
		p.cron.Stop()
	}
	p.watcher.Stop()
	if p.db != nil {
		p.db.Close()
	}
	p.app.Quit()
}
