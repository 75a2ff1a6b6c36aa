package main

import (
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// HoldButton is a button that must be held down for a fixed duration
// before its action fires, so a nagging alert cannot be silenced by an
// accidental click. The button drives its own progress ticker.
type HoldButton struct {
	widget.BaseWidget
	Text       string
	HoldTime   time.Duration
	OnComplete func()

	holding  bool
	hovered  bool
	progress float64
	ticker   *time.Ticker
}

func NewHoldButton(text string, holdTime time.Duration, onComplete func()) *HoldButton {
	b := &HoldButton{
		Text:       text,
		HoldTime:   holdTime,
		OnComplete: onComplete,
	}
	b.ExtendBaseWidget(b)
	return b
}

func (b *HoldButton) CreateRenderer() fyne.WidgetRenderer {
	text := canvas.NewText(b.Text, theme.ForegroundColor())
	text.Alignment = fyne.TextAlignCenter

	bg := canvas.NewRectangle(theme.ButtonColor())
	progressBar := canvas.NewRectangle(theme.PrimaryColor())

	return &holdButtonRenderer{
		button:      b,
		text:        text,
		bg:          bg,
		progressBar: progressBar,
	}
}

func (b *HoldButton) Tapped(*fyne.PointEvent) {
	// Tapped fires on release, the hold logic lives in MouseDown/MouseUp
}

func (b *HoldButton) TappedSecondary(*fyne.PointEvent) {
}

func (b *HoldButton) MouseIn(*desktop.MouseEvent) {
	b.hovered = true
	b.Refresh()
}

func (b *HoldButton) MouseMoved(*desktop.MouseEvent) {
}

func (b *HoldButton) MouseOut() {
	b.hovered = false
	// Leaving the button releases the hold
	b.release()
	b.Refresh()
}

func (b *HoldButton) MouseDown(*desktop.MouseEvent) {
	if b.holding {
		return
	}
	b.holding = true
	b.progress = 0
	b.Refresh()

	tickInterval := 50 * time.Millisecond
	increment := float64(tickInterval) / float64(b.HoldTime)
	b.ticker = time.NewTicker(tickInterval)

	go func() {
		for range b.ticker.C {
			if !b.holding {
				return
			}

			b.progress += increment
			done := b.progress >= 1.0

			fyne.Do(func() {
				b.Refresh()
			})

			if done {
				b.ticker.Stop()
				if b.OnComplete != nil {
					b.OnComplete()
				}
				return
			}
		}
	}()
}

func (b *HoldButton) MouseUp(*desktop.MouseEvent) {
	b.release()
	b.Refresh()
}

func (b *HoldButton) release() {
	if !b.holding {
		return
	}
	b.holding = false
	if b.ticker != nil {
		b.ticker.Stop()
	}
	b.progress = 0
}

type holdButtonRenderer struct {
	button      *HoldButton
	text        *canvas.Text
	bg          *canvas.Rectangle
	progressBar *canvas.Rectangle
}

func (r *holdButtonRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.text.Resize(size)

	// Progress bar fills from left to right
	progressWidth := size.Width * float32(r.button.progress)
	r.progressBar.Resize(fyne.NewSize(progressWidth, size.Height))
	r.progressBar.Move(fyne.NewPos(0, 0))
}

func (r *holdButtonRenderer) MinSize() fyne.Size {
	textSize := r.text.MinSize()
	minWidth := textSize.Width + theme.Padding()*4
	minHeight := textSize.Height + theme.Padding()*2

	if minWidth < 220 {
		minWidth = 220
	}
	if minHeight < 48 {
		minHeight = 48
	}

	return fyne.NewSize(minWidth, minHeight)
}

func (r *holdButtonRenderer) Refresh() {
	r.text.Text = r.button.Text
	r.text.Color = theme.ForegroundColor()

	if r.button.hovered {
		r.bg.FillColor = theme.HoverColor()
	} else {
		r.bg.FillColor = theme.ButtonColor()
	}

	size := r.bg.Size()
	progressWidth := size.Width * float32(r.button.progress)
	r.progressBar.Resize(fyne.NewSize(progressWidth, size.Height))

	r.bg.Refresh()
	r.progressBar.Refresh()
	r.text.Refresh()
}

func (r *holdButtonRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.bg, r.progressBar, r.text}
}

func (r *holdButtonRenderer) Destroy() {
}
