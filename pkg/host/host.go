// Package host runs a widget on a single event loop and publishes its markup.
package host

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskwall/pkg/config"
	"github.com/harrisonrobin/taskwall/pkg/widget"
)

const eventBuffer = 16

// Sender carries widget requests to the backend without blocking.
type Sender interface {
	Send(req widget.Request)
}

// Host owns a widget. Events and renders are processed one at a time on the
// Run goroutine, which is the only goroutine touching the widget.
type Host struct {
	widget      *widget.Widget
	backend     Sender
	logger      *log.Logger
	renderDelay time.Duration

	events chan widget.Event
	render chan struct{}

	timerMu sync.Mutex
	timer   *time.Timer

	mu       sync.RWMutex
	markup   string
	renders  int
	rendered time.Time
}

// New creates a host for a widget configured with cfg. Renders requested by
// the widget run renderDelay after the latest request.
func New(cfg config.Widget, backend Sender, renderDelay time.Duration, logger *log.Logger) *Host {
	if logger == nil {
		logger = log.Default()
	}
	h := &Host{
		backend:     backend,
		logger:      logger,
		renderDelay: renderDelay,
		events:      make(chan widget.Event, eventBuffer),
		render:      make(chan struct{}, 1),
	}
	h.widget = widget.New(cfg, h)
	return h
}

// Send implements widget.Host.
func (h *Host) Send(req widget.Request) {
	h.backend.Send(req)
}

// ScheduleRender implements widget.Host. Requests arriving before the
// pending render fires push it back and collapse into one.
func (h *Host) ScheduleRender() {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(h.renderDelay, func() {
		select {
		case h.render <- struct{}{}:
		default:
		}
	})
}

// Deliver queues an event for the widget, waiting while the queue is full.
func (h *Host) Deliver(ctx context.Context, ev widget.Event) error {
	select {
	case h.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the widget and processes events until ctx is cancelled.
func (h *Host) Run(ctx context.Context) error {
	defer h.stopTimer()

	h.widget.Start()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-h.events:
			h.logger.Debug("event", "notification", ev.Notification())
			h.widget.Dispatch(ev)
		case <-h.render:
			h.draw()
		}
	}
}

func (h *Host) draw() {
	markup := h.widget.Render().HTML()

	h.mu.Lock()
	h.markup = markup
	h.renders++
	h.rendered = time.Now()
	h.mu.Unlock()

	h.logger.Debug("rendered", "bytes", len(markup))
}

func (h *Host) stopTimer() {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
}

// Markup returns the latest rendered table, empty before the first render.
func (h *Host) Markup() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.markup
}

// Renders reports how many renders have run and when the last one finished.
func (h *Host) Renders() (int, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.renders, h.rendered
}
