// Package backend answers widget requests by pulling data from a task service.
package backend

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskwall/pkg/model"
	"github.com/harrisonrobin/taskwall/pkg/widget"
)

const (
	defaultInterval = 60 * time.Second
	requestBuffer   = 64
)

// Source is a task service.
type Source interface {
	// Fetch returns the current tasks of the named lists.
	Fetch(ctx context.Context, lists []string) (model.Snapshot, error)
	// Users returns the current user directory.
	Users(ctx context.Context) (model.UserDirectory, error)
}

// Backend polls a Source for the lists the widget registered and delivers
// snapshots and directories back as widget events. All work happens on the
// Run goroutine.
type Backend struct {
	src     Source
	logger  *log.Logger
	deliver func(context.Context, widget.Event) error

	requests chan widget.Request
	refresh  chan struct{}

	// owned by Run
	lists     []string
	interval  time.Duration
	lastUsers model.UserDirectory
}

// New creates a backend that hands events to deliver.
func New(src Source, logger *log.Logger, deliver func(context.Context, widget.Event) error) *Backend {
	if logger == nil {
		logger = log.Default()
	}
	return &Backend{
		src:      src,
		logger:   logger,
		deliver:  deliver,
		requests: make(chan widget.Request, requestBuffer),
		refresh:  make(chan struct{}, 1),
		interval: defaultInterval,
	}
}

// Send queues a widget request. It never blocks; when the queue is full the
// request is dropped, which the widget tolerates since every request is
// repeated on a later render or poll.
func (b *Backend) Send(req widget.Request) {
	select {
	case b.requests <- req:
	default:
		b.logger.Warn("backend queue full, dropping request", "request", req.Notification())
	}
}

// Refresh asks for an immediate re-fetch of the registered lists. Pending
// refreshes collapse into one.
func (b *Backend) Refresh() {
	select {
	case b.refresh <- struct{}{}:
	default:
	}
}

// Run serves requests and polls until ctx is cancelled.
func (b *Backend) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-b.requests:
			b.handle(ctx, req, ticker)
		case <-b.refresh:
			b.fetchTasks(ctx)
		case <-ticker.C:
			b.fetchTasks(ctx)
		}
	}
}

func (b *Backend) handle(ctx context.Context, req widget.Request, ticker *time.Ticker) {
	b.logger.Debug("request", "notification", req.Notification())
	switch req := req.(type) {
	case widget.SendConfig:
		if req.Config.Interval > 0 {
			b.interval = time.Duration(req.Config.Interval) * time.Second
			ticker.Reset(b.interval)
		}
	case widget.Connected:
		b.send(ctx, widget.Started{})
	case widget.RegisterLists:
		for _, name := range req.Lists {
			if !slices.Contains(b.lists, name) {
				b.lists = append(b.lists, name)
			}
		}
		b.fetchTasks(ctx)
	case widget.RequestUsers:
		b.fetchUsers(ctx)
	default:
		b.logger.Warn("unknown request", "notification", req.Notification())
	}
}

func (b *Backend) fetchTasks(ctx context.Context) {
	if len(b.lists) == 0 {
		return
	}
	snapshot, err := b.src.Fetch(ctx, slices.Clone(b.lists))
	if err != nil {
		b.logger.Warn("fetch tasks failed", "lists", b.lists, "err", err)
		return
	}
	b.logger.Debug("tasks fetched", "lists", len(snapshot), "tasks", snapshot.TaskCount())
	b.send(ctx, widget.TasksReceived{Snapshot: snapshot})
}

// fetchUsers delivers the directory only when it changed, since every
// render asks for it again.
func (b *Backend) fetchUsers(ctx context.Context) {
	users, err := b.src.Users(ctx)
	if err != nil {
		b.logger.Warn("fetch users failed", "err", err)
		return
	}
	if users == nil {
		users = model.UserDirectory{}
	}
	if b.lastUsers != nil && maps.Equal(b.lastUsers, users) {
		return
	}
	b.lastUsers = users
	b.send(ctx, widget.UsersReceived{Users: users})
}

func (b *Backend) send(ctx context.Context, ev widget.Event) {
	if err := b.deliver(ctx, ev); err != nil {
		b.logger.Debug("event not delivered", "notification", ev.Notification(), "err", err)
	}
}
