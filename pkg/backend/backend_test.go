package backend

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskwall/pkg/config"
	"github.com/harrisonrobin/taskwall/pkg/model"
	"github.com/harrisonrobin/taskwall/pkg/widget"
)

type fakeSource struct {
	mu       sync.Mutex
	snapshot model.Snapshot
	users    model.UserDirectory
	fetchErr error
	lists    [][]string
}

func (s *fakeSource) Fetch(ctx context.Context, lists []string) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = append(s.lists, lists)
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.snapshot, nil
}

func (s *fakeSource) Users(ctx context.Context) (model.UserDirectory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users, nil
}

func (s *fakeSource) set(fn func(s *fakeSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func startBackend(t *testing.T, src Source) (*Backend, chan widget.Event) {
	t.Helper()
	events := make(chan widget.Event, 16)
	deliver := func(ctx context.Context, ev widget.Event) error {
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b := New(src, log.New(io.Discard), deliver)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	})
	return b, events
}

func next(t *testing.T, events <-chan widget.Event) widget.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBackendHandshakeAndFetch(t *testing.T) {
	src := &fakeSource{
		snapshot: model.Snapshot{"inbox": {{Title: "A"}}},
		users:    model.UserDirectory{"1": "Ada"},
	}
	b, events := startBackend(t, src)

	cfg := config.DefaultWidget()
	cfg.Interval = 3600
	b.Send(widget.SendConfig{Config: cfg})
	b.Send(widget.Connected{})
	if ev := next(t, events); ev.Notification() != widget.NotifyStarted {
		t.Fatalf("expected STARTED, got %s", ev.Notification())
	}

	b.Send(widget.RegisterLists{Lists: []string{"inbox", "work"}})
	ev := next(t, events)
	tasks, ok := ev.(widget.TasksReceived)
	if !ok || len(tasks.Snapshot["inbox"]) != 1 {
		t.Fatalf("expected TASKS with inbox, got %#v", ev)
	}

	b.Send(widget.RequestUsers{})
	ev = next(t, events)
	users, ok := ev.(widget.UsersReceived)
	if !ok || users.Users.Lookup("1") != "Ada" {
		t.Fatalf("expected USERS with Ada, got %#v", ev)
	}
}

func TestBackendSkipsUnchangedUsers(t *testing.T) {
	src := &fakeSource{users: model.UserDirectory{"1": "Ada"}}
	b, events := startBackend(t, src)

	b.Send(widget.RequestUsers{})
	next(t, events)

	b.Send(widget.RequestUsers{})
	src.set(func(s *fakeSource) { s.users = model.UserDirectory{"1": "Bea"} })
	b.Send(widget.RequestUsers{})

	ev := next(t, events)
	users, ok := ev.(widget.UsersReceived)
	if !ok || users.Users.Lookup("1") != "Bea" {
		t.Fatalf("expected only the changed directory, got %#v", ev)
	}
}

func TestBackendRefreshAndErrors(t *testing.T) {
	src := &fakeSource{snapshot: model.Snapshot{"inbox": {{Title: "A"}}}}
	b, events := startBackend(t, src)

	b.Send(widget.RegisterLists{Lists: []string{"inbox"}})
	next(t, events)

	src.set(func(s *fakeSource) { s.fetchErr = errors.New("service down") })
	b.Refresh()
	// wait for the failed fetch before recovering
	deadline := time.After(2 * time.Second)
	for {
		src.mu.Lock()
		calls := len(src.lists)
		src.mu.Unlock()
		if calls >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for refresh")
		case <-time.After(10 * time.Millisecond):
		}
	}

	src.set(func(s *fakeSource) {
		s.fetchErr = nil
		s.snapshot = model.Snapshot{"inbox": {{Title: "B"}}}
	})
	b.Refresh()
	ev := next(t, events)
	tasks, ok := ev.(widget.TasksReceived)
	if !ok || tasks.Snapshot["inbox"][0].Title != "B" {
		t.Fatalf("expected refreshed snapshot after recovery, got %#v", ev)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	for _, lists := range src.lists {
		if len(lists) != 1 || lists[0] != "inbox" {
			t.Fatalf("expected fetches for registered lists only, got %v", src.lists)
		}
	}
}

func TestBackendRegisterListsDeduplicates(t *testing.T) {
	src := &fakeSource{snapshot: model.Snapshot{}}
	b, events := startBackend(t, src)

	b.Send(widget.RegisterLists{Lists: []string{"inbox"}})
	next(t, events)
	b.Send(widget.RegisterLists{Lists: []string{"inbox", "work"}})
	next(t, events)

	src.mu.Lock()
	defer src.mu.Unlock()
	last := src.lists[len(src.lists)-1]
	if len(last) != 2 || last[0] != "inbox" || last[1] != "work" {
		t.Fatalf("expected [inbox work], got %v", last)
	}
}
