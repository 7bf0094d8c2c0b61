// Package widget holds the task table's state and reacts to backend events.
//
// The widget is single threaded: its owner must deliver events one at a time
// and never call Render concurrently with Dispatch.
package widget

import (
	"github.com/harrisonrobin/taskwall/pkg/aggregate"
	"github.com/harrisonrobin/taskwall/pkg/config"
	"github.com/harrisonrobin/taskwall/pkg/model"
	"github.com/harrisonrobin/taskwall/pkg/render"
)

// State is everything a render depends on. Each event replaces one part of
// it wholesale.
type State struct {
	Config   config.Widget
	Snapshot model.Snapshot
	Users    model.UserDirectory
}

// Effects are the side effects an event asks for.
type Effects struct {
	Requests []Request
	Render   bool
}

// Reduce applies ev to s.
func Reduce(s State, ev Event) (State, Effects) {
	var fx Effects
	switch ev := ev.(type) {
	case Started:
		fx.Requests = append(fx.Requests, RegisterLists{Lists: append([]string(nil), s.Config.Lists...)})
		if s.Config.ShowAssignee {
			fx.Requests = append(fx.Requests, RequestUsers{})
		}
	case TasksReceived:
		s.Snapshot = ev.Snapshot
		fx.Render = true
	case UsersReceived:
		s.Users = ev.Users
		fx.Render = s.Snapshot.TaskCount() > 0
	}
	return s, fx
}

// Host carries requests to the backend and schedules renders. Hosts may
// delay or coalesce scheduled renders.
type Host interface {
	Send(req Request)
	ScheduleRender()
}

type Widget struct {
	state State
	host  Host
}

func New(cfg config.Widget, host Host) *Widget {
	return &Widget{state: State{Config: cfg}, host: host}
}

// Start hands the configuration to the backend and announces the widget.
// The backend answers with Started.
func (w *Widget) Start() {
	w.host.Send(SendConfig{Config: w.state.Config})
	w.host.Send(Connected{})
}

// Dispatch applies one event and performs the effects it asks for.
func (w *Widget) Dispatch(ev Event) {
	var fx Effects
	w.state, fx = Reduce(w.state, ev)
	for _, req := range fx.Requests {
		w.host.Send(req)
	}
	if fx.Render {
		w.host.ScheduleRender()
	}
}

// Reconfigure replaces the display options after normalizing them. An
// invalid configuration is rejected and the current one kept. The next
// render uses the new options.
func (w *Widget) Reconfigure(cfg config.Widget) error {
	cfg.Lists = append([]string(nil), cfg.Lists...)
	if err := cfg.Normalize(); err != nil {
		return err
	}
	w.state.Config = cfg
	return nil
}

func (w *Widget) State() State {
	return w.state
}

// Tasks returns the flattened display sequence for the current state.
func (w *Widget) Tasks() []model.Task {
	return aggregate.Tasks(w.state.Snapshot, w.state.Config.Lists, w.state.Config.Order)
}

// Render builds the table for the current state. When assignees are shown it
// first asks the backend for a fresh user directory; the answer arrives as a
// later event.
func (w *Widget) Render() render.Result {
	if w.state.Config.ShowAssignee {
		w.host.Send(RequestUsers{})
	}
	return render.Table(w.Tasks(), w.state.Users, w.state.Config)
}
