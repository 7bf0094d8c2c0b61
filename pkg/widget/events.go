package widget

import (
	"github.com/harrisonrobin/taskwall/pkg/config"
	"github.com/harrisonrobin/taskwall/pkg/model"
)

// Notification names used on the channel between the widget and its backend.
const (
	NotifyConfig    = "CONFIG"
	NotifyConnected = "CONNECTED"
	NotifyStarted   = "STARTED"
	NotifyTasks     = "TASKS"
	NotifyUsers     = "USERS"
	NotifyAddLists  = "addLists"
	NotifyGetUsers  = "getUsers"
)

// Event is something delivered to the widget by its backend.
type Event interface {
	Notification() string
}

// Started acknowledges the configuration sent by the widget.
type Started struct{}

// TasksReceived carries a full task snapshot.
type TasksReceived struct {
	Snapshot model.Snapshot
}

// UsersReceived carries a full user directory.
type UsersReceived struct {
	Users model.UserDirectory
}

func (Started) Notification() string       { return NotifyStarted }
func (TasksReceived) Notification() string { return NotifyTasks }
func (UsersReceived) Notification() string { return NotifyUsers }

// Request is something the widget asks of its backend.
type Request interface {
	Notification() string
}

// SendConfig hands the widget configuration to the backend.
type SendConfig struct {
	Config config.Widget
}

// Connected announces that the widget is ready for data.
type Connected struct{}

// RegisterLists asks the backend to watch the named lists.
type RegisterLists struct {
	Lists []string
}

// RequestUsers asks the backend for the current user directory.
type RequestUsers struct{}

func (SendConfig) Notification() string    { return NotifyConfig }
func (Connected) Notification() string     { return NotifyConnected }
func (RegisterLists) Notification() string { return NotifyAddLists }
func (RequestUsers) Notification() string  { return NotifyGetUsers }
