package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultList is the list name used when a source has no better grouping for a task.
const DefaultList = "inbox"

// ID is an assignee identifier. Task services emit these either as JSON
// numbers or as strings, so both are accepted.
type ID string

// UnmarshalJSON implements the json.Unmarshaler interface for ID.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("failed to decode id string: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("failed to decode id '%s': %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

// Task is a single to-do item as delivered by a task service.
// ListFrom is stamped by aggregation and is empty in raw snapshots.
type Task struct {
	Title      string `json:"title"`
	Starred    bool   `json:"starred"`
	DueDate    string `json:"due_date,omitempty"`
	AssigneeID ID     `json:"assignee_id,omitempty"`
	ListFrom   string `json:"listFrom,omitempty"`
}

// HasAssignee reports whether the task names an assignee.
func (t Task) HasAssignee() bool {
	return t.AssigneeID != ""
}

// Snapshot maps a list name to its tasks in service order.
// A new snapshot always replaces the previous one.
type Snapshot map[string][]Task

// TaskCount returns the number of tasks across all lists.
func (s Snapshot) TaskCount() int {
	n := 0
	for _, tasks := range s {
		n += len(tasks)
	}
	return n
}

// UserDirectory maps assignee ids to display names. A nil directory means
// no directory has been received yet.
type UserDirectory map[ID]string

// Lookup returns the display name for id, or "" when the directory is not
// loaded or has no entry.
func (d UserDirectory) Lookup(id ID) string {
	if d == nil || id == "" {
		return ""
	}
	return d[id]
}
