package taskwarrior

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/harrisonrobin/taskwall/pkg/model"
)

// dueLayout is how due dates are shown in the table.
const dueLayout = "2006-01-02"

type Client struct {
	// Filter is prepended to every export, e.g. ["+work"].
	Filter []string
	// Command is the taskwarrior binary; "task" when empty.
	Command string
}

func NewClient(filter ...string) *Client {
	return &Client{Filter: filter, Command: "task"}
}

func (c *Client) GetTasks(ctx context.Context, filter []string) ([]Task, error) {
	command := c.Command
	if command == "" {
		command = "task"
	}
	args := append(append([]string(nil), filter...), "export", "rc.hooks=0")
	cmd := exec.CommandContext(ctx, command, args...)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}

	tasks, err := c.ParseTasks(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("failed to parse taskwarrior output: %w", err)
	}
	return tasks, nil
}

// ParseTasks parses a JSON array or a stream of task objects from an
// io.Reader. Older taskwarrior versions export one object per line.
func (c *Client) ParseTasks(r io.Reader) ([]Task, error) {
	var tasks []Task
	decoder := json.NewDecoder(r)
	for {
		var batch json.RawMessage
		if err := decoder.Decode(&batch); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		if len(batch) > 0 && batch[0] == '[' {
			var many []Task
			if err := json.Unmarshal(batch, &many); err != nil {
				return nil, fmt.Errorf("failed to decode task json: %w", err)
			}
			tasks = append(tasks, many...)
			continue
		}
		var task Task
		if err := json.Unmarshal(batch, &task); err != nil {
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Fetch exports pending tasks and groups them into lists by project.
func (c *Client) Fetch(ctx context.Context, lists []string) (model.Snapshot, error) {
	filter := append(append([]string(nil), c.Filter...), "status:"+PENDING)
	tasks, err := c.GetTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Snapshot(tasks, lists), nil
}

// Users returns an empty directory; taskwarrior has no assignees.
func (c *Client) Users(ctx context.Context) (model.UserDirectory, error) {
	return model.UserDirectory{}, nil
}

// Snapshot groups pending tasks into lists named after their project, or
// the inbox when a task has none. When lists is non-empty only those lists
// are kept.
func Snapshot(tasks []Task, lists []string) model.Snapshot {
	wanted := make(map[string]bool, len(lists))
	for _, name := range lists {
		wanted[name] = true
	}

	snapshot := make(model.Snapshot)
	for _, task := range tasks {
		if task.Status != "" && task.Status != PENDING {
			continue
		}
		list := task.Project
		if list == "" {
			list = model.DefaultList
		}
		if len(wanted) > 0 && !wanted[list] {
			continue
		}
		snapshot[list] = append(snapshot[list], Convert(task))
	}
	return snapshot
}

// Convert maps a taskwarrior task to a display task.
func Convert(task Task) model.Task {
	out := model.Task{
		Title:   task.Description,
		Starred: task.Priority == PriorityHigh,
	}
	if task.Due != nil && !task.Due.IsZero() {
		out.DueDate = task.Due.In(time.Local).Format(dueLayout)
	}
	return out
}
