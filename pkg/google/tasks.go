package google

import (
	"context"
	"fmt"
	"sort"

	"github.com/harrisonrobin/taskwall/pkg/model"
	"google.golang.org/api/tasks/v1"
)

const pageSize = 100

// TasksClient reads task lists from Google Tasks.
type TasksClient struct {
	srv *tasks.Service
}

// NewTasksClient wraps an existing service.
func NewTasksClient(srv *tasks.Service) *TasksClient {
	return &TasksClient{srv: srv}
}

// TaskLists maps task list titles to their ids.
func (c *TasksClient) TaskLists(ctx context.Context) (map[string]string, error) {
	ids := make(map[string]string)
	err := c.srv.Tasklists.List().MaxResults(pageSize).Pages(ctx, func(page *tasks.TaskLists) error {
		for _, item := range page.Items {
			if _, dup := ids[item.Title]; !dup {
				ids[item.Title] = item.Id
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve task lists: %w", err)
	}
	return ids, nil
}

// ListTasks returns the open top-level tasks of one list in list order.
func (c *TasksClient) ListTasks(ctx context.Context, listID string) ([]*tasks.Task, error) {
	var items []*tasks.Task
	err := c.srv.Tasks.List(listID).
		ShowCompleted(false).
		ShowHidden(false).
		MaxResults(pageSize).
		Pages(ctx, func(page *tasks.Tasks) error {
			for _, item := range page.Items {
				if item.Parent != "" || item.Deleted {
					continue
				}
				items = append(items, item)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve tasks of list %s: %w", listID, err)
	}
	// positions are zero-padded, so string order is list order
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items, nil
}

// Fetch returns the requested lists, matched by title. Titles that do not
// exist are left out. With no lists requested every list is returned.
func (c *TasksClient) Fetch(ctx context.Context, lists []string) (model.Snapshot, error) {
	ids, err := c.TaskLists(ctx)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		for title := range ids {
			lists = append(lists, title)
		}
		sort.Strings(lists)
	}

	snapshot := make(model.Snapshot, len(lists))
	for _, title := range lists {
		id, ok := ids[title]
		if !ok {
			continue
		}
		items, err := c.ListTasks(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			snapshot[title] = append(snapshot[title], Convert(item))
		}
	}
	return snapshot, nil
}

// Users returns an empty directory; Google Tasks has no assignees.
func (c *TasksClient) Users(ctx context.Context) (model.UserDirectory, error) {
	return model.UserDirectory{}, nil
}

// Convert maps a Google task to a display task. Due dates carry only a
// date, so the RFC3339 time part is dropped.
func Convert(item *tasks.Task) model.Task {
	t := model.Task{Title: item.Title}
	if len(item.Due) >= len("2006-01-02") {
		t.DueDate = item.Due[:len("2006-01-02")]
	}
	return t
}
