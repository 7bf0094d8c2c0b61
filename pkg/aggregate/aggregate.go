// Package aggregate flattens a task snapshot into the display sequence.
package aggregate

import (
	"github.com/harrisonrobin/taskwall/pkg/config"
	"github.com/harrisonrobin/taskwall/pkg/model"
)

// Tasks walks lists in configured order and returns every task stamped with
// the list it came from. Lists missing from the snapshot, or empty, are skipped.
//
// In reversed order tasks are appended, giving plain concatenation. In normal
// order each task is inserted at the front, so both the list order and the
// order within each list come out reversed. Dashboards depend on this
// arrangement, so it is kept as is.
func Tasks(snapshot model.Snapshot, lists []string, order config.Order) []model.Task {
	var out []model.Task
	for _, name := range lists {
		tasks := snapshot[name]
		if len(tasks) == 0 {
			continue
		}
		for _, task := range tasks {
			task.ListFrom = name
			if order == config.OrderReversed {
				out = append(out, task)
			} else {
				out = append([]model.Task{task}, out...)
			}
		}
	}
	return out
}
