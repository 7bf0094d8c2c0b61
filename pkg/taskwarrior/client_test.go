package taskwarrior

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/taskwall/pkg/model"
)

func TestParseTasksSingleObject(t *testing.T) {
	input := `{
		"uuid": "f45a05b3-c12e-42e5-9c9c-333333333333",
		"description": "Buy milk",
		"status": "pending",
		"due": "20230101T120000Z",
		"project": "Groceries",
		"priority": "H",
		"tags": ["buy", "food"]
	}`

	client := NewClient()
	tasks, err := client.ParseTasks(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(tasks))
	}
	task := tasks[0]

	if task.UUID != "f45a05b3-c12e-42e5-9c9c-333333333333" {
		t.Errorf("Expected UUID f45a05b3-c12e-42e5-9c9c-333333333333, got %s", task.UUID)
	}
	if task.Description != "Buy milk" {
		t.Errorf("Expected Description 'Buy milk', got '%s'", task.Description)
	}
	if task.Project != "Groceries" {
		t.Errorf("Expected Project 'Groceries', got '%s'", task.Project)
	}
	if task.Priority != PriorityHigh {
		t.Errorf("Expected Priority 'H', got '%s'", task.Priority)
	}
	if len(task.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %d", len(task.Tags))
	}
	expectedDue, _ := time.Parse(time.RFC3339, "2023-01-01T12:00:00Z")
	if !task.Due.Time.Equal(expectedDue) {
		t.Errorf("Expected Due %v, got %v", expectedDue, task.Due.Time)
	}
}

func TestParseTasksArrayAndStream(t *testing.T) {
	client := NewClient()

	array := `[{"uuid": "a", "description": "one"}, {"uuid": "b", "description": "two"}]`
	tasks, err := client.ParseTasks(strings.NewReader(array))
	if err != nil {
		t.Fatalf("ParseTasks(array) failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks from array, got %d", len(tasks))
	}

	stream := "{\"uuid\": \"a\", \"description\": \"one\"}\n{\"uuid\": \"b\", \"description\": \"two\"}\n"
	tasks, err = client.ParseTasks(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("ParseTasks(stream) failed: %v", err)
	}
	if len(tasks) != 2 || tasks[1].Description != "two" {
		t.Fatalf("Unexpected stream tasks %+v", tasks)
	}
}

func TestSnapshotGroupsByProject(t *testing.T) {
	due := &CustomTime{Time: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)}
	tasks := []Task{
		{Description: "Buy milk", Status: PENDING, Project: "groceries", Priority: PriorityHigh, Due: due},
		{Description: "Loose end", Status: PENDING},
		{Description: "Done already", Status: COMPLETED, Project: "groceries"},
		{Description: "Eggs", Status: PENDING, Project: "groceries"},
		{Description: "Report", Status: PENDING, Project: "work"},
	}

	snapshot := Snapshot(tasks, nil)
	if len(snapshot) != 3 {
		t.Fatalf("Expected 3 lists, got %d", len(snapshot))
	}
	groceries := snapshot["groceries"]
	if len(groceries) != 2 || groceries[0].Title != "Buy milk" || groceries[1].Title != "Eggs" {
		t.Fatalf("Unexpected groceries list %+v", groceries)
	}
	if !groceries[0].Starred || groceries[1].Starred {
		t.Errorf("Expected only high priority task starred")
	}
	if want := due.In(time.Local).Format("2006-01-02"); groceries[0].DueDate != want {
		t.Errorf("Expected due date %s, got %s", want, groceries[0].DueDate)
	}
	if inbox := snapshot[model.DefaultList]; len(inbox) != 1 || inbox[0].Title != "Loose end" {
		t.Errorf("Expected project-less task in inbox, got %+v", inbox)
	}

	filtered := Snapshot(tasks, []string{"work"})
	if len(filtered) != 1 || len(filtered["work"]) != 1 {
		t.Fatalf("Expected only the work list, got %+v", filtered)
	}
}

// fakeTask writes a script standing in for the task binary that prints out.
func fakeTask(t *testing.T, out string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	dir := t.TempDir()
	data := filepath.Join(dir, "export.json")
	if err := os.WriteFile(data, []byte(out), 0o644); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "task")
	body := "#!/bin/sh\ncat '" + data + "'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func TestGetTasksDecodesArrayExport(t *testing.T) {
	client := &Client{Command: fakeTask(t, `[{"uuid": "a", "description": "one", "status": "pending", "project": "home"}]`)}

	tasks, err := client.GetTasks(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetTasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Project != "home" {
		t.Fatalf("Unexpected tasks %+v", tasks)
	}
}

func TestFetchDecodesStreamExport(t *testing.T) {
	stream := "{\"uuid\": \"a\", \"description\": \"one\", \"status\": \"pending\", \"priority\": \"H\"}\n" +
		"{\"uuid\": \"b\", \"description\": \"two\", \"status\": \"pending\", \"project\": \"work\"}\n"
	client := &Client{Command: fakeTask(t, stream)}

	snapshot, err := client.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(snapshot[model.DefaultList]) != 1 || !snapshot[model.DefaultList][0].Starred {
		t.Fatalf("Unexpected inbox %+v", snapshot[model.DefaultList])
	}
	if len(snapshot["work"]) != 1 || snapshot["work"][0].Title != "two" {
		t.Fatalf("Unexpected work list %+v", snapshot["work"])
	}
}

func TestGetTasksRejectsGarbage(t *testing.T) {
	client := &Client{Command: fakeTask(t, "not json")}
	if _, err := client.GetTasks(context.Background(), nil); err == nil {
		t.Fatal("Expected error for malformed export")
	}
}
