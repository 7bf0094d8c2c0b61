package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *TasksClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := tasks.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return NewTasksClient(srv)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func fakeTasksAPI(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/@me/lists"):
			writeJSON(w, map[string]any{"items": []map[string]any{
				{"id": "L1", "title": "inbox"},
				{"id": "L2", "title": "work"},
			}})
		case strings.HasSuffix(r.URL.Path, "/lists/L1/tasks"):
			if r.URL.Query().Get("showCompleted") != "false" {
				t.Errorf("expected completed tasks excluded, query %s", r.URL.RawQuery)
			}
			writeJSON(w, map[string]any{"items": []map[string]any{
				{"id": "b", "title": "Second", "position": "00000000000000000002"},
				{"id": "a", "title": "First", "position": "00000000000000000001", "due": "2024-05-01T00:00:00.000Z"},
				{"id": "c", "title": "Subtask", "position": "00000000000000000000", "parent": "a"},
			}})
		case strings.HasSuffix(r.URL.Path, "/lists/L2/tasks"):
			writeJSON(w, map[string]any{"items": []map[string]any{
				{"id": "w", "title": "Report", "position": "00000000000000000001"},
			}})
		default:
			http.NotFound(w, r)
		}
	}
}

func TestFetch(t *testing.T) {
	client := newTestClient(t, fakeTasksAPI(t))

	snapshot, err := client.Fetch(context.Background(), []string{"inbox", "missing"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("expected only inbox, got %+v", snapshot)
	}
	inbox := snapshot["inbox"]
	if len(inbox) != 2 || inbox[0].Title != "First" || inbox[1].Title != "Second" {
		t.Fatalf("unexpected inbox %+v", inbox)
	}
	if inbox[0].DueDate != "2024-05-01" || inbox[1].DueDate != "" {
		t.Fatalf("unexpected due dates %+v", inbox)
	}

	all, err := client.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch(all) failed: %v", err)
	}
	if all.TaskCount() != 3 {
		t.Fatalf("expected 3 tasks, got %d", all.TaskCount())
	}
}

func TestFetchError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	if _, err := client.Fetch(context.Background(), []string{"inbox"}); err == nil {
		t.Fatal("expected error from failing API")
	}
}

func TestConvert(t *testing.T) {
	got := Convert(&tasks.Task{Title: "x", Due: "bad"})
	if got.DueDate != "" {
		t.Fatalf("expected short due string dropped, got %q", got.DueDate)
	}
}
