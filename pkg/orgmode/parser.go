package orgmode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/harrisonrobin/taskwall/pkg/model"
)

const dueLayout = "2006-01-02"

var (
	todoRegex     = regexp.MustCompile(`^\*+ TODO\s*(?:\[#([A-Z])\])?\s*(.*?)(?:\s+(:(\w+(:\w+)*):))?\s*$`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2})[^>]*>`)
	headlineRegex = regexp.MustCompile(`^\*+ `)
)

// Entry is one open TODO headline.
type Entry struct {
	Title    string
	Priority string
	Tags     []string
	Deadline time.Time
}

// List returns the list an entry belongs to: its first tag, or the inbox.
func (e Entry) List() string {
	if len(e.Tags) > 0 && e.Tags[0] != "" {
		return e.Tags[0]
	}
	return model.DefaultList
}

// Task converts the entry for display. Priority A marks a starred task.
func (e Entry) Task() model.Task {
	t := model.Task{Title: e.Title, Starred: e.Priority == "A"}
	if !e.Deadline.IsZero() {
		t.DueDate = e.Deadline.Format(dueLayout)
	}
	return t
}

// Parse reads open TODO headlines from an Org-mode document. DONE and other
// headlines end the current entry.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	current := -1

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if headlineRegex.MatchString(line) {
			current = -1
			matches := todoRegex.FindStringSubmatch(line)
			if len(matches) == 0 {
				continue
			}
			entry := Entry{Priority: matches[1], Title: strings.TrimSpace(matches[2])}
			if matches[3] != "" {
				entry.Tags = strings.Split(strings.Trim(matches[3], ":"), ":")
			}
			if entry.Title == "" {
				continue
			}
			entries = append(entries, entry)
			current = len(entries) - 1
			continue
		}

		if current < 0 {
			continue
		}
		if matches := deadlineRegex.FindStringSubmatch(line); len(matches) > 0 {
			deadline, err := time.ParseInLocation(dueLayout, matches[1], time.Local)
			if err == nil {
				entries[current].Deadline = deadline
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Source reads tasks from a set of Org-mode files.
type Source struct {
	Files []string
}

func NewSource(files ...string) *Source {
	return &Source{Files: files}
}

// Fetch parses every file and groups open entries by list. When lists is
// non-empty only those lists are kept.
func (s *Source) Fetch(ctx context.Context, lists []string) (model.Snapshot, error) {
	wanted := make(map[string]bool, len(lists))
	for _, name := range lists {
		wanted[name] = true
	}

	snapshot := make(model.Snapshot)
	for _, path := range s.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := parseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse org file %s: %w", path, err)
		}
		for _, entry := range entries {
			list := entry.List()
			if len(wanted) > 0 && !wanted[list] {
				continue
			}
			snapshot[list] = append(snapshot[list], entry.Task())
		}
	}
	return snapshot, nil
}

// Users returns an empty directory; org files carry no assignees.
func (s *Source) Users(ctx context.Context) (model.UserDirectory, error) {
	return model.UserDirectory{}, nil
}

// Paths lists the files the source reads, for change watching.
func (s *Source) Paths() []string {
	return append([]string(nil), s.Files...)
}

func parseFile(filePath string) ([]Entry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}
