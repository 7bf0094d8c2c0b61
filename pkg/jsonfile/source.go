// Package jsonfile serves task snapshots from a JSON document on disk.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/harrisonrobin/taskwall/pkg/model"
)

// Document is the on-disk layout:
//
//	{"lists": {"inbox": [{"title": "..."}]}, "users": {"1": "Ada"}}
type Document struct {
	Lists model.Snapshot      `json:"lists"`
	Users model.UserDirectory `json:"users,omitempty"`
}

// Decode reads a document from r. A list entry that is not an array of
// tasks is treated as empty rather than failing the whole document.
func Decode(r io.Reader) (*Document, error) {
	var raw struct {
		Lists map[string]json.RawMessage `json:"lists"`
		Users model.UserDirectory        `json:"users,omitempty"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot json: %w", err)
	}

	doc := &Document{Lists: make(model.Snapshot, len(raw.Lists)), Users: raw.Users}
	for name, entry := range raw.Lists {
		var tasks []model.Task
		if err := json.Unmarshal(entry, &tasks); err != nil {
			continue
		}
		doc.Lists[name] = tasks
	}
	return doc, nil
}

// Read loads a document from path.
func Read(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

type Source struct {
	Path string
}

func NewSource(path string) *Source {
	return &Source{Path: path}
}

// Fetch re-reads the file and returns the requested lists. Lists absent
// from the file are left out.
func (s *Source) Fetch(ctx context.Context, lists []string) (model.Snapshot, error) {
	doc, err := Read(s.Path)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return doc.Lists, nil
	}
	snapshot := make(model.Snapshot, len(lists))
	for _, name := range lists {
		if tasks, ok := doc.Lists[name]; ok {
			snapshot[name] = tasks
		}
	}
	return snapshot, nil
}

// Users returns the file's directory, empty when it has none.
func (s *Source) Users(ctx context.Context) (model.UserDirectory, error) {
	doc, err := Read(s.Path)
	if err != nil {
		return nil, err
	}
	if doc.Users == nil {
		return model.UserDirectory{}, nil
	}
	return doc.Users, nil
}

// Paths lists the files the source reads, for change watching.
func (s *Source) Paths() []string {
	return []string{s.Path}
}
