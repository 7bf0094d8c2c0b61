// Package sqlite keeps task lists and users in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrisonrobin/taskwall/pkg/model"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Store is a task service backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newStore(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			list_name TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			title TEXT NOT NULL,
			starred INTEGER NOT NULL DEFAULT 0,
			due_date TEXT NOT NULL DEFAULT '',
			assignee_id TEXT NOT NULL DEFAULT '',
			completed INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_list_position ON tasks(list_name, position);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// PutTask adds an open task to a list at the given position.
func (s *Store) PutTask(ctx context.Context, list string, position int, t model.Task) error {
	list = strings.TrimSpace(list)
	if list == "" {
		return errors.New("list name is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks(list_name, position, title, starred, due_date, assignee_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, list, position, t.Title, boolInt(t.Starred), t.DueDate, string(t.AssigneeID))
	return err
}

// CompleteList marks every task in list completed so it stops being shown.
func (s *Store) CompleteList(ctx context.Context, list string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET completed = 1 WHERE list_name = ?`, list)
	return err
}

// PutUser adds or renames a user.
func (s *Store) PutUser(ctx context.Context, id model.ID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users(id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, string(id), name)
	return err
}

// Fetch returns the open tasks of the requested lists ordered by position,
// or of every list when lists is empty.
func (s *Store) Fetch(ctx context.Context, lists []string) (model.Snapshot, error) {
	query := `
		SELECT list_name, title, starred, due_date, assignee_id
		FROM tasks
		WHERE completed = 0
	`
	args := make([]any, 0, len(lists))
	if len(lists) > 0 {
		query += ` AND list_name IN (?` + strings.Repeat(`, ?`, len(lists)-1) + `)`
		for _, name := range lists {
			args = append(args, name)
		}
	}
	query += ` ORDER BY list_name ASC, position ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	snapshot := make(model.Snapshot)
	for rows.Next() {
		var (
			list     string
			t        model.Task
			starred  int
			assignee string
		)
		if err := rows.Scan(&list, &t.Title, &starred, &t.DueDate, &assignee); err != nil {
			return nil, err
		}
		t.Starred = starred != 0
		t.AssigneeID = model.ID(assignee)
		snapshot[list] = append(snapshot[list], t)
	}
	return snapshot, rows.Err()
}

// Users returns every known user.
func (s *Store) Users(ctx context.Context) (model.UserDirectory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM users`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := model.UserDirectory{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		users[model.ID(id)] = name
	}
	return users, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
