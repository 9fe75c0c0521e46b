package schedule

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryDSN keeps posts in a process-local SQLite database, so nothing
// outlives the server.
const MemoryDSN = "file:promostudio?mode=memory&cache=shared"

// Store wraps a SQLite database holding the posts of every live studio.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists for file databases, and runs schema migrations. Rows left
// behind by a previous process belong to studios that no longer exist and
// are deleted.
func NewStore(path string) (*Store, error) {
	memory := strings.HasPrefix(path, "file:") || path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open schedule db: %w", err)
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure schedule db: %w", err)
	}
	if memory {
		// Shared-cache memory databases report table locks instead of waiting.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM posts`); err != nil {
		db.Close()
		return nil, fmt.Errorf("purge orphaned posts: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    studio_id TEXT NOT NULL,
    id TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    scheduled_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_studio ON posts(studio_id, seq);
`)
	return err
}

// InsertPost stores p for studioID.
func (s *Store) InsertPost(studioID string, p Post) error {
	_, err := s.db.Exec(`INSERT INTO posts (studio_id, id, created_at, title, description, scheduled_at) VALUES (?, ?, ?, ?, ?, ?)`,
		studioID, p.ID, p.CreatedAt.Format(time.RFC3339Nano), p.Title, p.Description, p.ScheduledAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// ListPosts returns the studio's posts, most recently saved first.
func (s *Store) ListPosts(studioID string) ([]Post, error) {
	rows, err := s.db.Query(`SELECT id, created_at, title, description, scheduled_at FROM posts WHERE studio_id = ? ORDER BY seq DESC`, studioID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		var created, scheduled string
		if err := rows.Scan(&p.ID, &created, &p.Title, &p.Description, &scheduled); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if p.ScheduledAt, err = time.Parse(time.RFC3339Nano, scheduled); err != nil {
			return nil, fmt.Errorf("parse scheduled_at: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// PurgeStudio drops every post owned by a studio whose session has ended.
func (s *Store) PurgeStudio(studioID string) error {
	if _, err := s.db.Exec(`DELETE FROM posts WHERE studio_id = ?`, studioID); err != nil {
		return fmt.Errorf("purge studio posts: %w", err)
	}
	return nil
}
