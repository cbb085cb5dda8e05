package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
)

var ErrNotFound = errors.New("not found")

// DocumentStore persists one JSON document wholesale. Load fills v and returns
// ErrNotFound when nothing was stored yet; Save replaces the whole document.
type DocumentStore interface {
	Load(ctx context.Context, v any) error
	Save(ctx context.Context, v any) error
}

// NewDocumentStore picks the backend configured in STORE_BACKEND.
func NewDocumentStore(cfg *config.Config, name string, redisService *RedisService, db *sql.DB) (DocumentStore, error) {
	switch cfg.StoreBackend {
	case "file":
		return NewFileDocumentStore(filepath.Join(cfg.DataDir, name+".json")), nil
	case "redis":
		if redisService == nil {
			return nil, fmt.Errorf("redis backend selected but redis is not connected")
		}
		return NewRedisDocumentStore(redisService, name), nil
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite backend selected but database is not open")
		}
		return NewSQLiteDocumentStore(db, name), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}

type FileDocumentStore struct {
	path string
	mu   sync.Mutex
}

func NewFileDocumentStore(path string) *FileDocumentStore {
	return &FileDocumentStore{path: path}
}

func (s *FileDocumentStore) Load(_ context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if err := sonnet.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	return nil
}

// Save writes to a temp file in the same directory and renames it over the
// old document, so readers never see a half-written file.
func (s *FileDocumentStore) Save(_ context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := sonnet.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

type RedisDocumentStore struct {
	redis *RedisService
	name  string
}

func NewRedisDocumentStore(redisService *RedisService, name string) *RedisDocumentStore {
	return &RedisDocumentStore{redis: redisService, name: name}
}

func (s *RedisDocumentStore) Load(ctx context.Context, v any) error {
	return s.redis.LoadDocument(ctx, s.name, v)
}

func (s *RedisDocumentStore) Save(ctx context.Context, v any) error {
	return s.redis.SaveDocument(ctx, s.name, v)
}

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	name       TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// OpenSQLite opens the embedded database and makes sure the documents table exists.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(documentsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return db, nil
}

type SQLiteDocumentStore struct {
	db   *sql.DB
	name string
}

func NewSQLiteDocumentStore(db *sql.DB, name string) *SQLiteDocumentStore {
	return &SQLiteDocumentStore{db: db, name: name}
}

func (s *SQLiteDocumentStore) Load(ctx context.Context, v any) error {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, s.name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query document %s: %w", s.name, err)
	}
	if err := sonnet.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", s.name, err)
	}
	return nil
}

func (s *SQLiteDocumentStore) Save(ctx context.Context, v any) error {
	body, err := sonnet.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", s.name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		s.name, body, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", s.name, err)
	}
	return nil
}
