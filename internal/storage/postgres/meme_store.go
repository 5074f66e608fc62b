package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"memestats-backend/internal/storage"
)

// MemeStore implements storage.MemeStore using PostgreSQL.
type MemeStore struct {
	pool *Pool
}

// NewMemeStore creates a new MemeStore.
func NewMemeStore(pool *Pool) *MemeStore {
	return &MemeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MemeStore = (*MemeStore)(nil)

// Insert adds a new meme record. Returns ErrDuplicateKey if the ID exists.
func (s *MemeStore) Insert(ctx context.Context, m *storage.Meme) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO memes (
			id, file_name, content_type, size_bytes, url, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		m.ID,
		m.FileName,
		m.ContentType,
		m.SizeBytes,
		m.URL,
		m.UploadedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert meme: %w", err)
	}
	return nil
}

// GetByID retrieves a meme by its ID. Returns ErrNotFound if not exists.
func (s *MemeStore) GetByID(ctx context.Context, id string) (*storage.Meme, error) {
	query := `
		SELECT id, file_name, content_type, size_bytes, url, uploaded_at
		FROM memes
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	m, err := scanMeme(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get meme by id: %w", err)
	}
	return m, nil
}

// List retrieves up to limit memes ordered by upload time descending.
func (s *MemeStore) List(ctx context.Context, limit int) ([]*storage.Meme, error) {
	query := `
		SELECT id, file_name, content_type, size_bytes, url, uploaded_at
		FROM memes
		ORDER BY uploaded_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memes: %w", err)
	}
	defer rows.Close()

	return scanMemes(rows)
}

// scanMeme scans a single row into a Meme.
func scanMeme(row pgx.Row) (*storage.Meme, error) {
	var m storage.Meme
	err := row.Scan(
		&m.ID,
		&m.FileName,
		&m.ContentType,
		&m.SizeBytes,
		&m.URL,
		&m.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// scanMemes scans multiple rows into a slice of Meme.
func scanMemes(rows pgx.Rows) ([]*storage.Meme, error) {
	var memes []*storage.Meme

	for rows.Next() {
		var m storage.Meme
		err := rows.Scan(
			&m.ID,
			&m.FileName,
			&m.ContentType,
			&m.SizeBytes,
			&m.URL,
			&m.UploadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan meme row: %w", err)
		}
		memes = append(memes, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meme rows: %w", err)
	}

	return memes, nil
}
