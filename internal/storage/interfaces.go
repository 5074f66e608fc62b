package storage

import (
	"context"
	"time"
)

// Meme is a stored meme upload record. The binary payload lives in the
// object store; URL points at it.
type Meme struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	URL         string    `json:"url"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// StatsPoint is one historical token statistics sample.
type StatsPoint struct {
	Mint              string
	TimestampMs       int64
	Price             float64
	TotalSupply       float64
	FounderBalance    float64
	BurnedBalance     float64
	CirculatingSupply float64
	MarketCap         float64
	HolderCount       int
}

// MemeStore provides access to meme upload records.
type MemeStore interface {
	// Insert adds a new meme record. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, m *Meme) error

	// GetByID retrieves a meme by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*Meme, error)

	// List retrieves up to limit memes ordered by upload time descending.
	// limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*Meme, error)
}

// StatsHistoryStore provides append-only access to historical stats samples.
type StatsHistoryStore interface {
	// Insert adds a new sample.
	Insert(ctx context.Context, p *StatsPoint) error

	// GetRange retrieves samples for a mint within [start, end] milliseconds
	// (inclusive), ordered by timestamp ASC.
	GetRange(ctx context.Context, mint string, start, end int64) ([]*StatsPoint, error)
}
