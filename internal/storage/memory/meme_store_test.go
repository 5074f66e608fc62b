package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"memestats-backend/internal/storage"
)

func TestMemeStore_InsertAndGetByID(t *testing.T) {
	store := NewMemeStore()
	ctx := context.Background()

	meme := &storage.Meme{
		ID:          "meme-001",
		FileName:    "doge.png",
		ContentType: "image/png",
		SizeBytes:   12345,
		URL:         "/media/meme-001.png",
		UploadedAt:  time.Unix(1700000000, 0).UTC(),
	}

	if err := store.Insert(ctx, meme); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	retrieved, err := store.GetByID(ctx, "meme-001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if retrieved.FileName != meme.FileName {
		t.Errorf("Expected file name %q, got %q", meme.FileName, retrieved.FileName)
	}
	if retrieved.SizeBytes != meme.SizeBytes {
		t.Errorf("Expected size %d, got %d", meme.SizeBytes, retrieved.SizeBytes)
	}
	if !retrieved.UploadedAt.Equal(meme.UploadedAt) {
		t.Errorf("Expected uploaded at %v, got %v", meme.UploadedAt, retrieved.UploadedAt)
	}
}

func TestMemeStore_InsertDuplicate(t *testing.T) {
	store := NewMemeStore()
	ctx := context.Background()

	meme := &storage.Meme{ID: "meme-dup", FileName: "a.png", ContentType: "image/png"}

	if err := store.Insert(ctx, meme); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, meme)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestMemeStore_GetByIDNotFound(t *testing.T) {
	store := NewMemeStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemeStore_InsertInvalidInput(t *testing.T) {
	store := NewMemeStore()

	if err := store.Insert(context.Background(), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(context.Background(), &storage.Meme{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ID, got %v", err)
	}
}

func TestMemeStore_ListNewestFirst(t *testing.T) {
	store := NewMemeStore()
	ctx := context.Background()

	base := time.Unix(1700000000, 0).UTC()
	for i, id := range []string{"m1", "m2", "m3"} {
		meme := &storage.Meme{
			ID:         id,
			FileName:   id + ".png",
			UploadedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Insert(ctx, meme); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}

	result, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("Expected 3 memes, got %d", len(result))
	}
	for i, want := range []string{"m3", "m2", "m1"} {
		if result[i].ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, result[i].ID)
		}
	}
}

func TestMemeStore_ListLimit(t *testing.T) {
	store := NewMemeStore()
	ctx := context.Background()

	base := time.Unix(1700000000, 0).UTC()
	for i, id := range []string{"m1", "m2", "m3"} {
		meme := &storage.Meme{ID: id, UploadedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Insert(ctx, meme); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}

	result, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 memes, got %d", len(result))
	}
	if result[0].ID != "m3" {
		t.Errorf("Expected newest first, got %s", result[0].ID)
	}
}

func TestMemeStore_CopySemantics(t *testing.T) {
	store := NewMemeStore()
	ctx := context.Background()

	meme := &storage.Meme{ID: "m1", FileName: "orig.png"}
	if err := store.Insert(ctx, meme); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	meme.FileName = "mutated.png"

	retrieved, err := store.GetByID(ctx, "m1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved.FileName != "orig.png" {
		t.Errorf("Stored record mutated via caller pointer: %q", retrieved.FileName)
	}
}
