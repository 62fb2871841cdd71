package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"tg-vaultbot/internal/config"
	"tg-vaultbot/internal/storage"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "videos.db")
	cfg.Logger.Level = "ERROR"

	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { storage.Close(db) })
	return db
}

func TestStatusAndReset(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := storage.NewVideoRepository(db).Insert(ctx, "Heat", 1); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var out bytes.Buffer
	if err := printStatus(&out, db); err != nil {
		t.Fatalf("printStatus: %v", err)
	}
	if !strings.Contains(out.String(), "videos table exists\n   - Contains 1 records") {
		t.Errorf("status output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "users table exists") {
		t.Errorf("status output:\n%s", out.String())
	}

	if err := resetDatabase(db); err != nil {
		t.Fatalf("resetDatabase: %v", err)
	}
	count, err := storage.NewVideoRepository(db).Count(ctx)
	if err != nil {
		t.Fatalf("Count after reset: %v", err)
	}
	if count != 0 {
		t.Errorf("Count after reset = %d, want 0", count)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(tt.input), &out); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
