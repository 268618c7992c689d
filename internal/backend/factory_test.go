package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"energycalc/internal/config"
	"energycalc/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		want    BackendType
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "memory", cfg: &config.Config{DataBackend: "memory", SessionTTL: time.Minute, MaxSessions: 5}, want: MemoryBackend},
		{name: "sqlite", cfg: &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"}, want: SQLiteBackend},
		{name: "sheets is not a backend", cfg: &config.Config{DataBackend: "sheets"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Type != tt.want {
				t.Errorf("Type = %v, want %v", got.Type, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid memory", Config{Type: MemoryBackend, SessionTTL: time.Minute, MaxSessions: 1}, false},
		{"memory without capacity", Config{Type: MemoryBackend, SessionTTL: time.Minute}, true},
		{"valid sqlite", Config{Type: SQLiteBackend, SessionTTL: time.Minute, SQLiteDBPath: "a.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend, SessionTTL: time.Minute}, true},
		{"zero ttl", Config{Type: MemoryBackend, MaxSessions: 1}, true},
		{"unknown type", Config{Type: "redis", SessionTTL: time.Minute}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(testLogger()).CreateBackend(context.Background(), Config{
		Type:        MemoryBackend,
		SessionTTL:  time.Minute,
		MaxSessions: 10,
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if res.Cleaner == nil {
		t.Fatalf("memory backend should expose a cleaner")
	}
	ctx := context.Background()
	if _, err := res.Backend.Append(ctx, "s", core.Entry{Category: "light"}, core.DefaultDraft()); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, _ := res.Backend.ListEntries(ctx, "s")
	if len(entries) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	res, err := NewFactory(testLogger()).CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SessionTTL:   time.Minute,
		SQLiteDBPath: "file:factory_test?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if err := res.Backend.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
