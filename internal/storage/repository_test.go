package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"energycalc/internal/core"
	"energycalc/internal/store"
)

var _ store.Backend = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T, name string) *SQLiteRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	repo, err := NewSQLiteRepository(dsn, time.Hour)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteAppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "append_list")

	entries, err := repo.ListEntries(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil entries, got %#v", entries)
	}

	in := []core.Entry{
		{Category: "light", PowerWatts: 100, HoursPerDay: 5, PricePerUnit: 0.1},
		{Category: "fan", PowerWatts: 60, HoursPerDay: 8, PricePerUnit: 0.1},
		{Category: "light", PowerWatts: 50, HoursPerDay: 10, PricePerUnit: 0.1},
	}
	for _, e := range in {
		ref, err := repo.Append(ctx, "s1", e, core.DefaultDraft())
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if ref == "" {
			t.Fatalf("empty ref")
		}
	}
	if _, err := repo.Append(ctx, "s2", core.Entry{Category: "tv", PowerWatts: 1}, core.DefaultDraft()); err != nil {
		t.Fatalf("append other session: %v", err)
	}

	got, err := repo.ListEntries(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], in[i])
		}
	}
}

func TestSQLiteDraftRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "draft")

	d, err := repo.LoadDraft(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !d.IsDefault() {
		t.Fatalf("expected default draft, got %+v", d)
	}

	want := core.Draft{Category: "ac", PowerWatts: 1500, HoursPerDay: 3, PricePerUnit: 0.2}
	if err := repo.SaveDraft(ctx, "s1", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	want.HoursPerDay = 4
	if err := repo.SaveDraft(ctx, "s1", want); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, err := repo.LoadDraft(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("draft = %+v, want %+v", got, want)
	}
}

func TestSQLiteReset(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "reset")

	_, _ = repo.Append(ctx, "s1", core.Entry{Category: "light", PowerWatts: 100}, core.DefaultDraft())
	_ = repo.SaveDraft(ctx, "s1", core.Draft{Category: "fan"})
	_, _ = repo.Append(ctx, "s2", core.Entry{Category: "tv"}, core.DefaultDraft())

	if err := repo.Reset(ctx, "s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	entries, _ := repo.ListEntries(ctx, "s1")
	d, _ := repo.LoadDraft(ctx, "s1")
	if len(entries) != 0 || !d.IsDefault() {
		t.Fatalf("session not reset: %+v %+v", entries, d)
	}
	other, _ := repo.ListEntries(ctx, "s2")
	if len(other) != 1 {
		t.Fatalf("reset touched another session: %+v", other)
	}
	if err := repo.Reset(ctx, "never-written"); err != nil {
		t.Fatalf("reset of unknown session: %v", err)
	}
}

func TestSQLiteCleanExpired(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "clean")

	_, _ = repo.Append(ctx, "s1", core.Entry{Category: "light"}, core.DefaultDraft())
	_ = repo.SaveDraft(ctx, "s1", core.Draft{Category: "fan"})

	if n := repo.CleanExpired(); n != 0 {
		t.Fatalf("fresh session cleaned: %d rows", n)
	}

	repo.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if n := repo.CleanExpired(); n != 1 {
		t.Fatalf("cleaned %d sessions, want 1", n)
	}
	entries, _ := repo.ListEntries(ctx, "s1")
	if len(entries) != 0 {
		t.Fatalf("stale entries survived: %+v", entries)
	}
}

func TestSQLiteCleanExpiredKeepsSessionWithRecentDraft(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "clean_activity")

	t0 := time.Now()
	repo.now = func() time.Time { return t0 }
	if _, err := repo.Append(ctx, "s1", core.Entry{Category: "light", PowerWatts: 100}, core.DefaultDraft()); err != nil {
		t.Fatalf("append: %v", err)
	}

	repo.now = func() time.Time { return t0.Add(2 * time.Hour) }
	if err := repo.SaveDraft(ctx, "s1", core.Draft{Category: "fan"}); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	repo.now = func() time.Time { return t0.Add(2*time.Hour + 30*time.Minute) }
	if n := repo.CleanExpired(); n != 0 {
		t.Fatalf("active session cleaned: %d", n)
	}
	entries, _ := repo.ListEntries(ctx, "s1")
	if len(entries) != 1 {
		t.Fatalf("entries of an active session removed: %+v", entries)
	}

	repo.now = func() time.Time { return t0.Add(4 * time.Hour) }
	if n := repo.CleanExpired(); n != 1 {
		t.Fatalf("cleaned %d sessions, want 1", n)
	}
	entries, _ = repo.ListEntries(ctx, "s1")
	d, _ := repo.LoadDraft(ctx, "s1")
	if len(entries) != 0 || !d.IsDefault() {
		t.Fatalf("idle session not removed together: %+v %+v", entries, d)
	}
}

func TestSQLiteAppendIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "append_atomic")

	if _, err := repo.db.ExecContext(ctx, `
CREATE TRIGGER fail_drafts BEFORE INSERT ON drafts
BEGIN
    SELECT RAISE(ABORT, 'draft write failed');
END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := repo.Append(ctx, "s1", core.Entry{Category: "light", PowerWatts: 100}, core.DefaultDraft()); err == nil {
		t.Fatal("expected append to fail when the draft cannot be written")
	}
	entries, err := repo.ListEntries(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entry stored without its draft: %+v", entries)
	}
}

func TestSQLiteFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "energy.db")
	repo, err := NewSQLiteRepository(path, 0)
	if err != nil {
		t.Fatalf("open file repository: %v", err)
	}
	defer repo.Close()

	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if n := repo.CleanExpired(); n != 0 {
		t.Fatalf("zero ttl should never clean, got %d", n)
	}
}
