package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/logger"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "test.db")}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB(t *testing.T) {
	db := openTestDB(t)
	if db.GetDB() == nil {
		t.Error("Expected non-nil database connection")
	}
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "nwk.db")
	db, err := NewDB(Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("Failed to create database in nested directory: %v", err)
	}
	_ = db.Close()
}

func TestNewDB_Memory(t *testing.T) {
	db, err := NewDB(Config{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPortableRepository(db.GetDB())
	if err := repo.Upsert(&Portable{IPUI: "N:08ae12345", Extension: "100"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	n, err := repo.Count()
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}
}

func TestPortable_IdentityRoundTrip(t *testing.T) {
	tests := []identity.IPUI{
		{Type: identity.IPUITypeN, IPEI: identity.IPEI{EMC: 0x08ae, PSN: 0x12345}},
		{Type: identity.IPUITypeO, Number: 0x123456789},
		{Type: identity.IPUITypeT, EMC: 0x08ae, FPN: 0x1d2e3},
	}
	for _, want := range tests {
		p := NewPortable(want)
		if p.IPUI != want.String() {
			t.Errorf("IPUI = %q, want %q", p.IPUI, want.String())
		}
		got, err := p.Identity()
		if err != nil {
			t.Fatalf("Identity(%s) failed: %v", want, err)
		}
		if got != want {
			t.Errorf("Identity() = %+v, want %+v", got, want)
		}
	}

	p := &Portable{IPUIType: uint8(identity.IPUITypeP)}
	if _, err := p.Identity(); err == nil {
		t.Error("Expected error for unsupported IPUI type")
	}
}

func TestPortableRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewPortableRepository(db.GetDB())

	a := NewPortable(identity.IPUI{Type: identity.IPUITypeN, IPEI: identity.IPEI{EMC: 0x08ae, PSN: 1}})
	a.Extension = "100"
	b := NewPortable(identity.IPUI{Type: identity.IPUITypeN, IPEI: identity.IPEI{EMC: 0x08ae, PSN: 2}})
	b.Extension = "101"
	for _, p := range []*Portable{a, b} {
		if err := repo.Upsert(p); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := repo.GetByIPUI(a.IPUI)
	if err != nil {
		t.Fatalf("GetByIPUI failed: %v", err)
	}
	if got.Extension != "100" {
		t.Errorf("Extension = %q, want 100", got.Extension)
	}

	got, err = repo.GetByExtension("101")
	if err != nil {
		t.Fatalf("GetByExtension failed: %v", err)
	}
	if got.IPUI != b.IPUI {
		t.Errorf("GetByExtension = %s, want %s", got.IPUI, b.IPUI)
	}

	if _, err := repo.GetByExtension("999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByExtension(999) err = %v, want ErrNotFound", err)
	}

	next, err := repo.NextExtension(100)
	if err != nil {
		t.Fatalf("NextExtension failed: %v", err)
	}
	if next != "102" {
		t.Errorf("NextExtension = %q, want 102", next)
	}

	if err := repo.SetAttached(a.IPUI, true); err != nil {
		t.Fatalf("SetAttached failed: %v", err)
	}
	if err := repo.SetTPUI(a.IPUI, 0xe0001); err != nil {
		t.Fatalf("SetTPUI failed: %v", err)
	}
	got, _ = repo.GetByIPUI(a.IPUI)
	if !got.Attached || got.TPUI != 0xe0001 || got.LastLocate.IsZero() {
		t.Errorf("unexpected portable after updates: %+v", got)
	}
	if err := repo.SetAttached("N:000000000", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetAttached on unknown err = %v, want ErrNotFound", err)
	}

	// a second save of the same IPUI updates in place
	a.Name = "kitchen"
	if err := repo.Upsert(a); err != nil {
		t.Fatalf("Upsert update failed: %v", err)
	}
	list, err := repo.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Extension != "100" || list[0].Name != "kitchen" {
		t.Errorf("unexpected list: %+v", list)
	}

	if err := repo.Delete(a.IPUI); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(a.IPUI); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
	if n, _ := repo.Count(); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	next, _ = repo.NextExtension(100)
	if next != "100" {
		t.Errorf("NextExtension after delete = %q, want 100", next)
	}
}

func TestCallRecord_BeforeCreate(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallRecordRepository(db.GetDB())

	rec := &CallRecord{CallerIPUI: "N:08ae00001", Called: "101"}
	if err := repo.Create(rec); err != nil {
		t.Fatalf("Failed to create call record: %v", err)
	}
	if rec.ID == 0 {
		t.Error("Expected non-zero ID after creation")
	}
	if rec.CreatedAt.IsZero() || rec.StartTime.IsZero() || rec.EndTime.IsZero() {
		t.Error("Expected timestamps to be set by hook")
	}
}

func TestCallRecordRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallRecordRepository(db.GetDB())

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		callee := "N:08ae00002"
		if i%2 == 1 {
			callee = "N:08ae00003"
		}
		rec := &CallRecord{
			CallerIPUI: "N:08ae00001",
			CalleeIPUI: callee,
			Answered:   i%2 == 0,
			StartTime:  base.Add(time.Duration(i) * time.Minute),
			EndTime:    base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Duration:   30,
		}
		if err := repo.Create(rec); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	recent, err := repo.GetRecent(3)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("GetRecent returned %d records, want 3", len(recent))
	}
	if !recent[0].StartTime.After(recent[1].StartTime) {
		t.Error("Expected records ordered newest first")
	}

	page, total, err := repo.GetRecentPaginated(2, 2)
	if err != nil {
		t.Fatalf("GetRecentPaginated failed: %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Errorf("page 2 = %d records of %d, want 2 of 5", len(page), total)
	}

	byIPUI, err := repo.GetByIPUI("N:08ae00003", 10)
	if err != nil {
		t.Fatalf("GetByIPUI failed: %v", err)
	}
	if len(byIPUI) != 2 {
		t.Errorf("GetByIPUI returned %d records, want 2", len(byIPUI))
	}

	deleted, err := repo.DeleteOlderThan(base.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteOlderThan removed %d, want 2", deleted)
	}
}

func TestCallRecordRepository_Prune(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallRecordRepository(db.GetDB())
	now := time.Now()
	for _, age := range []time.Duration{72 * time.Hour, 30 * time.Hour, time.Hour} {
		if err := repo.Create(&CallRecord{StartTime: now.Add(-age), EndTime: now.Add(-age)}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	if n, err := repo.Prune(0, now); err != nil || n != 0 {
		t.Errorf("Prune without retention = %d, %v; want 0, nil", n, err)
	}
	n, err := repo.Prune(24*time.Hour, now)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Prune removed %d, want 2", n)
	}
	left, _ := repo.GetRecent(10)
	if len(left) != 1 {
		t.Errorf("%d records left, want 1", len(left))
	}
}

func TestNewDB_MemorySharedConnection(t *testing.T) {
	db, err := NewDB(Config{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPortableRepository(db.GetDB())
	if err := repo.Upsert(&Portable{IPUI: "N:08ae00001", Extension: "11"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	// a second query must see the same in-memory database
	if _, err := repo.GetByIPUI("N:08ae00001"); err != nil {
		t.Errorf("GetByIPUI failed: %v", err)
	}
}

func TestSchema_ColumnNames(t *testing.T) {
	db := openTestDB(t)
	m := db.GetDB().Migrator()
	for _, col := range []string{"ipui", "ipui_type", "tpui", "extension", "attached", "last_locate"} {
		if !m.HasColumn(&Portable{}, col) {
			t.Errorf("portables has no column %q", col)
		}
	}
	for _, col := range []string{"caller_ipui", "callee_ipui", "start_time"} {
		if !m.HasColumn(&CallRecord{}, col) {
			t.Errorf("call_records has no column %q", col)
		}
	}
}
