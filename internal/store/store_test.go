package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"settings", "calibrations", "calibration_roles"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 2; i++ {
		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		s.Close()
	}
}

func TestCalibrationRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Calibrations()

	if _, err := repo.Latest(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() on empty store: expected ErrNotFound, got %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := &Calibration{
		ID: "cal-1", OffsetX: 0.48, OffsetY: 0.52, Samples: 81, DurationMs: 4000,
		LockedRoles: []string{"left", "right"}, CreatedAt: base,
	}
	second := &Calibration{
		ID: "cal-2", OffsetX: 0.51, OffsetY: 0.47, Samples: 90, DurationMs: 4500,
		CreatedAt: base.Add(time.Minute),
	}

	for _, c := range []*Calibration{first, second} {
		if err := repo.Create(c); err != nil {
			t.Fatalf("Create(%s) error = %v", c.ID, err)
		}
	}

	timeOpt := cmpopts.EquateApproxTime(time.Second)

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID("cal-1")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if diff := cmp.Diff(first, got, timeOpt); diff != "" {
			t.Errorf("GetByID() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		if _, err := repo.GetByID("nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("latest is newest", func(t *testing.T) {
		got, err := repo.Latest()
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if got.ID != "cal-2" {
			t.Errorf("Latest() = %s, want cal-2", got.ID)
		}
		if len(got.LockedRoles) != 0 {
			t.Errorf("expected no locked roles, got %v", got.LockedRoles)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		all, err := repo.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 2 || all[0].ID != "cal-2" || all[1].ID != "cal-1" {
			t.Fatalf("unexpected order: %v", all)
		}
		if diff := cmp.Diff([]string{"left", "right"}, all[1].LockedRoles); diff != "" {
			t.Errorf("roles mismatch (-want +got):\n%s", diff)
		}

		limited, err := repo.List(1)
		if err != nil {
			t.Fatalf("List(1) error = %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("List(1) returned %d rows", len(limited))
		}
	})

	t.Run("duplicate id fails", func(t *testing.T) {
		if err := repo.Create(&Calibration{ID: "cal-1"}); err == nil {
			t.Error("expected error inserting duplicate id")
		}
	})

	t.Run("invalid role rolls back", func(t *testing.T) {
		err := repo.Create(&Calibration{ID: "cal-3", LockedRoles: []string{"middle"}})
		if err == nil {
			t.Fatal("expected error for invalid role")
		}
		if _, err := repo.GetByID("cal-3"); !errors.Is(err, ErrNotFound) {
			t.Errorf("failed create should not leave a row, got %v", err)
		}
	})

	t.Run("delete cascades", func(t *testing.T) {
		if err := repo.Delete("cal-1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := repo.Delete("cal-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete() expected ErrNotFound, got %v", err)
		}

		var n int
		if err := s.DB().QueryRow(`SELECT COUNT(*) FROM calibration_roles WHERE calibration_id = ?`, "cal-1").Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("expected roles removed with calibration, found %d", n)
		}
	})
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	settings := s.Settings()

	if _, err := settings.Get("config"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := settings.Set("config", `{"a":1}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := settings.Set("config", `{"a":2}`); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, err := settings.Get("config")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != `{"a":2}` {
		t.Errorf("Get() = %q, want overwritten value", got)
	}

	if err := settings.Delete("config"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := settings.Delete("config"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}
