package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"ttscorpus/pkg/db"
)

func TestDB(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if d == nil {
		t.Fatal("Init() returned nil DB")
	}
	d.Close()

	// Migrations must be re-runnable on an existing file
	d, err = db.Init(path)
	if err != nil {
		t.Fatalf("second Init() failed: %v", err)
	}
	d.Close()
}

func TestPruneRuns(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "prune.db"))
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer d.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		at := base.Add(time.Duration(i) * time.Hour)
		if _, err := d.Exec(`INSERT INTO runs (id, source_root, output_root, seed, train_ratio, profile, started_at, finished_at)
			VALUES (?, 'src', 'out', 1, 0.8, '16000', ?, ?)`, id, at, at); err != nil {
			t.Fatal(err)
		}
		if _, err := d.Exec(`INSERT INTO entries (run_id, split, label, stem, source) VALUES (?, 'train', 'tolong', 'a01', 'a01.wav')`, id); err != nil {
			t.Fatal(err)
		}
	}

	n, err := d.PruneRuns(1)
	if err != nil {
		t.Fatalf("PruneRuns() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned runs, got %d", n)
	}

	var runs, entries int
	if err := d.QueryRow("SELECT count(*) FROM runs").Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if err := d.QueryRow("SELECT count(*) FROM entries").Scan(&entries); err != nil {
		t.Fatal(err)
	}
	if runs != 1 || entries != 1 {
		t.Errorf("expected 1 run and 1 entry left, got %d and %d", runs, entries)
	}

	var id string
	if err := d.QueryRow("SELECT id FROM runs").Scan(&id); err != nil {
		t.Fatal(err)
	}
	if id != "r3" {
		t.Errorf("expected newest run to survive, got %s", id)
	}

	if _, err := d.PruneRuns(0); err == nil {
		t.Error("expected error for keep=0")
	}
}
