package db

import (
	"context"
	"errors"
	"testing"

	"github.com/quantmind-br/ipkg/internal/control"
)

func TestDBOperations(t *testing.T) {
	ctx := context.Background()
	tmpfile := t.TempDir() + "/status.db"
	db, err := New(ctx, tmpfile)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	rec := &control.Record{
		Name:          "tcpdump",
		Version:       "4.9.2-r1",
		Architecture:  "mips_24kc",
		Depends:       []control.Dependency{{Name: "libpcap", Op: control.OpAtLeast, Version: "1.8"}},
		Provides:      []string{"net-sniffer"},
		InstalledSize: 120,
	}
	files := []string{"/usr/bin/tcpdump", "/usr/share/man/man1/tcpdump.1"}

	// Test Put
	if err := db.Put(ctx, rec, files, false); err != nil {
		t.Fatalf("Failed to put package: %v", err)
	}

	// Test Get
	got, err := db.Get(ctx, "tcpdump")
	if err != nil {
		t.Fatalf("Failed to get package: %v", err)
	}
	if got.Version != rec.Version {
		t.Errorf("Get() Version = %v, want %v", got.Version, rec.Version)
	}
	if len(got.Depends) != 1 || got.Depends[0].String() != "libpcap (>= 1.8)" {
		t.Errorf("Get() Depends = %v, want libpcap (>= 1.8)", got.Depends)
	}

	// Test GetEntry metadata
	entry, err := db.GetEntry(ctx, "tcpdump")
	if err != nil {
		t.Fatalf("Failed to get entry: %v", err)
	}
	if entry.Auto {
		t.Error("GetEntry() Auto = true, want false")
	}
	if entry.InstalledAt.IsZero() {
		t.Error("GetEntry() InstalledAt is zero")
	}
	if len(entry.Files) != 2 {
		t.Errorf("GetEntry() Files length = %d, want 2", len(entry.Files))
	}

	// Test Files
	gotFiles, err := db.Files(ctx, "tcpdump")
	if err != nil {
		t.Fatalf("Failed to get files: %v", err)
	}
	if len(gotFiles) != 2 || gotFiles[0] != files[0] {
		t.Errorf("Files() = %v, want %v", gotFiles, files)
	}

	// Test List and Snapshot
	if err := db.Put(ctx, &control.Record{Name: "libpcap", Version: "1.9"}, nil, true); err != nil {
		t.Fatalf("Failed to put second package: %v", err)
	}

	entries, err := db.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list packages: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() length = %d, want 2", len(entries))
	}
	if entries[0].Name != "libpcap" {
		t.Errorf("List() not ordered by name: first = %s", entries[0].Name)
	}
	if !entries[0].Auto {
		t.Error("List() libpcap Auto = false, want true")
	}

	installed, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}
	if len(installed) != 2 || installed["tcpdump"].Version != "4.9.2-r1" {
		t.Errorf("Snapshot() = %v, want tcpdump and libpcap", installed)
	}

	// Test Remove
	if err := db.Remove(ctx, "tcpdump"); err != nil {
		t.Fatalf("Failed to remove package: %v", err)
	}
	if _, err := db.Get(ctx, "tcpdump"); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("Get() after remove error = %v, want ErrNotInstalled", err)
	}
	if err := db.Remove(ctx, "tcpdump"); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("Remove() twice error = %v, want ErrNotInstalled", err)
	}
}

func TestPutReplacesRow(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, t.TempDir()+"/status.db")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if err := db.Put(ctx, &control.Record{Name: "b", Version: "1.0"}, []string{"/usr/lib/b.so.1"}, false); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if err := db.Put(ctx, &control.Record{Name: "b", Version: "2.0"}, []string{"/usr/lib/b.so.2"}, false); err != nil {
		t.Fatalf("Failed to put replacement: %v", err)
	}

	got, err := db.GetEntry(ctx, "b")
	if err != nil {
		t.Fatalf("Failed to get entry: %v", err)
	}
	if got.Version != "2.0" {
		t.Errorf("Version after replace = %s, want 2.0", got.Version)
	}
	if len(got.Files) != 1 || got.Files[0] != "/usr/lib/b.so.2" {
		t.Errorf("Files after replace = %v, want only the new payload", got.Files)
	}

	entries, err := db.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List() length after replace = %d, want 1", len(entries))
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/status.db"

	db, err := New(ctx, path)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if err := db.Put(ctx, &control.Record{Name: "busybox", Version: "1.36"}, nil, false); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	reopened, err := New(ctx, path)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "busybox")
	if err != nil {
		t.Fatalf("Failed to get after reopen: %v", err)
	}
	if got.Version != "1.36" {
		t.Errorf("Version after reopen = %s, want 1.36", got.Version)
	}
}

func TestEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, t.TempDir()+"/status.db")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := db.Get(ctx, "nothing"); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("Get() on empty db error = %v, want ErrNotInstalled", err)
	}

	installed, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}
	if len(installed) != 0 {
		t.Errorf("Snapshot() on empty db = %v, want empty", installed)
	}
}
