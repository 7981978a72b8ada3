package history

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_OpenInitializesSchemaAndSaveList(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	first := Record{
		Entry:     "ansible.modules.ping",
		Digest:    "aa",
		Size:      100,
		Timestamp: base,
		Modules: []Module{
			{FQN: "ansible", ArchivePath: "ansible/__init__.py"},
			{FQN: "ansible.module_utils", ArchivePath: "ansible/module_utils/__init__.py"},
		},
	}
	second := Record{
		Entry:       "ansible.modules.ping",
		Digest:      "bb",
		Size:        150,
		ModuleCount: 3,
		Timestamp:   base.Add(time.Hour),
	}
	other := Record{Entry: "ansible.modules.copy", Digest: "cc", Timestamp: base}

	id, err := store.Save(first)
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
	if _, err := store.Save(second); err != nil {
		t.Fatalf("save second: %v", err)
	}
	if _, err := store.Save(other); err != nil {
		t.Fatalf("save other: %v", err)
	}

	got, err := store.List("ansible.modules.ping", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Digest != "aa" || got[1].Digest != "bb" {
		t.Fatalf("expected oldest first, got %+v", got)
	}
	if got[0].ModuleCount != 2 {
		t.Fatalf("expected module_count defaulted from modules, got %d", got[0].ModuleCount)
	}

	latest, err := store.List("ansible.modules.ping", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 1 || latest[0].Digest != "bb" {
		t.Fatalf("expected newest record only, got %+v", latest)
	}

	all, err := store.List("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
}

func TestStore_GetLoadsModules(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	id, err := store.Save(Record{
		Entry: "ansible.modules.ping",
		Modules: []Module{
			{FQN: "ansible.module_utils.basic", ArchivePath: "ansible/module_utils/basic.py"},
			{FQN: "ansible.module_utils.old", ArchivePath: "ansible/module_utils/old.py", Redirected: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %+v", rec.Modules)
	}
	if rec.Modules[0].FQN != "ansible.module_utils.basic" || !rec.Modules[1].Redirected {
		t.Fatalf("unexpected modules: %+v", rec.Modules)
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SaveRequiresEntry(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.Save(Record{Entry: "  "}); err == nil {
		t.Fatal("expected error for empty entry")
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	if err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildTrendReport(t *testing.T) {
	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	records := []Record{
		{ID: "1", Timestamp: base, ModuleCount: 4, Size: 1000, Digest: "a"},
		{ID: "2", Timestamp: base.Add(2 * time.Hour), ModuleCount: 6, Size: 1500, Digest: "b"},
		{ID: "3", Timestamp: base.Add(25 * time.Hour), ModuleCount: 6, Size: 1500, Digest: "b"},
	}

	report, err := BuildTrendReport("ansible.modules.ping", records, 24*time.Hour)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.BuildCount != 3 {
		t.Fatalf("expected build_count=3, got %d", report.BuildCount)
	}
	if report.Points[1].DeltaModules != 2 || report.Points[1].DeltaSize != 500 {
		t.Fatalf("unexpected deltas: %+v", report.Points[1])
	}
	if report.Points[1].SizeGrowthPct != 50 {
		t.Fatalf("expected size growth pct=50, got %v", report.Points[1].SizeGrowthPct)
	}
	if !report.Points[1].DigestChanged || report.Points[2].DigestChanged {
		t.Fatalf("unexpected digest change flags: %+v", report.Points)
	}
	if report.Points[1].AvgSize != 1250 {
		t.Fatalf("expected avg_size=1250, got %v", report.Points[1].AvgSize)
	}
	if report.Points[2].AvgSize != 1500 {
		t.Fatalf("expected window to drop first build, got %v", report.Points[2].AvgSize)
	}

	if _, err := BuildTrendReport("x", nil, time.Hour); err == nil {
		t.Fatal("expected error for empty history")
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
}
