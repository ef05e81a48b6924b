package datatable

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lawnchairsociety/levelforge/internal/fault"
)

const sampleTable = `
name: dungeon
levels:
  - key: hall
    source: /Game/Rooms/Hall.Hall
    build_weight: 3
    replacements:
      - item: /Game/Rooms/HallB
        weight: 1
      - item: /Game/Rooms/HallC
        weight: 0
  - key: cave
    source: /Game/Rooms/Cave
tag_filters:
  - key: lamps
    tag: light
    count: 2
actors:
  - key: crates
    class: Crate
    replacements:
      - item: Barrel
        weight: 2
`

func TestParse(t *testing.T) {
	table, err := Parse([]byte(sampleTable))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(table.Levels) != 2 || len(table.Tags) != 1 || len(table.Actors) != 1 {
		t.Fatalf("unexpected row counts: %d levels, %d tags, %d actors",
			len(table.Levels), len(table.Tags), len(table.Actors))
	}

	hall := table.Levels[0]
	if hall.Weight() != 3 {
		t.Errorf("hall.Weight() = %d, want 3", hall.Weight())
	}
	if table.Levels[1].Weight() != 1 {
		t.Errorf("default build weight = %d, want 1", table.Levels[1].Weight())
	}

	set := hall.Choices()
	if set.Total() != 1 || set.Len() != 2 {
		t.Errorf("Choices total=%d len=%d, want 1 and 2", set.Total(), set.Len())
	}
	if got := set.Choices()[0].Item; got != "/Game/Rooms/HallB" {
		t.Errorf("first choice = %q", got)
	}
}

func TestLevelRowFor(t *testing.T) {
	table, _ := Parse([]byte(sampleTable))

	row, ok := table.LevelRowFor("/Game/Rooms/UEDPIE_0_Hall_LevelInstance_7")
	if !ok || row.Key != "hall" {
		t.Errorf("LevelRowFor = %+v, %v; want hall", row, ok)
	}
	if _, ok := table.LevelRowFor("/Game/Rooms/Vault"); ok {
		t.Error("LevelRowFor should not match an unknown room")
	}
}

func TestBuildChoices(t *testing.T) {
	table, _ := Parse([]byte(sampleTable))
	set := table.BuildChoices()
	if set.Total() != 4 {
		t.Errorf("BuildChoices total = %d, want 4", set.Total())
	}
}

func TestValidateMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing source", "levels:\n  - key: a\n", "missing source"},
		{"negative weight", "levels:\n  - source: /A\n    replacements:\n      - item: /B\n        weight: -1\n", "negative weight"},
		{"empty item", "actors:\n  - class: Crate\n    replacements:\n      - weight: 1\n", "without item"},
		{"missing tag", "tag_filters:\n  - count: 1\n", "missing tag"},
		{"negative count", "tag_filters:\n  - tag: x\n    count: -2\n", "negative count"},
		{"missing class", "actors:\n  - key: c\n", "missing class"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, fault.ErrConfiguration) {
				t.Fatalf("Parse error = %v, want configuration error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("LoadFile error = %v, want configuration error", err)
	}
}

func TestLoadFileNamesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	if err := os.WriteFile(path, []byte("levels:\n  - source: /A\n"), 0644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if table.Name != path {
		t.Errorf("Name = %q, want %q", table.Name, path)
	}
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rooms.yaml")
	if err := os.WriteFile(path, []byte("levels: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("levels:\n  - source: /A\n"), 0644); err != nil {
		t.Fatal(err)
	}

	abs, _ := filepath.Abs(path)
	select {
	case got := <-w.Events:
		if got != abs {
			t.Errorf("event for %q, want %q", got, abs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event after writing the table")
	}
}
