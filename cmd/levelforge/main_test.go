package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testCatalog = `
levels:
  - path: /Game/Rooms/Corridor
    actors:
      - {name: In, class: Gateway, entry: true, location: {x: 0, y: -200, z: 0}, yaw: -90}
      - {name: Out, class: Gateway, location: {x: 0, y: 200, z: 0}, yaw: 90}
      - {name: Crate, class: Crate, tags: [Loot]}
  - path: /Game/Rooms/Hall
    actors:
      - {name: In, class: Gateway, entry: true, location: {x: 0, y: -300, z: 0}, yaw: -90}
      - {name: Out, class: Gateway, location: {x: 0, y: 300, z: 0}, yaw: 90}
`

const testTable = `
levels:
  - key: corridor
    source: /Game/Rooms/Corridor
    build_weight: 1
    replacements:
      - {item: /Game/Rooms/Hall, weight: 1}
`

// setup writes a catalog, table and config into a temp dir and returns
// the flags that point at them.
func setup(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", name, err)
		}
		return path
	}

	catalogPath := write("rooms.yaml", testCatalog)
	tablePath := write("table.yaml", testTable)
	configPath := write("levelforge.yaml", fmt.Sprintf(`
database:
  driver: sqlite
  sqlite_path: %s
generation:
  catalog: %s
`, filepath.Join(dir, "session.db"), catalogPath))

	return []string{
		"-config", configPath,
		"-logging", filepath.Join(dir, "missing-logging.yaml"),
		"-table", tablePath,
	}
}

func runCLI(t *testing.T, flags []string, args ...string) (string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append(append([]string{}, flags...), args...), &stdout, &stderr)
	if code != 0 {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), code
}

func TestBuildPersistsAcrossRuns(t *testing.T) {
	flags := setup(t)

	out, code := runCLI(t, flags, "-seed", "42", "-count", "3", "build")
	if code != 0 {
		t.Fatalf("build exit code = %d, want 0", code)
	}
	if !strings.Contains(out, "seed 42") {
		t.Errorf("build output = %q, want the seed", out)
	}

	out, code = runCLI(t, flags, "status")
	if code != 0 {
		t.Fatalf("status exit code = %d", code)
	}
	if !strings.Contains(out, "3 streamed levels, 3 groups") {
		t.Errorf("status output = %q, want 3 levels and groups restored", out)
	}

	out, code = runCLI(t, flags, "regenerate", "-seed", "7")
	if code != 0 {
		t.Fatalf("regenerate exit code = %d", code)
	}
	if !strings.Contains(out, "3 rooms replaced") {
		t.Errorf("regenerate output = %q, want 3 rooms replaced", out)
	}

	out, code = runCLI(t, flags, "history")
	if code != 0 {
		t.Fatalf("history exit code = %d", code)
	}
	for _, want := range []string{"build", "regenerate", "42", "7"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
}

func TestMergeExport(t *testing.T) {
	flags := setup(t)
	export := filepath.Join(t.TempDir(), "merged.yaml")

	if _, code := runCLI(t, flags, "-seed", "1", "-count", "2", "build"); code != 0 {
		t.Fatalf("build exit code = %d", code)
	}
	if _, code := runCLI(t, flags, "-export", export, "merge"); code != 0 {
		t.Fatalf("merge exit code = %d", code)
	}

	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if n := strings.Count(string(data), "class: Crate"); n != 2 {
		t.Errorf("exported %d crates, want 2:\n%s", n, data)
	}

	out, _ := runCLI(t, flags, "status")
	if !strings.Contains(out, "0 streamed levels, 0 groups") {
		t.Errorf("status after merge = %q, want nothing streamed", out)
	}
}

func TestClearAll(t *testing.T) {
	flags := setup(t)
	if _, code := runCLI(t, flags, "-path", "/Game/Rooms/Hall", "spawn"); code != 0 {
		t.Fatalf("spawn exit code = %d", code)
	}
	if _, code := runCLI(t, flags, "clear"); code != 0 {
		t.Fatalf("clear exit code = %d", code)
	}
	out, _ := runCLI(t, flags, "status")
	if !strings.Contains(out, "0 streamed levels") {
		t.Errorf("status after clear = %q", out)
	}
}

func TestCommandErrors(t *testing.T) {
	flags := setup(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"teleport"}, 1},
		{"zero count", []string{"-count", "0", "build"}, 1},
		{"unknown room", []string{"-path", "/Game/Rooms/Nowhere", "spawn"}, 1},
		{"hash-token without token", []string{"hash-token"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, code := runCLI(t, flags, tt.args...); code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestHashToken(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := hashToken([]string{"secret"}, &stdout, &stderr); code != 0 {
		t.Fatalf("hashToken exit code = %d: %s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "$2a$") {
		t.Errorf("hash = %q, want a bcrypt hash", stdout.String())
	}
}
