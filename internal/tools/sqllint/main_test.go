package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLintFileAcceptsMarkedAndConcatenatedQueries(t *testing.T) {
	path := writeGo(t, t.TempDir(), "q.go", "package q\n\n"+
		"const cols = `id, channel`\n\n"+
		"const QOne = `--sql 8e23ceda-b9db-4d89-b47a-24f12b137ff9\nselect 1;`\n\n"+
		"const QTwo = `--sql fd9a5280-5cae-43c5-a5ee-b4f8961bc935\nselect ` + cols + `\nfrom slack_event;`\n")

	vs, err := lintFile(path, map[string]string{})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(vs) != 0 {
		t.Fatalf("expected no violations, got %+v", vs)
	}
}

func TestLintFileFlagsMissingMarker(t *testing.T) {
	path := writeGo(t, t.TempDir(), "q.go", "package q\n\n"+
		"const cols = `id`\n\n"+
		"const QBare = \"select 1\"\n\n"+
		"const QConcat = cols + ` from slack_event where id = 1 and x in (select 2)`\n")

	vs, err := lintFile(path, map[string]string{})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(vs) != 2 {
		t.Fatalf("expected 2 violations, got %+v", vs)
	}
	if vs[0].name != "QBare" || vs[1].name != "QConcat" {
		t.Fatalf("unexpected names %+v", vs)
	}
}

func TestLintFileFlagsDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	seen := map[string]string{}
	marker := "--sql 49e42720-3f48-49aa-b2c5-b6693f4a0f00"
	a := writeGo(t, dir, "a.go", "package q\n\nconst QA = `"+marker+"\nupdate t set x = 1;`\n")
	b := writeGo(t, dir, "b.go", "package q\n\nconst QB = `"+marker+"\ndelete from t;`\n")

	if vs, _ := lintFile(a, seen); len(vs) != 0 {
		t.Fatalf("first use is fine: %+v", vs)
	}
	vs, _ := lintFile(b, seen)
	if len(vs) != 1 || !strings.Contains(vs[0].message, "QA") {
		t.Fatalf("expected duplicate marker violation, got %+v", vs)
	}
}
