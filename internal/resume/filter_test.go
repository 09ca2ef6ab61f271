package resume

import (
	"os"
	"path/filepath"
	"testing"

	"mediabatch/internal/model"
)

func items(ids ...string) []model.MediaItem {
	out := make([]model.MediaItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.MediaItem{ID: id, SourceURL: "https://example.com/" + id})
	}
	return out
}

func ids(in []model.MediaItem) []string {
	out := make([]string, 0, len(in))
	for _, it := range in {
		out = append(out, it.ID)
	}
	return out
}

func TestFilterSkipsItemWithValidOutput(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "B.txt"), []byte("already transcribed"), 0o644); err != nil {
		t.Fatal(err)
	}

	kept, skipped, err := Filter(items("A", "B", "C"), Check{OutputDir: dir, Ext: ".txt"})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if got := ids(kept); len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Fatalf("kept = %v, want [A C]", got)
	}
	if got := ids(skipped); len(got) != 1 || got[0] != "B" {
		t.Fatalf("skipped = %v, want [B]", got)
	}
}

func TestFilterRedoesEmptyAndForeignArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "A.mp4"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "B.txt"), []byte("transcript"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "C.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	kept, skipped, err := Filter(items("A", "B", "C"), Check{OutputDir: dir, Ext: ".mp4"})
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 3 || len(skipped) != 0 {
		t.Fatalf("expected all items kept, got kept=%v skipped=%v", ids(kept), ids(skipped))
	}
}

func TestFilterCollapsesDuplicateIDs(t *testing.T) {
	kept, _, err := Filter(items("A", "B", "A"), Check{OutputDir: t.TempDir(), Ext: ".txt"})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(kept); len(got) != 2 {
		t.Fatalf("expected duplicates collapsed, got %v", got)
	}
}

func TestMinWordsPredicate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "short.txt"), []byte("  one two  "), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "long.txt"), []byte("one two three four"), 0o644); err != nil {
		t.Fatal(err)
	}

	kept, skipped, err := Filter(items("short", "long"), Check{OutputDir: dir, Ext: ".txt", Valid: MinWords(3)})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(kept); len(got) != 1 || got[0] != "short" {
		t.Fatalf("kept = %v, want [short]", got)
	}
	if got := ids(skipped); len(got) != 1 || got[0] != "long" {
		t.Fatalf("skipped = %v, want [long]", got)
	}
}

func TestFilterRejectsMissingID(t *testing.T) {
	if _, _, err := Filter([]model.MediaItem{{SourceURL: "x"}}, Check{OutputDir: t.TempDir(), Ext: ".txt"}); err == nil {
		t.Fatalf("expected item without id to fail")
	}
}

func TestFilterRejectsIDsEscapingOutputDir(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	// Would be taken as done if the id were allowed to climb out.
	if err := os.WriteFile(filepath.Join(root, "pwned.txt"), []byte("elsewhere"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"../pwned", "nested/a", ".hidden"} {
		_, _, err := Filter(items("ok", id), Check{OutputDir: out, Ext: ".txt"})
		if err == nil {
			t.Fatalf("expected id %q to be rejected", id)
		}
	}
}

func TestExistsAcceptsEmptyArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "silent.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "odd.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	kept, skipped, err := Filter(items("silent", "odd", "new"), Check{OutputDir: dir, Ext: ".txt", Valid: Exists})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(skipped); len(got) != 1 || got[0] != "silent" {
		t.Fatalf("skipped = %v, want [silent]", got)
	}
	if got := ids(kept); len(got) != 2 {
		t.Fatalf("kept = %v, want [odd new]", got)
	}
}
