// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leseb/quizsearch/pkg/bootstrap"
	"github.com/leseb/quizsearch/pkg/embedding/embeddingtest"
	"github.com/leseb/quizsearch/pkg/search"
)

const testDims = 16

// writeConfig writes a config using on-disk vector and snapshot stores so
// state survives between command invocations.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
embedding:
  dimensions: %d
vector_store:
  type: sqlite
  path: %s
snapshot:
  type: filesystem
  base_dir: %s
`, testDims, filepath.Join(dir, "vectors.db"), filepath.Join(dir, "snapshots"))

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(bootstrap.Options{Provider: embeddingtest.NewHashing(testDims)})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const quizzesJSON = `[
  {"id": "q1", "title": "Intro to Algebra", "description": "Solving linear equations", "tags": ["math"], "status": "published",
   "questions": [{"text": "Solve 2x = 4", "options": ["1", "2"]}]},
  {"id": "q2", "title": "Cell Biology", "tags": ["biology"]},
  {"id": "q3"}
]`

func TestImport(t *testing.T) {
	cfg := writeConfig(t)
	file := filepath.Join(t.TempDir(), "quizzes.json")
	if err := os.WriteFile(file, []byte(quizzesJSON), 0o644); err != nil {
		t.Fatalf("write quizzes: %v", err)
	}

	out, err := run(t, "--config", cfg, "import", file)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 3 quizzes") {
		t.Errorf("missing import summary in %q", out)
	}
	if !strings.Contains(out, "Embedded 2 quizzes (1 failed)") {
		t.Errorf("missing embedding summary in %q", out)
	}
	if !strings.Contains(out, "q3:") {
		t.Errorf("expected failure line for q3 in %q", out)
	}
}

func TestSnapshotCommands(t *testing.T) {
	cfg := writeConfig(t)
	file := filepath.Join(t.TempDir(), "quizzes.json")
	if err := os.WriteFile(file, []byte(quizzesJSON), 0o644); err != nil {
		t.Fatalf("write quizzes: %v", err)
	}
	if _, err := run(t, "--config", cfg, "import", file); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := run(t, "--config", cfg, "snapshot", "export")
	if err != nil {
		t.Fatalf("snapshot export: %v", err)
	}
	if !strings.Contains(out, "Exported 2 embeddings") {
		t.Fatalf("unexpected export output %q", out)
	}

	out, err = run(t, "--config", cfg, "snapshot", "list")
	if err != nil {
		t.Fatalf("snapshot list: %v", err)
	}
	name := strings.Fields(out)[0]
	if !strings.HasPrefix(name, "embeddings-") {
		t.Fatalf("unexpected snapshot listing %q", out)
	}

	out, err = run(t, "--config", cfg, "snapshot", "restore", name)
	if err != nil {
		t.Fatalf("snapshot restore: %v", err)
	}
	if !strings.Contains(out, "Restored 2 embeddings") {
		t.Errorf("unexpected restore output %q", out)
	}

	if _, err := run(t, "--config", cfg, "snapshot", "restore", "embeddings-missing.jsonl"); err == nil {
		t.Error("expected restoring an unknown snapshot to fail")
	}
}

func TestSearch_JSON(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "search", "anything", "--json")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var resp search.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output: %v (%q)", err, out)
	}
	if resp.Tier != search.TierText || len(resp.Results) != 0 {
		t.Errorf("expected empty keyword fallback, got %+v", resp)
	}
}

func TestSimilar_UnknownQuiz(t *testing.T) {
	if _, err := run(t, "--config", writeConfig(t), "similar", "missing"); err == nil {
		t.Error("expected an error for an unknown quiz")
	}
}

func TestReindex_EmptyStore(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "reindex")
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if !strings.Contains(out, "Quizzes scanned:    0") {
		t.Errorf("unexpected reindex output %q", out)
	}
}

func TestReadQuizzes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr bool
	}{
		{name: "array", input: `[{"id":"a"},{"id":"b"}]`, wantIDs: []string{"a", "b"}},
		{name: "json lines", input: "{\"id\":\"a\"}\n{\"id\":\"b\"}\n", wantIDs: []string{"a", "b"}},
		{name: "leading whitespace", input: "\n  [{\"id\":\"a\"}]", wantIDs: []string{"a"}},
		{name: "missing id", input: `[{"title":"x"}]`, wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
		{name: "malformed", input: `[{"id":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readQuizzes(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %d quizzes", len(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("readQuizzes: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("expected %d quizzes, got %d", len(tt.wantIDs), len(got))
			}
			for i, q := range got {
				if q.ID != tt.wantIDs[i] {
					t.Errorf("quiz %d: expected %s, got %s", i, tt.wantIDs[i], q.ID)
				}
				if q.Status != "published" {
					t.Errorf("expected default status published, got %q", q.Status)
				}
			}
		})
	}
}

func TestConfigErrorsAreFatal(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("search:\n  fallback_similarity: 1.5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	for name, path := range map[string]string{
		"invalid value": invalid,
		"missing file":  filepath.Join(dir, "nope.yaml"),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := run(t, "--config", path, "search", "algebra"); err == nil {
				t.Fatal("expected config error, got nil")
			}
		})
	}
}
