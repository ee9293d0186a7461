package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/graphfill/internal/sqlite"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

const blogDoc = `{
  "data": {
    "users": [
      {
        "id": "u1",
        "name": "Ada",
        "email": "ada@example.com",
        "posts": [
          {"id": "p1", "title": "Hello", "tags": [{"id": "t1", "name": "go", "pivot": {"status": "live"}}]}
        ]
      }
    ]
  }
}`

// workspace is a config and data directory pair for CLI runs.
type workspace struct {
	t         *testing.T
	configDir string
	dataDir   string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	w := &workspace{
		t:         t,
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
	}
	out, err := w.run("", "init", "--sample")
	require.NoError(t, err)
	require.Contains(t, out, "graphfill initialized successfully")
	return w
}

// run executes the CLI with the workspace directories and stdin.
func (w *workspace) run(stdin string, args ...string) (string, error) {
	w.t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config-dir", w.configDir, "--data-dir", w.dataDir}, args...))
	err := root.Execute()
	return out.String(), err
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	require.NoError(t, sc.Err())
	return n
}

func TestVersion(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "graphfill v"+Version)
}

func TestInitWritesConfigAndDatabase(t *testing.T) {
	w := newWorkspace(t)

	for _, name := range []string{configFileExt, defaultCatalogFile, defaultSchemaFile} {
		_, err := os.Stat(filepath.Join(w.configDir, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(w.dataDir, sqlite.DBFile))
	assert.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(w.configDir, configFileExt))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "schema: schema.sql")

	// A second init keeps the existing files.
	out, err := w.run("", "init", "--sample")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized")
}

func TestFillExportImport(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(blogDoc, "fill", "--type", "User", "--path", "data.users")
	require.NoError(t, err)
	assert.Contains(t, out, "User#u1")
	assert.Contains(t, out, "wrote 3 records, deleted 0, 1 join updates")

	// A dry run writes nothing.
	out, err = w.run(`{"id": "u2", "name": "Grace"}`, "fill", "--type", "User", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would write 1 records")

	snap := filepath.Join(t.TempDir(), "snap")
	out, err = w.run("", "export", "--out", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "exported")
	assert.Equal(t, 1, countLines(t, filepath.Join(snap, "users.jsonl")))
	assert.Equal(t, 1, countLines(t, filepath.Join(snap, "post_tag.jsonl")))

	fresh := &workspace{t: t, configDir: w.configDir, dataDir: filepath.Join(t.TempDir(), "restored")}
	out, err = fresh.run("", "import", "--in", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 4 rows, skipped 0")
}

func TestFillFromFileWithJSONOutput(t *testing.T) {
	w := newWorkspace(t)
	input := filepath.Join(t.TempDir(), "posts.json")
	doc := `[{"id": 7, "title": "Seven", "user": {"id": "u1", "name": "Ada"}}, {"id": 8, "title": "Eight"}]`
	require.NoError(t, os.WriteFile(input, []byte(doc), 0o644))

	out, err := w.run("", "--json", "fill", "-t", "Post", "-f", input)
	require.NoError(t, err)

	var res fillResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"Post#7", "Post#8"}, res.Roots)
	assert.Equal(t, 3, res.Persisted)
	assert.False(t, res.DryRun)
}

func TestFillMappingErrorIsUserError(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(`{"name": "Ada", "posts": {"title": "not a list"}}`, "fill", "--type", "User")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMapping)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestDecodeDocuments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		path    string
		want    int
		wantErr bool
	}{
		{name: "object", raw: `{"a": 1}`, want: 1},
		{name: "array", raw: `[{"a": 1}, {"a": 2}]`, want: 2},
		{name: "path", raw: `{"x": {"y": [{"a": 1}]}}`, path: "x.y", want: 1},
		{name: "missing path", raw: `{"x": 1}`, path: "nope", wantErr: true},
		{name: "scalar", raw: `42`, wantErr: true},
		{name: "array of scalars", raw: `[1, 2]`, wantErr: true},
		{name: "malformed", raw: `{"a":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := decodeDocuments([]byte(tt.raw), tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, docs, tt.want)
		})
	}
}

func TestDecodeDocumentsKeepsIntegers(t *testing.T) {
	docs, err := decodeDocuments([]byte(`{"id": 12345678901234567}`), "")
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567", types.KeyString(docs[0]["id"]))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitSuccess},
		{name: "mapping", err: fmt.Errorf("x: %w", types.ErrMapping), want: exitUserError},
		{name: "unknown type", err: types.ErrUnknownType, want: exitUserError},
		{name: "flush", err: fmt.Errorf("%w: disk", types.ErrFlush), want: exitSysError},
		{name: "explicit user", err: userError(errors.New("bad flag")), want: exitUserError},
		{name: "explicit system", err: sysError(types.ErrMapping), want: exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
