package ifacemap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_RunScriptFromDisk(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{"/geo/geo.go": queryFixture}))
	rebuild(t, e)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.risor"), []byte(`
func unimplemented() {
	out := []
	for _, name := range interface_names() {
		if get_implementations(name) == nil {
			out.append(name)
		}
	}
	return out
}
`), 0o644))
	script := filepath.Join(dir, "report.risor")
	require.NoError(t, os.WriteFile(script, []byte(`
import lib
log.Info("running report")
report := {"missing": lib.unimplemented(), "methods": methods_of(target)}
report
`), 0o644))

	result, err := e.RunScript(context.Background(), script,
		WithScriptGlobals(map[string]any{"target": "Shape"}))
	require.NoError(t, err)

	m, ok := result.(map[string]any)
	require.True(t, ok, "got %T", result)
	assert.Empty(t, m["missing"])
	assert.Equal(t, []any{"Area", "Perimeter"}, m["methods"])
}

func TestEngine_RunScriptFromFS(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{"/geo/geo.go": queryFixture}))
	rebuild(t, e)

	fsys := fstest.MapFS{
		"recursive.risor": &fstest.MapFile{Data: []byte(`
out := []
for _, d := range get_declarations("Walk") {
	if d["is_recursive"] {
		out.append(d["location"]["start_line"])
	}
}
out
`)},
	}
	result, err := e.RunScript(context.Background(), "recursive.risor", WithScriptFS(fsys))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(21)}, result)
}

func TestEngine_RunScriptSeesLiveIndex(t *testing.T) {
	t.Parallel()
	src := newMemSource(map[string]string{})
	e := newTestEngine(t, src)
	fsys := fstest.MapFS{"n.risor": &fstest.MapFile{Data: []byte(`len(interface_names())`)}}

	result, err := e.RunScript(context.Background(), "n.risor", WithScriptFS(fsys))
	require.NoError(t, err)
	assert.EqualValues(t, 0, result)

	src.set("/src/shapes.go", shapesFile)
	rebuild(t, e)
	result, err = e.RunScript(context.Background(), "n.risor", WithScriptFS(fsys))
	require.NoError(t, err)
	assert.EqualValues(t, 1, result)
}

func TestEngine_RunScriptErrors(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{}))

	_, err := e.RunScript(context.Background(), filepath.Join(t.TempDir(), "missing.risor"))
	require.Error(t, err)

	fsys := fstest.MapFS{"bad.risor": &fstest.MapFile{Data: []byte(`assert(false, "boom")`)}}
	_, err = e.RunScript(context.Background(), "bad.risor", WithScriptFS(fsys))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
