package molcli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tripep = "../../pdb/testdata/tripep.pdb"

type fakeDownloader struct{ text []byte }

func (d fakeDownloader) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(d.text)), nil
}

// run executes the tool with a private cache directory.
func run(t *testing.T, app *App, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	app.Out, app.Err = &out, &errOut
	status := app.Execute(args)
	return status, out.String(), errOut.String()
}

func testApp(t *testing.T) *App {
	t.Setenv("MOLCACHE_CACHE_DIR", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("MOLCACHE_LOG_LEVEL", "error")
	text, err := os.ReadFile(tripep)
	require.NoError(t, err)
	return &App{Downloader: fakeDownloader{text}}
}

func TestParse(t *testing.T) {
	app := testApp(t)
	status, out, _ := run(t, app, "parse", "--alloc", tripep)
	require.Equal(t, ExitSuccess, status)
	assert.Contains(t, out, "tripep\tatoms 12\thetatm 3\tbonds 12\thelices 1")
	assert.Contains(t, out, "ribbon buffer")

	status, _, errOut := run(t, app, "parse", tripep, "nothere.pdb")
	assert.Equal(t, ExitFailure, status)
	assert.Contains(t, errOut, "nothere.pdb")
}

func TestFetchAndCache(t *testing.T) {
	app := testApp(t)
	status, out, _ := run(t, app, "fetch", "1BNA", "4hhb")
	require.Equal(t, ExitSuccess, status)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "1bna\tatoms 12"))
	assert.True(t, strings.HasPrefix(lines[1], "4hhb\t"))

	status, out, _ = run(t, app, "cache", "stat")
	require.Equal(t, ExitSuccess, status)
	assert.Contains(t, out, "entries\t2")

	status, _, _ = run(t, app, "cache", "rm", "1bna")
	require.Equal(t, ExitSuccess, status)
	_, out, _ = run(t, app, "cache", "stat")
	assert.Contains(t, out, "entries\t1")

	status, _, errOut := run(t, app, "fetch", "nope")
	assert.Equal(t, ExitFailure, status)
	assert.Contains(t, errOut, "nope")

	status, _, _ = run(t, app, "cache", "clear")
	require.Equal(t, ExitSuccess, status)
	_, out, _ = run(t, app, "cache", "stat")
	assert.Contains(t, out, "entries\t0")
}

func TestScan(t *testing.T) {
	app := testApp(t)
	top := t.TempDir()
	text, err := os.ReadFile(tripep)
	require.NoError(t, err)
	for _, d := range []string{"aa", "bb", "cc"} {
		require.NoError(t, os.Mkdir(filepath.Join(top, d), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(top, d, "pdb1"+d+"x.ent"), text, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(top, "junk.txt"), []byte("nothing\n"), 0o644))

	status, out, _ := run(t, app, "scan", "-r", "2", top)
	require.Equal(t, ExitSuccess, status)
	assert.Contains(t, out, "files 4\tfailed 1\tatoms 45")

	status, out, _ = run(t, app, "scan", "-d", "1", top)
	require.Equal(t, ExitSuccess, status)
	assert.Contains(t, out, "files 1\tfailed 1\tatoms 0")

	csv := filepath.Join(t.TempDir(), "attypes.csv")
	status, _, _ = run(t, app, "scan", "--attypes", csv, top)
	require.Equal(t, ExitSuccess, status)
	b, err := os.ReadFile(csv)
	require.NoError(t, err)
	want := `"name","n"
"O",12
"C",9
"CA",9
"N",9
"C1",3
"O1",3
`
	assert.Equal(t, want, string(b))
}

func TestFetchArchive(t *testing.T) {
	app := testApp(t)
	app.Downloader = nil
	arch := t.TempDir()
	text, err := os.ReadFile(tripep)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(arch, "bn"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(arch, "bn", "pdb1bna.ent"), text, 0o644))

	status, _, errOut := run(t, app, "fetch", "1bna")
	assert.Equal(t, ExitFailure, status)
	assert.Contains(t, errOut, "archive")

	status, out, _ := run(t, app, "fetch", "--archive", arch, "1bna")
	require.Equal(t, ExitSuccess, status)
	assert.True(t, strings.HasPrefix(out, "1bna\tatoms 12"))

	t.Setenv("MOLCACHE_ARCHIVE", arch)
	status, _, errOut = run(t, app, "fetch", "1bna", "2abc")
	assert.Equal(t, ExitFailure, status)
	assert.Contains(t, errOut, "2abc")
}

func TestConfigInit(t *testing.T) {
	app := testApp(t)
	path := filepath.Join(t.TempDir(), "m.yaml")
	status, out, _ := run(t, app, "config", "init", path)
	require.Equal(t, ExitSuccess, status)
	assert.Contains(t, out, path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "cache_size: 10 MiB")

	status, _, _ = run(t, app, "-c", path, "cache", "stat")
	assert.Equal(t, ExitSuccess, status)

	status, _, errOut := run(t, app, "--log-level", "chatty", "cache", "stat")
	assert.Equal(t, ExitFailure, status)
	assert.Contains(t, errOut, "chatty")
}
