package fetch_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	. "github.com/andrew-torda/molcache/fetch"
)

const atomLine = "ATOM      1  N   ALA A   1      11.104   6.134  -6.504  1.00  0.00           N\n"

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func xzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// archive makes a small PDB mirror, one file in each layout.
func archive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	put := func(name string, b []byte) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, b, 0o644))
	}
	put("bn/pdb1bna.ent.gz", gzipped(t, atomLine))
	put("hh/pdb4hhb.ent.xz", xzipped(t, atomLine))
	put("pdb2abc.ent", []byte(atomLine))
	put("3xyz.pdb.gz", gzipped(t, atomLine))
	return dir
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestArchive(t *testing.T) {
	d := NewArchiveDownloader(archive(t), nil)
	for _, id := range []string{"1BNA", "4hhb", "2abc", "3xyz"} {
		rc, err := d.Download(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, atomLine, readAll(t, rc), id)
	}
}

func TestArchiveMissing(t *testing.T) {
	d := NewArchiveDownloader(archive(t), nil)
	_, err := d.Download(context.Background(), "9zzz")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = d.Download(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrBadID)

	_, err = NewArchiveDownloader("", nil).Download(context.Background(), "1bna")
	assert.ErrorIs(t, err, ErrNoArchive)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Download(ctx, "1bna")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormID(t *testing.T) {
	for _, tc := range []struct {
		in, want string
		ok       bool
	}{
		{"1bna", "1bna", true},
		{" 1BNA\n", "1bna", true},
		{"4hhb", "4hhb", true},
		{"bna1", "", false},
		{"1bn", "", false},
		{"1bn_", "", false},
		{"", "", false},
	} {
		got, err := NormID(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrBadID, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestArchiveFetch(t *testing.T) {
	f, _ := newFetcher(t, NewArchiveDownloader(archive(t), nil), 1<<20)
	rc, err := f.Fetch(context.Background(), "1bna")
	require.NoError(t, err)
	assert.Equal(t, atomLine, readAll(t, rc))
}
