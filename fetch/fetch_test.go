package fetch_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-torda/molcache/disklru"
	. "github.com/andrew-torda/molcache/fetch"
	"github.com/andrew-torda/molcache/pdb"
)

// fakeDownloader hands out the same text for every id. If release is
// set, downloads wait for it to be closed.
type fakeDownloader struct {
	text    []byte
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (d *fakeDownloader) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	d.calls.Add(1)
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return io.NopCloser(bytes.NewReader(d.text)), nil
}

func tripep(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile("../pdb/testdata/tripep.pdb")
	require.NoError(t, err)
	return b
}

func countAtomLines(text []byte) int {
	n := 0
	for _, line := range strings.Split(string(text), "\n") {
		if strings.HasPrefix(line, "ATOM  ") || strings.HasPrefix(line, "HETATM") {
			n++
		}
	}
	return n
}

func newFetcher(t *testing.T, dl Downloader, maxSize int64) (*Fetcher, *Metrics) {
	t.Helper()
	cache, err := disklru.Open(t.TempDir(), AppVersion, ValueCount, maxSize)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	m := NewMetrics(prometheus.NewRegistry())
	f, err := New(cache, dl, WithMetrics(m))
	require.NoError(t, err)
	return f, m
}

func TestNew(t *testing.T) {
	_, err := New(nil, &fakeDownloader{})
	assert.Error(t, err)
	cache, err := disklru.Open(t.TempDir(), AppVersion, ValueCount, 100)
	require.NoError(t, err)
	defer cache.Close()
	_, err = New(cache, nil)
	assert.Error(t, err)
}

func TestEndToEnd(t *testing.T) {
	text := tripep(t)
	dl := &fakeDownloader{text: text}
	f, m := newFetcher(t, dl, 1<<20)
	ctx := context.Background()

	snap, err := f.Cache().Get("1bna")
	require.NoError(t, err)
	assert.Nil(t, snap)

	rc, err := f.Fetch(ctx, "1BNA")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, text, got)
	assert.Equal(t, int32(1), dl.calls.Load())

	snap, err = f.Cache().Get("1bna")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(len(text)), snap.Len(0))
	s, err := snap.String(0)
	require.NoError(t, err)
	assert.Equal(t, string(text), s)
	require.NoError(t, snap.Close())

	mol := pdb.NewMolecule()
	stats, err := f.Load(ctx, "1bna", mol)
	require.NoError(t, err)
	assert.Equal(t, countAtomLines(text), mol.NAtoms())
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, "1bna", mol.Name)
	assert.True(t, mol.Centered)
	assert.InDelta(t, 5.8, mol.Center.X, 1e-3)
	assert.InDelta(t, -5.8, mol.Atoms[1].Pos.X, 1e-3)
	assert.Equal(t, int32(1), dl.calls.Load(), "second fetch comes from the cache")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("ok")))
	assert.Equal(t, 0, f.Cache().OpenSnapshots())
}

func TestFetchBadID(t *testing.T) {
	dl := &fakeDownloader{text: []byte("x")}
	f, _ := newFetcher(t, dl, 100)
	for _, id := range []string{"", "1bn", "1bnaa", "../x", "abcd"} {
		_, err := f.Fetch(context.Background(), id)
		assert.ErrorIs(t, err, ErrBadID, id)
	}
	assert.Equal(t, int32(0), dl.calls.Load())
}

func TestDownloadFails(t *testing.T) {
	boom := errors.New("no network")
	dl := &fakeDownloader{err: boom}
	f, m := newFetcher(t, dl, 1<<20)
	ctx := context.Background()

	_, err := f.Fetch(ctx, "1abc")
	assert.ErrorIs(t, err, boom)
	_, err = f.Load(ctx, "1abc", pdb.NewMolecule())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Downloads.WithLabelValues("error")))
	assert.Equal(t, 0, f.Cache().Len())

	// Nothing was left half written.
	ed, err := f.Cache().Edit("1abc")
	require.NoError(t, err)
	require.NoError(t, ed.Abort())
}

func TestNotPDB(t *testing.T) {
	dl := &fakeDownloader{text: []byte("<html>not here</html>\n")}
	f, _ := newFetcher(t, dl, 1<<20)
	_, err := f.Load(context.Background(), "1abc", pdb.NewMolecule())
	assert.ErrorIs(t, err, pdb.ErrEmptyMolecule)
}

func TestTooBigForCache(t *testing.T) {
	text := tripep(t)
	dl := &fakeDownloader{text: text}
	f, m := newFetcher(t, dl, 100)
	mol := pdb.NewMolecule()
	_, err := f.Load(context.Background(), "1abc", mol)
	require.NoError(t, err)
	assert.Equal(t, countAtomLines(text), mol.NAtoms())
	assert.Equal(t, 0, f.Cache().Len())
	assert.Equal(t, int64(0), f.Cache().Size())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWriteFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("ok")))

	// Nothing was kept, so the next load downloads again.
	_, err = f.Load(context.Background(), "1abc", mol)
	require.NoError(t, err)
	assert.Equal(t, int32(2), dl.calls.Load())
}

func TestCacheBusy(t *testing.T) {
	text := tripep(t)
	dl := &fakeDownloader{text: text}
	f, m := newFetcher(t, dl, 1<<20)
	ed, err := f.Cache().Edit("1abc")
	require.NoError(t, err)
	defer ed.Abort()

	rc, err := f.Fetch(context.Background(), "1abc")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, text, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWriteFailures))

	// A closed cache is no use, but the download still gets through.
	require.NoError(t, ed.Abort())
	require.NoError(t, f.Cache().Close())
	mol := pdb.NewMolecule()
	_, err = f.Load(context.Background(), "1bna", mol)
	require.NoError(t, err)
	assert.Equal(t, countAtomLines(text), mol.NAtoms())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheWriteFailures))
}

func TestSharedDownload(t *testing.T) {
	text := tripep(t)
	dl := &fakeDownloader{text: text, release: make(chan struct{})}
	f, _ := newFetcher(t, dl, 1<<20)

	const n = 8
	var wg sync.WaitGroup
	got := make([][]byte, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc, err := f.Fetch(context.Background(), "2abc")
			if err != nil {
				errs[i] = err
				return
			}
			defer rc.Close()
			got[i], errs[i] = io.ReadAll(rc)
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(dl.release)
	wg.Wait()
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, text, got[i])
	}
	assert.Equal(t, int32(1), dl.calls.Load())
}

func TestWorker(t *testing.T) {
	dl := &fakeDownloader{text: tripep(t)}
	f, _ := newFetcher(t, dl, 1<<20)
	w := NewWorker(f, 4)
	go w.Run(context.Background())

	mine := pdb.NewMolecule()
	w.Requests() <- Request{ID: "1abc", Mol: mine}
	w.Requests() <- Request{ID: "bad"}
	w.Requests() <- Request{ID: "1abd"}
	close(w.Requests())

	var results []Result
	for r := range w.Results() {
		results = append(results, r)
	}
	require.Len(t, results, 3)
	assert.Equal(t, "1abc", results[0].ID)
	assert.NoError(t, results[0].Err)
	assert.Same(t, mine, results[0].Mol)
	assert.Equal(t, 15, results[0].Mol.NAtoms())
	assert.ErrorIs(t, results[1].Err, ErrBadID)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 15, results[2].Stats.Atoms+results[2].Stats.Hetatms)
}

func TestWorkerCancelled(t *testing.T) {
	dl := &fakeDownloader{text: tripep(t)}
	f, _ := newFetcher(t, dl, 1<<20)
	w := NewWorker(f, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go w.Run(ctx)
	w.Requests() <- Request{ID: "1abc"}
	close(w.Requests())
	r := <-w.Results()
	assert.ErrorIs(t, r.Err, context.Canceled)
	_, ok := <-w.Results()
	assert.False(t, ok)
}

func TestOpenCache(t *testing.T) {
	dir := t.TempDir() + "/sub"
	c, err := OpenCache(dir, 1<<20, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, dir, c.Dir())
	assert.Equal(t, int64(1<<20), c.MaxSize())
}
