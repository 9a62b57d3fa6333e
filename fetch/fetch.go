// Package fetch gets PDB coordinates, from the disk cache if they are
// there and from a Downloader if not. A download is read to the end
// before anybody sees it, so the parser never gets half a file. It then
// goes into the cache and is read back from there. If the cache will not
// take it, the caller gets the downloaded text directly.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/andrew-torda/molcache/disklru"
	"github.com/andrew-torda/molcache/pdb"
)

// Cache layout. One value per key, the uncompressed PDB text.
const (
	AppVersion = 1
	ValueCount = 1
	valueIdx   = 0
)

// Downloader gets the coordinates of one structure.
type Downloader interface {
	Download(ctx context.Context, id string) (io.ReadCloser, error)
}

// Fetcher puts a cache in front of a Downloader. Concurrent requests
// for one id share a single download.
type Fetcher struct {
	cache   *disklru.Cache
	dl      Downloader
	parser  *pdb.Parser
	metrics *Metrics
	log     *logrus.Entry
	group   singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger. Without it nothing is logged.
func WithLogger(log *logrus.Logger) Option {
	return func(f *Fetcher) {
		if log != nil {
			f.log = log.WithField("component", "fetch")
		}
	}
}

// WithMetrics counts hits, misses and downloads.
func WithMetrics(m *Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithParser sets the parser Load uses. The default one centers the
// molecule, which is what a viewer wants.
func WithParser(p *pdb.Parser) Option {
	return func(f *Fetcher) {
		if p != nil {
			f.parser = p
		}
	}
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// New makes a Fetcher. Both the cache and the downloader are needed.
func New(cache *disklru.Cache, dl Downloader, opts ...Option) (*Fetcher, error) {
	if cache == nil {
		return nil, errors.New("fetch: nil cache")
	}
	if dl == nil {
		return nil, errors.New("fetch: nil downloader")
	}
	f := &Fetcher{
		cache:   cache,
		dl:      dl,
		parser:  pdb.NewParser(pdb.WithCentering(true)),
		metrics: NewMetrics(nil),
		log:     discardLogger().WithField("component", "fetch"),
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// snapReader reads one value and closes the snapshot with it.
type snapReader struct {
	io.Reader
	snap *disklru.Snapshot
}

func (r *snapReader) Close() error { return r.snap.Close() }

func openValue(snap *disklru.Snapshot) (io.ReadCloser, error) {
	r, err := snap.Reader(valueIdx)
	if err != nil {
		snap.Close()
		return nil, err
	}
	return &snapReader{Reader: r, snap: snap}, nil
}

// Fetch returns the PDB text for id. The caller must Close it.
func (f *Fetcher) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	key, err := NormID(id)
	if err != nil {
		return nil, err
	}
	snap, err := f.cache.Get(key)
	if err != nil {
		f.log.WithError(err).WithField("id", key).Warn("cache read, downloading instead")
		snap = nil
	}
	if snap != nil {
		f.metrics.Hits.Inc()
		f.log.WithField("id", key).Debug("cache hit")
		return openValue(snap)
	}
	f.metrics.Misses.Inc()

	v, err, shared := f.group.Do(key, func() (interface{}, error) {
		return f.download(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		f.log.WithField("id", key).Debug("shared download")
	}
	got := v.(*downloaded)
	if got.cached {
		snap, err := f.cache.Get(key)
		if err != nil {
			f.log.WithError(err).WithField("id", key).Warn("reading back")
		}
		if snap != nil {
			return openValue(snap)
		}
		// Evicted already. The cache is smaller than it should be.
	}
	return io.NopCloser(bytes.NewReader(got.text)), nil
}

// downloaded is what one download gives all the callers waiting on it.
type downloaded struct {
	text   []byte
	cached bool
}

// download reads one structure completely and then tries to put it in
// the cache. A cache that cannot take it is logged and counted, but is
// not an error.
func (f *Fetcher) download(ctx context.Context, key string) (got *downloaded, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		f.metrics.Downloads.WithLabelValues(result).Inc()
	}()
	start := time.Now()
	rc, err := f.dl.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	got = &downloaded{text: buf.Bytes()}
	f.log.WithFields(logrus.Fields{
		"id":    key,
		"bytes": humanize.Bytes(uint64(len(got.text))),
		"took":  time.Since(start).Round(time.Millisecond),
	}).Info("downloaded")

	if err := f.store(key, got.text); err != nil {
		f.metrics.CacheWriteFailures.Inc()
		f.log.WithError(err).WithField("id", key).Warn("not cached")
		return got, nil
	}
	got.cached = true
	return got, nil
}

// store writes text as the only value of key.
func (f *Fetcher) store(key string, text []byte) error {
	ed, err := f.cache.Edit(key)
	if err != nil {
		return err
	}
	defer ed.Abort()
	w, err := ed.NewWriter(valueIdx)
	if err != nil {
		return err
	}
	_, err = w.Write(text)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return ed.Commit()
}

// Load fetches id and parses it into mol. The molecule is named after
// the id.
func (f *Fetcher) Load(ctx context.Context, id string, mol *pdb.Molecule) (pdb.Stats, error) {
	rc, err := f.Fetch(ctx, id)
	if err != nil {
		return pdb.Stats{}, err
	}
	defer rc.Close()
	mol.Name, _ = NormID(id)
	start := time.Now()
	stats, err := f.parser.Parse(rc, mol)
	f.metrics.ParseSeconds.Observe(time.Since(start).Seconds())
	f.metrics.Skipped.Add(float64(stats.Skipped))
	if err != nil {
		return stats, fmt.Errorf("%s: %w", mol.Name, err)
	}
	return stats, nil
}

// Cache is the cache behind the fetcher.
func (f *Fetcher) Cache() *disklru.Cache { return f.cache }
