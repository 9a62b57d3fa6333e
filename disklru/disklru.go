// Package disklru is a size-bounded cache of files on disk. Each entry
// has a key and a fixed number of values. Every change is written to a
// journal first, so the cache can be rebuilt after a crash.
package disklru

import (
	"container/list"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const (
	journalFile = "journal"
	journalTmp  = "journal.tmp"
	journalBkp  = "journal.bkp"
	magic       = "libcore.io.DiskLruCache"
	version     = "1"

	opClean  = "CLEAN"
	opDirty  = "DIRTY"
	opRemove = "REMOVE"
	opRead   = "READ"

	// DfltCompactThreshold is how many redundant journal lines we put
	// up with before rewriting the journal.
	DfltCompactThreshold = 2000
)

// Keys become file names, so they are kept to a safe alphabet.
// Upper case is left out so two keys never map to one file on a case
// insensitive file system.
var keyPattern = regexp.MustCompile(`^[a-z0-9_-]{1,120}$`)

func validKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// entry is the in-memory state of one key.
type entry struct {
	key      string
	lengths  []int64
	readable bool  // committed at least once
	editGen  int64 // generation of the open editor, 0 if none
	editor   *Editor
	seq      int64 // changes on every commit, so snapshots can spot edits
	elem     *list.Element
}

func (e *entry) cleanFile(dir string, i int) string {
	return filepath.Join(dir, e.key+"."+strconv.Itoa(i))
}

func (e *entry) dirtyFile(dir string, i int) string {
	return filepath.Join(dir, e.key+"."+strconv.Itoa(i)+".tmp")
}

func (e *entry) total() int64 {
	var n int64
	for _, l := range e.lengths {
		n += l
	}
	return n
}

// Cache is safe for use by several goroutines. Snapshot readers work
// on open files outside the lock.
type Cache struct {
	mu               sync.Mutex
	dir              string
	appVersion       int
	valueCount       int
	maxSize          int64
	size             int64
	compactThreshold int
	entries          map[string]*entry
	lru              *list.List // front is most recently used
	journal          *journalWriter
	redundantOps     int
	nextGen          int64
	nextSeq          int64
	openSnaps        int
	closed           bool
	log              *logrus.Entry
}

// Option changes how a cache is opened.
type Option func(*Cache)

// WithLogger sends the cache's messages to log. Without it, nothing is
// logged.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log.WithField("cache", c.dir)
		}
	}
}

// WithCompactThreshold sets how many redundant journal lines trigger
// a rewrite of the journal.
func WithCompactThreshold(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.compactThreshold = n
		}
	}
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Open opens the cache in dir, creating it if need be. A journal
// written by a different appVersion or valueCount, or one we cannot
// read, is thrown away along with everything in dir.
func Open(dir string, appVersion, valueCount int, maxSize int64, opts ...Option) (*Cache, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("disklru: maxSize %d must be positive", maxSize)
	}
	if valueCount < 1 {
		return nil, fmt.Errorf("disklru: valueCount %d must be at least 1", valueCount)
	}
	c := &Cache{
		dir:              dir,
		appVersion:       appVersion,
		valueCount:       valueCount,
		maxSize:          maxSize,
		compactThreshold: DfltCompactThreshold,
		entries:          make(map[string]*entry),
		lru:              list.New(),
	}
	c.log = discardLogger().WithField("cache", dir)
	for _, o := range opts {
		o(c)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("disklru: %w", err)
	}
	if err := recoverBackup(dir); err != nil {
		return nil, fmt.Errorf("disklru: %w", err)
	}

	err := c.readJournal()
	switch {
	case err == nil:
	case os.IsNotExist(err):
		err = c.rebuildJournal()
	default:
		c.log.WithError(err).Warn("journal unusable, starting again")
		c.reset()
		if err = removeContents(dir); err == nil {
			err = c.rebuildJournal()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("disklru: opening %s: %w", dir, err)
	}
	c.trimToSize()
	c.log.WithFields(logrus.Fields{
		"entries": len(c.entries),
		"size":    humanize.Bytes(uint64(c.size)),
		"max":     humanize.Bytes(uint64(c.maxSize)),
	}).Info("cache open")
	return c, nil
}

// recoverBackup deals with a compaction that was cut short. If the
// journal is there, the backup is stale. If not, the backup is all we
// have.
func recoverBackup(dir string) error {
	bkp := filepath.Join(dir, journalBkp)
	if _, err := os.Stat(bkp); err != nil {
		return nil
	}
	jfile := filepath.Join(dir, journalFile)
	if _, err := os.Stat(jfile); err == nil {
		return os.Remove(bkp)
	}
	return os.Rename(bkp, jfile)
}

// removeContents empties dir but leaves it in place.
func removeContents(dir string) error {
	names, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, d := range names {
		if err := os.RemoveAll(filepath.Join(dir, d.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) reset() {
	clear(c.entries)
	c.lru.Init()
	c.size = 0
	c.redundantOps = 0
}

// Dir is the directory the cache lives in.
func (c *Cache) Dir() string { return c.dir }

// MaxSize is the most bytes the cache will keep.
func (c *Cache) MaxSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxSize
}

// SetMaxSize changes the capacity. Entries are evicted at once if the
// cache is now too big.
func (c *Cache) SetMaxSize(n int64) error {
	if n <= 0 {
		return fmt.Errorf("disklru: maxSize %d must be positive", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = n
	if c.closed {
		return nil
	}
	c.trimToSize()
	return c.journal.flush()
}

// Size is the number of bytes in committed values.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len is the number of readable entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.readable {
			n++
		}
	}
	return n
}

// OpenSnapshots is the number of snapshots not yet closed.
func (c *Cache) OpenSnapshots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openSnaps
}

// Get returns a snapshot of the entry for key, or nil if there is no
// readable entry. The caller must Close the snapshot.
func (c *Cache) Get(key string) (*Snapshot, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	e, ok := c.entries[key]
	if !ok || !e.readable {
		return nil, nil
	}
	files := make([]*os.File, c.valueCount)
	for i := range files {
		fp, err := os.Open(e.cleanFile(c.dir, i))
		if err != nil {
			for _, f := range files[:i] {
				f.Close()
			}
			// Someone deleted our file. Forget the entry.
			c.log.WithError(err).WithField("key", key).Warn("value file missing")
			if e.editGen == 0 {
				c.removeEntry(e)
			}
			return nil, nil
		}
		files[i] = fp
	}
	c.lru.MoveToFront(e.elem)
	c.redundantOps++
	if err := c.journal.line(opRead, key); err != nil {
		for _, f := range files {
			f.Close()
		}
		return nil, fmt.Errorf("disklru: %w", err)
	}
	c.maybeCompact()
	c.openSnaps++
	return &Snapshot{
		c:       c,
		key:     key,
		seq:     e.seq,
		files:   files,
		lengths: append([]int64(nil), e.lengths...),
	}, nil
}

// Edit starts an edit of the entry for key. Only one editor per key may
// be open at a time.
func (c *Cache) Edit(key string) (*Editor, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edit(key, -1)
}

// edit does the work of Edit. If seq is not -1, the edit only goes
// ahead if the entry has not been changed since seq.
func (c *Cache) edit(key string, seq int64) (*Editor, error) {
	if c.closed {
		return nil, ErrClosed
	}
	e, ok := c.entries[key]
	if seq != -1 && (!ok || e.seq != seq) {
		return nil, ErrStaleEditor
	}
	if ok && e.editGen != 0 {
		return nil, fmt.Errorf("%w: %s", ErrEditInProgress, key)
	}
	if !ok {
		e = &entry{key: key, lengths: make([]int64, c.valueCount)}
		e.elem = c.lru.PushFront(e)
		c.entries[key] = e
	}
	c.nextGen++
	e.editGen = c.nextGen
	ed := &Editor{
		c:       c,
		key:     key,
		gen:     e.editGen,
		written: make([]bool, c.valueCount),
		writers: make([]*valueWriter, c.valueCount),
	}
	e.editor = ed
	// The DIRTY line must be on disk before any file is.
	if err := c.journal.line(opDirty, key); err != nil {
		e.editGen, e.editor = 0, nil
		if !e.readable {
			c.dropEntry(e)
		}
		return nil, fmt.Errorf("disklru: %w", err)
	}
	return ed, nil
}

// Remove drops the entry for key. It returns false if there was no
// readable entry or if the entry is being edited.
func (c *Cache) Remove(key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	e, ok := c.entries[key]
	if !ok || e.editGen != 0 || !e.readable {
		return false, nil
	}
	if err := c.removeEntry(e); err != nil {
		return false, err
	}
	c.maybeCompact()
	return true, nil
}

// removeEntry deletes a readable entry and its files and says so in
// the journal. The caller holds the lock.
func (c *Cache) removeEntry(e *entry) error {
	var firstErr error
	for i := 0; i < c.valueCount; i++ {
		if err := os.Remove(e.cleanFile(c.dir, i)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	c.size -= e.total()
	c.dropEntry(e)
	c.redundantOps++
	if err := c.journal.line(opRemove, e.key); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return fmt.Errorf("disklru: removing %s: %w", e.key, firstErr)
	}
	return nil
}

func (c *Cache) dropEntry(e *entry) {
	delete(c.entries, e.key)
	if e.elem != nil {
		c.lru.Remove(e.elem)
		e.elem = nil
	}
}

// trimToSize evicts from the least recently used end until we fit.
// Entries being edited are left alone.
func (c *Cache) trimToSize() {
	for el := c.lru.Back(); el != nil && c.size > c.maxSize; {
		e := el.Value.(*entry)
		el = el.Prev()
		if e.editGen != 0 || !e.readable {
			continue
		}
		c.log.WithFields(logrus.Fields{"key": e.key, "bytes": e.total()}).Debug("evict")
		if err := c.removeEntry(e); err != nil {
			c.log.WithError(err).Warn("eviction")
		}
	}
}

// maybeCompact rewrites the journal once it is mostly noise.
func (c *Cache) maybeCompact() {
	if c.redundantOps < c.compactThreshold || c.redundantOps < len(c.entries) {
		return
	}
	if err := c.rebuildJournal(); err != nil {
		c.log.WithError(err).Warn("journal compaction failed")
	}
}

// Flush writes the journal out to disk.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.trimToSize()
	return c.journal.sync()
}

// Close aborts open edits, flushes the journal and lets go of it.
// Closing twice is harmless. Open snapshots stay readable.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	for _, e := range c.entries {
		if e.editGen != 0 {
			c.abortEdit(e)
		}
	}
	c.trimToSize()
	c.closed = true
	return c.journal.close()
}

// Delete closes the cache and removes its directory with everything
// in it.
func (c *Cache) Delete() error {
	if err := c.Close(); err != nil {
		return err
	}
	return os.RemoveAll(c.dir)
}
