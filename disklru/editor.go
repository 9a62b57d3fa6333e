package disklru

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
)

// Editor changes the values of one entry. Nothing is visible to
// readers until Commit. An Editor is not meant to be shared between
// goroutines.
//
// The editor only remembers its key and a generation number. Every
// call looks the entry up again, so an editor left over from an entry
// that was since aborted or closed gets ErrStaleEditor rather than
// touching somebody else's files.
type Editor struct {
	c       *Cache
	key     string
	gen     int64
	written []bool
	writers []*valueWriter
	err     error // first write failure
	done    bool
}

// Key is the key being edited.
func (ed *Editor) Key() string { return ed.key }

// entry finds our entry. The caller holds the lock.
func (ed *Editor) entry() (*entry, error) {
	if ed.c.closed {
		return nil, ErrClosed
	}
	if ed.done {
		return nil, ErrStaleEditor
	}
	e, ok := ed.c.entries[ed.key]
	if !ok || e.editGen != ed.gen {
		return nil, ErrStaleEditor
	}
	return e, nil
}

func (ed *Editor) fail(err error) {
	if ed.err == nil {
		ed.err = err
	}
}

// NewWriter returns a writer for value i. It starts empty. Asking for
// the same index twice starts again from nothing.
func (ed *Editor) NewWriter(i int) (io.WriteCloser, error) {
	c := ed.c
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := ed.entry()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= c.valueCount {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadIndex, i, c.valueCount)
	}
	if old := ed.writers[i]; old != nil {
		old.fp.Close()
	}
	fp, err := os.Create(e.dirtyFile(c.dir, i))
	if err != nil {
		return nil, fmt.Errorf("disklru: %w", err)
	}
	w := &valueWriter{ed: ed, fp: fp, max: c.maxSize}
	ed.writers[i] = w
	ed.written[i] = true
	return w, nil
}

// Set writes all of value i from a string.
func (ed *Editor) Set(i int, value string) error {
	w, err := ed.NewWriter(i)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, value); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Commit makes the new values visible. Every value must have been
// written. If anything goes wrong the edit is thrown away and the
// error says why.
func (ed *Editor) Commit() error {
	c := ed.c
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := ed.entry()
	if err != nil {
		return err
	}
	ed.closeWriters()
	if ed.err != nil {
		cause := ed.err
		c.abortEdit(e)
		return fmt.Errorf("%w: %s: %w", ErrCommitFailed, ed.key, cause)
	}
	for i, ok := range ed.written {
		if !ok {
			c.abortEdit(e)
			return fmt.Errorf("%w: %s has no value %d", ErrMissingValue, ed.key, i)
		}
	}

	lengths := make([]int64, c.valueCount)
	var total int64
	for i := range lengths {
		fi, err := os.Stat(e.dirtyFile(c.dir, i))
		if err != nil {
			c.abortEdit(e)
			return fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
		lengths[i] = fi.Size()
		total += lengths[i]
	}
	if total > c.maxSize {
		c.abortEdit(e)
		return fmt.Errorf("%w: %s is %s, cache holds %s", ErrTooLarge, ed.key,
			humanize.Bytes(uint64(total)), humanize.Bytes(uint64(c.maxSize)))
	}

	for i := range lengths {
		if err := os.Rename(e.dirtyFile(c.dir, i), e.cleanFile(c.dir, i)); err != nil {
			// Some values may be new and some old, so the entry has to go.
			for j := i; j < c.valueCount; j++ {
				os.Remove(e.dirtyFile(c.dir, j))
			}
			ed.done = true
			e.editGen, e.editor = 0, nil
			c.removeEntry(e)
			return fmt.Errorf("%w: %s: %w", ErrCommitFailed, ed.key, err)
		}
	}
	c.size += total - e.total()
	e.lengths = lengths
	e.readable = true
	e.editGen, e.editor = 0, nil
	c.nextSeq++
	e.seq = c.nextSeq
	ed.done = true
	c.lru.MoveToFront(e.elem)
	c.redundantOps++
	jerr := c.journal.line(opClean, e.key, lengths...)
	c.trimToSize()
	c.maybeCompact()
	if jerr != nil {
		return fmt.Errorf("%w: journal: %w", ErrCommitFailed, jerr)
	}
	return nil
}

// Abort throws the edit away. It is fine to call it after Commit, so
// it can be deferred.
func (ed *Editor) Abort() error {
	c := ed.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if ed.done {
		return nil
	}
	e, err := ed.entry()
	if err != nil {
		return err
	}
	c.abortEdit(e)
	return nil
}

func (ed *Editor) closeWriters() {
	for _, w := range ed.writers {
		if w != nil {
			if err := w.fp.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				ed.fail(err)
			}
		}
	}
}

// abortEdit removes the dirty files of an edit. An entry that was
// never committed goes away. The caller holds the lock.
func (c *Cache) abortEdit(e *entry) {
	if ed := e.editor; ed != nil {
		ed.closeWriters()
		ed.done = true
	}
	for i := 0; i < c.valueCount; i++ {
		os.Remove(e.dirtyFile(c.dir, i))
	}
	e.editGen, e.editor = 0, nil
	c.redundantOps++
	var err error
	if e.readable {
		err = c.journal.line(opClean, e.key, e.lengths...)
	} else {
		c.dropEntry(e)
		err = c.journal.line(opRemove, e.key)
	}
	if err != nil {
		c.log.WithError(err).WithField("key", e.key).Warn("journal")
	}
}

// valueWriter writes one dirty file. It refuses to grow past the size
// of the whole cache.
type valueWriter struct {
	ed  *Editor
	fp  *os.File
	n   int64
	max int64
}

func (w *valueWriter) Write(p []byte) (int, error) {
	if w.n+int64(len(p)) > w.max {
		err := fmt.Errorf("%w: %s value over %s", ErrTooLarge, w.ed.key, humanize.Bytes(uint64(w.max)))
		w.ed.fail(err)
		return 0, err
	}
	n, err := w.fp.Write(p)
	w.n += int64(n)
	if err != nil {
		w.ed.fail(err)
	}
	return n, err
}

// Close closes the file. Closing twice does nothing.
func (w *valueWriter) Close() error {
	err := w.fp.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	if err != nil {
		w.ed.fail(err)
	}
	return err
}
