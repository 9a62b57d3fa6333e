package disklru

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Snapshot is the committed state of an entry at the time of Get. It
// keeps its value files open, so it stays readable even if the entry
// is later removed, evicted or overwritten. Close it when done.
type Snapshot struct {
	c       *Cache
	key     string
	seq     int64
	files   []*os.File
	lengths []int64
	once    sync.Once
}

// Key is the key the snapshot was taken of.
func (s *Snapshot) Key() string { return s.key }

// Len is the length in bytes of value i.
func (s *Snapshot) Len(i int) int64 {
	if i < 0 || i >= len(s.lengths) {
		return 0
	}
	return s.lengths[i]
}

// Reader gives value i from the start. Each call gets its own reader,
// so several goroutines may read the same snapshot. Closing the reader
// does not close the snapshot.
func (s *Snapshot) Reader(i int) (io.ReadCloser, error) {
	if i < 0 || i >= len(s.files) {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadIndex, i, len(s.files))
	}
	return io.NopCloser(io.NewSectionReader(s.files[i], 0, s.lengths[i])), nil
}

// String reads all of value i.
func (s *Snapshot) String(i int) (string, error) {
	r, err := s.Reader(i)
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("disklru: reading %s.%d: %w", s.key, i, err)
	}
	return string(b), nil
}

// Edit starts an edit of the entry, but only if nobody committed to it
// since the snapshot was taken. Otherwise it returns ErrStaleEditor.
func (s *Snapshot) Edit() (*Editor, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.c.edit(s.key, s.seq)
}

// Close lets go of the value files. Closing twice is harmless.
func (s *Snapshot) Close() error {
	var err error
	s.once.Do(func() {
		for _, f := range s.files {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
		s.c.mu.Lock()
		s.c.openSnaps--
		s.c.mu.Unlock()
	})
	return err
}
