package disklru

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// The journal starts with five header lines:
//
//	libcore.io.DiskLruCache
//	1
//	<appVersion>
//	<valueCount>
//	<blank>
//
// after which each line is one operation on one key:
//
//	DIRTY key          an edit started
//	CLEAN key len...   an edit was committed, with the value lengths
//	REMOVE key         the entry went away
//	READ key           the entry was read, which moves it up the LRU list

type journalWriter struct {
	fp *os.File
	w  *bufio.Writer
}

var errNoJournal = errors.New("disklru: journal not open")

func openJournal(name string) (*journalWriter, error) {
	fp, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &journalWriter{fp: fp, w: bufio.NewWriter(fp)}, nil
}

// line appends one operation and flushes it to the file.
func (j *journalWriter) line(op, key string, lengths ...int64) error {
	if j == nil {
		return errNoJournal
	}
	j.w.WriteString(op)
	j.w.WriteByte(' ')
	j.w.WriteString(key)
	for _, l := range lengths {
		j.w.WriteByte(' ')
		j.w.WriteString(strconv.FormatInt(l, 10))
	}
	j.w.WriteByte('\n')
	return j.w.Flush()
}

func (j *journalWriter) flush() error {
	if j == nil {
		return errNoJournal
	}
	return j.w.Flush()
}

func (j *journalWriter) sync() error {
	if j == nil {
		return errNoJournal
	}
	if err := j.w.Flush(); err != nil {
		return err
	}
	return j.fp.Sync()
}

func (j *journalWriter) close() error {
	if j == nil {
		return nil
	}
	err := j.w.Flush()
	if cerr := j.fp.Close(); err == nil {
		err = cerr
	}
	return err
}

// readJournal replays the journal into memory. It returns an error
// satisfying os.IsNotExist if there is no journal yet.
func (c *Cache) readJournal() error {
	name := filepath.Join(c.dir, journalFile)
	fp, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fp.Close()
	r := bufio.NewReader(fp)

	want := []string{magic, version, strconv.Itoa(c.appVersion), strconv.Itoa(c.valueCount), ""}
	for i, w := range want {
		got, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("%w: header line %d: %v", errCorrupt, i+1, err)
		}
		if got = strings.TrimRight(got, "\r\n"); got != w {
			return fmt.Errorf("%w: header line %d is %q, want %q", errCorrupt, i+1, got, w)
		}
	}

	nLines := 0
	unterminated := false
	for {
		s, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A crash in the middle of a write leaves half a line. We
			// ignore it and write a fresh journal.
			unterminated = s != ""
			break
		}
		if err != nil {
			return err
		}
		if err := c.replay(strings.TrimRight(s, "\r\n")); err != nil {
			return err
		}
		nLines++
	}
	c.redundantOps = nLines - len(c.entries)
	c.tidyAfterReplay()

	if unterminated {
		c.log.Warn("journal ends with a partial line, rewriting")
		return c.rebuildJournal()
	}
	c.journal, err = openJournal(name)
	return err
}

// replay applies one journal line.
func (c *Cache) replay(s string) error {
	fields := strings.Split(s, " ")
	if len(fields) < 2 {
		return fmt.Errorf("%w: %q", errCorrupt, s)
	}
	op, key := fields[0], fields[1]
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: key in %q", errCorrupt, s)
	}
	if op == opRemove && len(fields) == 2 {
		if e, ok := c.entries[key]; ok {
			c.dropEntry(e)
		}
		return nil
	}
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, lengths: make([]int64, c.valueCount)}
		e.elem = c.lru.PushFront(e)
		c.entries[key] = e
	} else {
		c.lru.MoveToFront(e.elem)
	}
	switch {
	case op == opClean && len(fields) == 2+c.valueCount:
		for i, f := range fields[2:] {
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: %q", errCorrupt, s)
			}
			e.lengths[i] = n
		}
		e.readable = true
		e.editGen = 0
		c.nextSeq++
		e.seq = c.nextSeq
	case op == opDirty && len(fields) == 2:
		e.editGen = -1 // an edit nobody finished
	case op == opRead && len(fields) == 2:
	default:
		return fmt.Errorf("%w: %q", errCorrupt, s)
	}
	return nil
}

// tidyAfterReplay adds up the sizes and drops entries whose edit never
// finished, along with their files.
func (c *Cache) tidyAfterReplay() {
	os.Remove(filepath.Join(c.dir, journalTmp))
	for _, e := range c.entries {
		if e.editGen == 0 {
			if e.readable {
				c.size += e.total()
			} else {
				c.dropEntry(e) // only ever READ
			}
			continue
		}
		for i := 0; i < c.valueCount; i++ {
			os.Remove(e.cleanFile(c.dir, i))
			os.Remove(e.dirtyFile(c.dir, i))
		}
		c.dropEntry(e)
	}
}

// rebuildJournal writes a fresh journal with one line per entry and
// swaps it in. Until the final rename, either the old journal or its
// backup is complete on disk.
func (c *Cache) rebuildJournal() error {
	err := c.writeNewJournal()
	if err != nil && c.journal == nil {
		// Carry on with whichever journal survived.
		name := filepath.Join(c.dir, journalFile)
		recoverBackup(c.dir)
		c.journal, _ = openJournal(name)
	}
	return err
}

func (c *Cache) writeNewJournal() error {
	c.journal.close()
	c.journal = nil
	tmp := filepath.Join(c.dir, journalTmp)
	fp, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(fp)
	fmt.Fprintf(w, "%s\n%s\n%d\n%d\n\n", magic, version, c.appVersion, c.valueCount)
	tw := &journalWriter{fp: fp, w: w}
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		switch {
		case e.editGen != 0:
			err = tw.line(opDirty, e.key)
		case !e.readable:
			continue
		default:
			err = tw.line(opClean, e.key, e.lengths...)
		}
		if err != nil {
			tw.close()
			return err
		}
	}
	if err := tw.sync(); err != nil {
		tw.close()
		return err
	}
	if err := fp.Close(); err != nil {
		return err
	}

	name := filepath.Join(c.dir, journalFile)
	bkp := filepath.Join(c.dir, journalBkp)
	if _, err := os.Stat(name); err == nil {
		if err := os.Rename(name, bkp); err != nil {
			return err
		}
	}
	if err := os.Rename(tmp, name); err != nil {
		return err
	}
	os.Remove(bkp)
	c.redundantOps = 0
	c.journal, err = openJournal(name)
	return err
}
