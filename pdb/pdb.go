// This is the upper level for reading PDB files from disk.
// Decide if a file is compressed or not, and what format
// we are going to read. Only the old fixed column format is read.

package pdb

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/sirupsen/logrus"

	"github.com/andrew-torda/molcache/pdb/zwrap"
)

// Format is what we think is in a file.
type Format byte

const (
	OldFmt Format = iota
	MmcifFmt
	UnkFmt
)

func (f Format) String() string {
	switch f {
	case OldFmt:
		return "pdb"
	case MmcifFmt:
		return "mmcif"
	}
	return "unknown"
}

// comparefirst says if two words are the same, looking at the
// the length of the shorter
func comparefirst(s, t string) bool {
	l := min(len(s), len(t))
	return s[:l] == t[:l]
}

// lookInData guesses if some bytes are in old PDB format or in mmcif.
// The data may be compressed.
func lookInData(data []byte) (Format, error) {
	pdbWords := []string{"HEADER", "COMPND", "SOURCE", "REMARK", "SEQRES", "HETATM", "ATOM"}
	mmcifWords := []string{"data_", "_entry.id", "loop_"}
	rdr, err := zwrap.WrapMaybe(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return UnkFmt, err
	}
	defer rdr.Close()

	const maxTestLines = 5000
	br := bufio.NewReader(rdr)
	var buf []byte
	for i := 0; i < maxTestLines; i++ {
		line, tooLong, err := readLine(br, buf)
		if err != nil {
			break
		}
		buf = line
		if tooLong || len(line) == 0 {
			continue
		}
		s := string(line)
		for _, w := range mmcifWords {
			if comparefirst(s, w) {
				return MmcifFmt, nil
			}
		}
		for _, w := range pdbWords {
			if comparefirst(s, w) {
				return OldFmt, nil
			}
		}
	}
	return UnkFmt, ErrUnsupportedFormat
}

// FormatByName decides the format from a file name, if it can.
// We cannot use the function from filepath to get the file type,
// since it will return .gz if we feed it a.pdb.gz.
func FormatByName(fname string) Format {
	s := filepath.Base(fname)
	i := strings.IndexByte(s, '.')
	if i == -1 {
		return UnkFmt
	}
	s = strings.ToLower(s[i+1:]) // change .ent to ent
	switch {
	case strings.Contains(s, "pdb") || strings.Contains(s, "ent"):
		return OldFmt
	case strings.Contains(s, "cif"):
		return MmcifFmt
	}
	return UnkFmt
}

// IDFromName turns "path/pdb1bna.ent.gz" or "1BNA.pdb" into "1bna".
func IDFromName(fname string) string {
	s := filepath.Base(fname)
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	s = strings.ToLower(s)
	if len(s) == 7 && strings.HasPrefix(s, "pdb") {
		s = s[3:]
	}
	return s
}

// ParseFile maps a file into memory and parses it. Compressed files
// are unpacked on the way. The molecule is named after the file.
func (p *Parser) ParseFile(fname string, mol *Molecule) (Stats, error) {
	fp, err := os.Open(fname)
	if err != nil {
		return Stats{}, err
	}
	defer fp.Close()
	info, err := fp.Stat()
	if err != nil {
		return Stats{}, err
	}
	mol.Name = IDFromName(fname)
	if info.Size() == 0 {
		mol.ClearLists()
		return Stats{}, fmt.Errorf("%s: %w", fname, ErrEmptyMolecule)
	}
	mm, err := mmap.Map(fp, mmap.RDONLY, 0)
	if err != nil {
		return Stats{}, &IOError{Name: fname, Err: err}
	}
	defer mm.Unmap()

	format := FormatByName(fname)
	if format == UnkFmt {
		if format, err = lookInData(mm); err != nil {
			return Stats{}, fmt.Errorf("%s: %w", fname, err)
		}
	}
	if format != OldFmt {
		return Stats{}, fmt.Errorf("%s is %v: %w", fname, format, ErrUnsupportedFormat)
	}

	rdr, err := zwrap.WrapMaybe(io.NopCloser(bytes.NewReader(mm)))
	if err != nil {
		return Stats{}, &IOError{Name: fname, Err: err}
	}
	defer rdr.Close()
	p.log.WithFields(logrus.Fields{
		"file": fname, "compression": rdr.Kind(),
	}).Debug("parsing")
	return p.Parse(rdr, mol)
}

// ParseFile reads a file with a default parser.
func ParseFile(fname string, mol *Molecule) (Stats, error) {
	return NewParser().ParseFile(fname, mol)
}
