package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/andrew-torda/molcache/pdb/zwrap"
)

var (
	ErrBadID     = errors.New("pdb id should be four characters, a digit and three letters or digits")
	ErrNotFound  = errors.New("not in the archive")
	ErrNoArchive = errors.New("no archive directory given")
)

var idPattern = regexp.MustCompile(`^[0-9][a-z0-9]{3}$`)

// NormID lower-cases a PDB id and checks it looks like one.
func NormID(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrBadID, id)
	}
	return id, nil
}

// archiveNames are the places a structure may live, relative to the top
// of an archive. The first is the wwPDB divided layout, where 1bna is
// in bn/pdb1bna.ent.gz. The others are for flat directories people
// make themselves.
func archiveNames(id string) []string {
	mid := id[1:3]
	return []string{
		filepath.Join(mid, "pdb"+id+".ent.gz"),
		filepath.Join(mid, "pdb"+id+".ent.xz"),
		filepath.Join(mid, "pdb"+id+".ent"),
		"pdb" + id + ".ent.gz",
		"pdb" + id + ".ent",
		id + ".pdb.gz",
		id + ".pdb.xz",
		id + ".pdb",
	}
}

// ArchiveDownloader gets coordinates from a local copy of the PDB,
// like /work/public/no_backup/pdb/data/structures/divided/pdb/.
// Compressed files are uncompressed on the fly.
type ArchiveDownloader struct {
	Dir string
	log *logrus.Entry
}

// NewArchiveDownloader reads from the archive under dir.
func NewArchiveDownloader(dir string, log *logrus.Logger) *ArchiveDownloader {
	if log == nil {
		log = discardLogger()
	}
	return &ArchiveDownloader{Dir: dir, log: log.WithField("archive", dir)}
}

// Download returns the uncompressed coordinates for id.
func (d *ArchiveDownloader) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	id, err := NormID(id)
	if err != nil {
		return nil, err
	}
	if d.Dir == "" {
		return nil, ErrNoArchive
	}
	for _, name := range archiveNames(id) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(d.Dir, name)
		fp, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rc, err := zwrap.WrapMaybe(fp)
		if err != nil {
			fp.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		d.log.WithFields(logrus.Fields{"id": id, "file": path, "compression": rc.Kind()}).Debug("found")
		return rc, nil
	}
	return nil, fmt.Errorf("%s %w %s", id, ErrNotFound, d.Dir)
}
