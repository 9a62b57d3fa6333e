package fetch

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"github.com/andrew-torda/molcache/disklru"
)

// OpenCache opens the structure cache in dir. If the disk does not
// have room for maxSize more bytes we say so, but carry on.
func OpenCache(dir string, maxSize int64, log *logrus.Logger) (*disklru.Cache, error) {
	if log == nil {
		log = discardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	if usage, err := disk.Usage(dir); err != nil {
		log.WithError(err).Debug("no disk usage for cache dir")
	} else {
		fields := logrus.Fields{
			"dir":  dir,
			"free": humanize.Bytes(usage.Free),
			"used": fmt.Sprintf("%.1f%%", usage.UsedPercent),
		}
		if maxSize > 0 && usage.Free < uint64(maxSize) {
			log.WithFields(fields).Warnf("cache may grow to %s, more than is free", humanize.Bytes(uint64(maxSize)))
		} else {
			log.WithFields(fields).Debug("cache disk")
		}
	}
	return disklru.Open(dir, AppVersion, ValueCount, maxSize, disklru.WithLogger(log))
}
