package storage

import (
	"errors"
	"io/fs"
	"os"
)

// sqliteSidecars are the files SQLite keeps next to a database in WAL mode.
var sqliteSidecars = []string{"", "-wal", "-shm"}

// DiskUsageBytes returns the on-disk size of the SQLite database at dbPath, including
// its WAL and shared-memory files. Files that do not exist count as zero.
func DiskUsageBytes(dbPath string) (int64, error) {
	if dbPath == "" {
		return 0, errors.New("database path is empty")
	}
	var total int64
	for _, suffix := range sqliteSidecars {
		info, err := os.Stat(dbPath + suffix)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
	}
	return total, nil
}
