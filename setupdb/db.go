package setupdb

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

const dbFilename = "setup.db"

// DB persistently stores the device settings.
type DB struct {
	*bbolt.DB
}

// Open creates or opens the settings database inside the data directory.
func Open(dataDir string) (*DB, error) {
	err := os.MkdirAll(dataDir, 0700)
	if err != nil {
		return nil, errors.Errorf("could not create data directory: %v", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, dbFilename), 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, errors.Errorf("could not open database: %v", err)
	}

	return &DB{DB: db}, nil
}
