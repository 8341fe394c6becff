package db

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens the message log at path. An empty path keeps the log in
// memory, which is what tests use.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if strings.TrimSpace(path) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.ERROR)

	database, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return database, nil
}
