// Package database validates and retrieves the kraken2 reference database.
//
// The database's internal format is kraken2's own; this package only checks
// that a directory with the expected layout exists.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidDatabase indicates the database directory is missing or does
// not have the kraken2 layout.
var ErrInvalidDatabase = errors.New("database: missing or invalid kraken2 database")

// layoutFiles are present in every kraken2 database directory.
var layoutFiles = []string{"hash.k2d", "opts.k2d", "taxo.k2d"}

// Validate checks that dir exists and contains the kraken2 database layout.
func Validate(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDatabase, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidDatabase, dir)
	}
	for _, name := range layoutFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("%w: %s missing %s", ErrInvalidDatabase, dir, name)
		}
	}
	return nil
}
