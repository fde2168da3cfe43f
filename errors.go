package readsweep

import (
	"errors"

	"github.com/readsweep/readsweep/internal/database"
	"github.com/readsweep/readsweep/internal/kraken"
	"github.com/readsweep/readsweep/internal/stage"
)

// Sentinel errors for well-defined failure conditions. All of them are
// fatal and abort the run; none are retried, since they indicate either a
// configuration problem or a non-transient data problem.
var (
	// ErrNoInputs indicates no input files were provided.
	ErrNoInputs = errors.New("readsweep: no input files provided")

	// ErrTooManyInputs indicates more than two input files were provided.
	ErrTooManyInputs = errors.New("readsweep: more than two input files")

	// ErrMissingDependency indicates a required external command is not
	// runnable on this system.
	ErrMissingDependency = errors.New("readsweep: missing external dependency")

	// ErrOutputCollision indicates two inputs resolve to the same output path.
	ErrOutputCollision = errors.New("readsweep: output paths collide")

	// ErrOutputExists indicates an output path already exists and
	// overwriting was not permitted.
	ErrOutputExists = errors.New("readsweep: output path already exists")

	// ErrInvalidDatabase indicates the database directory is missing or
	// does not have the kraken2 layout.
	ErrInvalidDatabase = database.ErrInvalidDatabase

	// ErrDecompression indicates a staged input could not be decompressed.
	ErrDecompression = stage.ErrDecompression

	// ErrClassifierSpawn indicates the classifier process failed to start.
	ErrClassifierSpawn = kraken.ErrSpawn

	// ErrClassifierExit indicates the classifier exited with an error.
	ErrClassifierExit = kraken.ErrNonZeroExit

	// ErrStatsParse indicates the classifier's run report was missing an
	// expected statistics field.
	ErrStatsParse = kraken.ErrStatsParse
)
