package ifacemap

import (
	"github.com/jward/ifacemap/internal/index"
	"github.com/jward/ifacemap/internal/scan"
)

// Public aliases for the index types returned by the QueryBuilder API.

type Location = index.Location
type Interface = index.Interface
type Declaration = index.Declaration
type ImplementationRecord = index.ImplementationRecord
type ImplementationSummary = index.ImplementationSummary
type Generation = index.Generation

// FileError is the error recorded for a file that could not be read.
type FileError = scan.FileError

// ErrUnavailable matches any FileError under errors.Is.
var ErrUnavailable = scan.ErrUnavailable
