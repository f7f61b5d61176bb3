package repo

import (
	"errors"

	"github.com/cogitvcs/cogit/pkg/object"
)

// ErrNotARepository is returned when an operation is attempted outside an
// initialized cogit repository.
var ErrNotARepository = errors.New("not a cogit repository")

// ErrEmptyStaging is returned by Commit when nothing is staged.
var ErrEmptyStaging = errors.New("nothing staged")

// Repo represents an opened cogit repository. It is an explicit handle:
// every operation takes the value it needs rather than consulting any
// ambient global. A single Repo is not safe for concurrent use by
// multiple processes; see the staging notes in staging.go.
type Repo struct {
	RootDir  string        // working directory root
	CogitDir string        // .cogit/ directory
	Store    *object.Store // content-addressed object store
}
