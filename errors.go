package dynpatch

import (
	"errors"
	"fmt"
)

// Kind classifies why a patch failed.
type Kind int

const (
	IntrospectionError Kind = iota + 1 // expected field or shape absent on the loader or its path list
	ArchiveLoadError                   // archive unreadable or malformed, or scratch path unusable
	ConstructionError                  // no element constructor for the platform generation
	NullStateError                     // loader internals not initialized yet
)

var (
	ErrIntrospection = errors.New("introspection failed")
	ErrArchiveLoad   = errors.New("archive load failed")
	ErrConstruction  = errors.New("element construction failed")
	ErrNullState     = errors.New("loader not initialized")
)

func (k Kind) String() string {
	switch k {
	case IntrospectionError:
		return "introspection"
	case ArchiveLoadError:
		return "archive"
	case ConstructionError:
		return "construction"
	case NullStateError:
		return "null state"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case IntrospectionError:
		return ErrIntrospection
	case ArchiveLoadError:
		return ErrArchiveLoad
	case ConstructionError:
		return ErrConstruction
	case NullStateError:
		return ErrNullState
	default:
		return nil
	}
}

// PatchError reports a failed patch. The loader is left untouched whenever a PatchError is returned.
type PatchError struct {
	Kind Kind
	Op   string // step that failed
	Path string // archive path, may be empty
	Err  error
}

func (e *PatchError) Error() string {
	s := "patch " + e.Kind.String() + ": " + e.Op
	if e.Path != "" {
		s += " " + e.Path
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error kind, so errors.Is(err, ErrArchiveLoad) works on any PatchError.
func (e *PatchError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

func fail(k Kind, op, path string, err error) error {
	return &PatchError{Kind: k, Op: op, Path: path, Err: err}
}

// KindOf extract the Kind of err, zero if err is not a PatchError.
func KindOf(err error) Kind {
	var pe *PatchError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
