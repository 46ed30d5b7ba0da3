package dynpatch

import (
	"errors"
	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
	"maps"
	"sync"
)

type (
	// Symbols contains resolved runtime symbols which archives link against.
	//
	// If two archives share the same Symbols instance, the latter may depend on the former.
	Symbols interface {
		Symbols() []string //resolved symbols
		internal()
	}
	symbols map[string]uintptr
)

var (
	gob     symbols
	gobOnce sync.Once
	gobErr  error
)

func global() (symbols, error) {
	gobOnce.Do(func() {
		gob = make(symbols)
		gobErr = goloader.RegSymbol(gob)
	})
	return gob, gobErr
}

// NewSymbols create a Symbols with runtime symbols of current executable
func NewSymbols() (Symbols, error) {
	g, err := global()
	if err != nil {
		return nil, err
	}
	return symbols(maps.Clone(g)), nil
}

func (s symbols) internal() {}

// Symbols dump symbol names inside Symbol
func (s symbols) Symbols() []string {
	return fn.MapKeys(s)
}

var (
	// ErrMissingSymbol occurs when can't found a symbol.
	ErrMissingSymbol = errors.New("missing symbol")
	// ErrAlreadyInitialized occurs when a Loader reinitializing.
	ErrAlreadyInitialized = errors.New("already initialized loader")
	// ErrLinked occurs when an archive relinking.
	ErrLinked = errors.New("already linked")
	// ErrUninitialized occurs use an archive or a loader before initialized.
	ErrUninitialized = errors.New("not initialized")
)
