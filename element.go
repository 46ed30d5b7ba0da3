package dynpatch

import (
	"fmt"
	"os"
	"strconv"
)

// Generation of the element layout used by a platform level.
type Generation int

const (
	Earliest Generation = iota
	Legacy
	Modern
)

const (
	// LegacyLevel is the first platform level with the directory flag on elements.
	LegacyLevel = 18
	// ModernLevel is the first platform level where elements are built from an archive and its file only.
	ModernLevel = 26
	// LevelEnv names the environment variable PlatformLevel reads.
	LevelEnv = "DYNPATCH_PLATFORM_LEVEL"
)

// GenerationOf maps a platform level to its element generation.
func GenerationOf(level int) Generation {
	switch {
	case level >= ModernLevel:
		return Modern
	case level >= LegacyLevel:
		return Legacy
	default:
		return Earliest
	}
}

func (g Generation) String() string {
	switch g {
	case Earliest:
		return "earliest"
	case Legacy:
		return "legacy"
	case Modern:
		return "modern"
	default:
		return "Generation(" + strconv.Itoa(int(g)) + ")"
	}
}

// PlatformLevel reads the platform level from environment, ModernLevel when absent.
func PlatformLevel() (int, error) {
	v, ok := os.LookupEnv(LevelEnv)
	if !ok || v == "" {
		return ModernLevel, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", LevelEnv, err)
	}
	return n, nil
}

type (
	// Element is one loadable unit inside a loader's path list. The set of implementations is closed:
	// ModernElement, LegacyElement and EarliestElement.
	Element interface {
		Find(sym string) (Sym, bool) //resolve sym inside the wrapped archive
		Path() string                //originating file
		Archive() CodeArchive        //wrapped archive, nil for directory elements
		element()
	}
	ModernElement struct {
		archive CodeArchive
		file    string
	}
	// LegacyElement models directory and zip sources separately. Directory elements carry no archive.
	LegacyElement struct {
		dir         string
		isDirectory bool
		zip         string
		archive     CodeArchive
	}
	// EarliestElement predates the directory flag. It is carried as a best-effort layout and is only
	// built by a Patcher with AllowEarliest set.
	EarliestElement struct {
		file    string
		zip     string
		archive CodeArchive
	}
)

func NewModernElement(archive CodeArchive, file string) *ModernElement {
	return &ModernElement{archive: archive, file: file}
}

func NewLegacyElement(dir string, isDirectory bool, zip string, archive CodeArchive) *LegacyElement {
	return &LegacyElement{dir: dir, isDirectory: isDirectory, zip: zip, archive: archive}
}

func NewEarliestElement(file, zip string, archive CodeArchive) *EarliestElement {
	return &EarliestElement{file: file, zip: zip, archive: archive}
}

func (e *ModernElement) element() {}
func (e *ModernElement) Path() string {
	return e.file
}
func (e *ModernElement) Archive() CodeArchive {
	return e.archive
}
func (e *ModernElement) Find(sym string) (Sym, bool) {
	return find(e.archive, sym)
}
func (e *ModernElement) String() string {
	return "modern element: " + e.file
}

func (e *LegacyElement) element() {}
func (e *LegacyElement) Path() string {
	if e.isDirectory {
		return e.dir
	}
	return e.zip
}
func (e *LegacyElement) IsDirectory() bool {
	return e.isDirectory
}
func (e *LegacyElement) Archive() CodeArchive {
	return e.archive
}
func (e *LegacyElement) Find(sym string) (Sym, bool) {
	if e.isDirectory {
		return 0, false
	}
	return find(e.archive, sym)
}
func (e *LegacyElement) String() string {
	if e.isDirectory {
		return "legacy element: directory " + e.dir
	}
	return "legacy element: zip " + e.zip
}

func (e *EarliestElement) element() {}
func (e *EarliestElement) Path() string {
	return e.zip
}
func (e *EarliestElement) Archive() CodeArchive {
	return e.archive
}
func (e *EarliestElement) Find(sym string) (Sym, bool) {
	return find(e.archive, sym)
}
func (e *EarliestElement) String() string {
	return "earliest element: " + e.file
}

func find(a CodeArchive, sym string) (Sym, bool) {
	if a == nil {
		return 0, false
	}
	return a.Lookup(sym)
}

type constructor func(file string, archive CodeArchive) Element

// constructors per generation, the argument shapes follow each platform's own element layout.
var constructors = map[Generation]constructor{
	Modern: func(file string, archive CodeArchive) Element {
		return NewModernElement(archive, file)
	},
	Legacy: func(file string, archive CodeArchive) Element {
		return NewLegacyElement(file, false, file, archive)
	},
	Earliest: func(file string, archive CodeArchive) Element {
		return NewEarliestElement(file, file, archive)
	},
}
