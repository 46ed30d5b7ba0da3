package dynpatch

import (
	"errors"
	"sync/atomic"
)

type (
	// Elements is the ordered search list of a loader, first match wins.
	//
	// A published Elements is never written again, patching replaces it as a whole.
	Elements []Element
	// PathList holds the search list of one Loader.
	PathList struct {
		elements atomic.Pointer[Elements]
	}
	// Loader resolves symbols by delegating to its parent first, then searching its own path list in order.
	//
	// The zero Loader has no path list and must be initialized by Init before use.
	Loader struct {
		parent   *Loader
		pathList *PathList
	}
)

// NewLoader create an initialized loader.
func NewLoader(parent *Loader, elements ...Element) *Loader {
	l := new(Loader)
	_ = l.Init(parent, elements...)
	return l
}

// OpenLoader opens files with opener and create a loader searching them in the given order.
func OpenLoader(parent *Loader, opener ArchiveOpener, scratch string, files ...string) (l *Loader, err error) {
	elements := make(Elements, 0, len(files))
	for _, file := range files {
		var a CodeArchive
		if a, err = opener.Open(file, scratch); err != nil {
			for _, e := range elements {
				_ = e.Archive().Close()
			}
			return nil, err
		}
		elements = append(elements, NewModernElement(a, file))
	}
	return NewLoader(parent, elements...), nil
}

// Init publish the first search list of a zero Loader.
func (l *Loader) Init(parent *Loader, elements ...Element) error {
	if l.pathList != nil {
		return ErrAlreadyInitialized
	}
	p := new(PathList)
	e := make(Elements, len(elements))
	copy(e, elements)
	p.elements.Store(&e)
	l.parent = parent
	l.pathList = p
	return nil
}

func (l *Loader) Parent() *Loader {
	return l.parent
}

// Elements returns current search list, nil if the loader is not initialized. Callers must not modify it.
func (l *Loader) Elements() Elements {
	if l.pathList == nil {
		return nil
	}
	if e := l.pathList.elements.Load(); e != nil {
		return *e
	}
	return nil
}

// FindElement returns the element that resolves sym, searching parents first.
func (l *Loader) FindElement(sym string) (Element, bool) {
	if l.parent != nil {
		if e, ok := l.parent.FindElement(sym); ok {
			return e, true
		}
	}
	for _, e := range l.Elements() {
		if _, ok := e.Find(sym); ok {
			return e, true
		}
	}
	return nil, false
}

// Find fetch a symbol, which can cast to the desired type by As.
func (l *Loader) Find(sym string) (Sym, bool) {
	if l.parent != nil {
		if u, ok := l.parent.Find(sym); ok {
			return u, true
		}
	}
	for _, e := range l.Elements() {
		if u, ok := e.Find(sym); ok {
			return u, true
		}
	}
	return 0, false
}

// MustFind fetch a symbol, throws ErrUninitialized or ErrMissingSymbol
func (l *Loader) MustFind(sym string) Sym {
	if l.pathList == nil {
		panic(ErrUninitialized)
	}
	u, ok := l.Find(sym)
	if !ok {
		panic(ErrMissingSymbol)
	}
	return u
}

// Close release archives of own elements, parents are untouched.
func (l *Loader) Close() error {
	var errs []error
	for _, e := range l.Elements() {
		if a := e.Archive(); a != nil {
			if err := a.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
