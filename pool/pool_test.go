package pool

import (
	"errors"
	"github.com/ZenLiuCN/dynpatch"
	"github.com/ZenLiuCN/fn"
	"github.com/davecgh/go-spew/spew"
	"io/fs"
	"path/filepath"
	"testing"
	"unsafe"
)

type archive struct {
	path string
	syms map[string]dynpatch.Sym
}

func (a archive) Path() string { return a.path }
func (a archive) Lookup(sym string) (dynpatch.Sym, bool) {
	u, ok := a.syms[sym]
	return u, ok
}
func (a archive) Symbols() []string { return fn.MapKeys(a.syms) }
func (a archive) Close() error { return nil }

type opener map[string]map[string]dynpatch.Sym

func (o opener) Open(file, scratch string) (dynpatch.CodeArchive, error) {
	s, ok := o[filepath.Base(file)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: file, Err: fs.ErrNotExist}
	}
	return archive{path: file, syms: s}, nil
}

func symOf[T any](f T) dynpatch.Sym {
	return *(*dynpatch.Sym)(unsafe.Pointer(&f))
}

func first() string { return "first" }
func second() string { return "second" }

func TestNewPool(t *testing.T) {
	o := opener{
		"first.o":  {"sample.Run": symOf(first)},
		"second.o": {"sample.Run": symOf(second), "sample.Second": symOf(second)},
	}
	l := dynpatch.NewLoader(nil)
	p := NewPool(l, &dynpatch.Patcher{Opener: o, Level: dynpatch.ModernLevel}, t.TempDir())
	fn.Panic(p.Inject("first.o"))
	fn.Panic(p.Inject("second.o"))
	if err := p.Inject("./first.o"); !errors.Is(err, ErrAlreadyLoad) {
		t.Fatalf("want already loaded, got %v", err)
	}
	if err := p.Inject("third.o"); dynpatch.KindOf(err) != dynpatch.ArchiveLoadError {
		t.Fatalf("want archive error, got %v", err)
	}
	if p.Injected("third.o") || !p.Injected("first.o") {
		t.Fatal("injected records mismatch")
	}
	a := p.Archives()
	if len(a) != 2 || filepath.Base(a[0]) != "first.o" || filepath.Base(a[1]) != "second.o" {
		t.Fatalf("unexpected archives %v", a)
	}
	if len(l.Elements()) != 2 {
		t.Fatalf("want 2 elements, got %d", len(l.Elements()))
	}
	s0 := p.Require("sample.Run")
	if v := dynpatch.As[func() string](s0)(); v != "first" {
		t.Fatalf("first injected must win, got %s", v)
	}
	s1 := p.Require("sample.Second")
	t.Log(dynpatch.As[func() string](s1)())
	if g := p.Generations(); len(g) != 1 || g[0] != dynpatch.Modern {
		t.Fatalf("unexpected generations %v", g)
	}
	sp := spew.NewDefaultConfig()
	sp.MaxDepth = 3
	t.Log(sp.Sdump(p.Modules))
	for i, e := range l.Elements() {
		t.Log(i, sp.Sdump(e.Path()))
	}
}
