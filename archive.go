package dynpatch

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/ZenLiuCN/fn"
	"github.com/cespare/xxhash/v2"
	"github.com/pkujhd/goloader"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unsafe"
)

type (
	//Sym is a simple alias of uintptr.
	Sym uintptr
	//CodeArchive is an opened code archive, which symbols can be looked up from.
	//
	//Note:
	//
	//	1. Must fetch and use one symbol as desired type inside one specific goroutine.
	//	2. Lookup is safe between goroutines, Close is not.
	CodeArchive interface {
		Path() string                       //originating file path
		Lookup(sym string) (u Sym, ok bool) //fetch a symbol, which can cast to the desired type by As
		Symbols() []string                  //exported symbols
		Close() error                       //release the resources of archive
	}
	//ArchiveOpener opens a code archive, scratch is a writable directory for derived artifacts.
	ArchiveOpener interface {
		Open(file, scratch string) (CodeArchive, error)
	}
	//ObjectOpener opens go object files or go archives with goloader.
	//
	//The linker read from file is serialized into scratch as a '.linkable' file stamped with the checksum of file,
	//later opens reuse it while the checksum still matches.
	ObjectOpener struct {
		Symbols Symbols //symbols to link against, a fresh NewSymbols when nil
		Package string  //package path of the archive, default main
		Types   []any   //types to register before linking
		Debug   bool
	}
	objectArchive struct {
		path   string
		pkg    string
		sym    symbols
		linker *goloader.Linker
		module *goloader.CodeModule
		debug  bool
	}
)

// LinkableExt is the extension of serialized linker files inside scratch directory.
const LinkableExt = ".linkable"

// Linkable returns the scratch artifact path for file linked as package pkg. The name carries the base name of
// file plus a hash of its absolute path and pkg, so same named archives never share an artifact.
func Linkable(file, pkg, scratch string) string {
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}
	b := filepath.Base(file)
	h := xxhash.New()
	_, _ = h.WriteString(file)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(pkg)
	return filepath.Join(scratch, fmt.Sprintf("%s-%016x%s", strings.TrimSuffix(b, filepath.Ext(b)), h.Sum64(), LinkableExt))
}

// digest checksum the content of file.
func digest(file string) (sum uint64, err error) {
	f, err := os.Open(file)
	if err != nil {
		return
	}
	defer fn.IgnoreClose(f)
	h := xxhash.New()
	if _, err = io.Copy(h, f); err != nil {
		return
	}
	return h.Sum64(), nil
}

const stampFormat = "xxhash:%016x\n"

// writeStamp put the source checksum ahead of the serialized linker.
func writeStamp(w io.Writer, sum uint64) error {
	_, err := fmt.Fprintf(w, stampFormat, sum)
	return err
}

// openLinkable opens cache positioned after its stamp, ok is false when cache is absent or was made from
// another content than sum.
func openLinkable(cache string, sum uint64) (f *os.File, r *bufio.Reader, ok bool) {
	f, err := os.Open(cache)
	if err != nil {
		return nil, nil, false
	}
	r = bufio.NewReader(f)
	var stamp uint64
	if _, err = fmt.Fscanf(r, stampFormat, &stamp); err != nil || stamp != sum {
		_ = f.Close()
		return nil, nil, false
	}
	return f, r, true
}

func (o ObjectOpener) Open(file, scratch string) (c CodeArchive, err error) {
	a := &objectArchive{path: file, pkg: o.Package, debug: o.Debug}
	if a.pkg == "" {
		a.pkg = "main"
	}
	if o.Symbols != nil {
		a.sym = o.Symbols.(symbols)
	} else {
		var s Symbols
		if s, err = NewSymbols(); err != nil {
			return
		}
		a.sym = s.(symbols)
	}
	if len(o.Types) > 0 {
		if a.debug {
			log.Println("register types", o.Types)
		}
		goloader.RegTypes(a.sym, o.Types...)
	}
	if err = a.read(scratch); err != nil {
		return
	}
	if err = a.link(); err != nil {
		return
	}
	return a, nil
}

func (s *objectArchive) read(scratch string) (err error) {
	sum, err := digest(s.path)
	if err != nil {
		return
	}
	cache := Linkable(s.path, s.pkg, scratch)
	if f, r, ok := openLinkable(cache, sum); ok {
		defer fn.IgnoreClose(f)
		if s.linker, err = goloader.UnSerialize(r); err == nil {
			if s.debug {
				log.Printf("loaded linker from %s: %+v", cache, s.linker)
			}
			return
		}
		if s.debug {
			log.Printf("drop broken linkable %s: %v", cache, err)
		}
	} else if s.debug {
		log.Printf("no linkable of %s in %s", s.path, scratch)
	}
	if s.linker, err = goloader.ReadObj(s.path, s.pkg); err != nil {
		return
	}
	if s.debug {
		log.Printf("create linker: %+v", s.linker)
	}
	var f *os.File
	if f, err = os.Create(cache); err != nil {
		return fmt.Errorf("create linkable %s: %w", cache, err)
	}
	defer fn.IgnoreClose(f)
	if err = writeStamp(f, sum); err == nil {
		err = goloader.Serialize(s.linker, f)
	}
	if err != nil {
		_ = os.Remove(cache)
		return fmt.Errorf("write linkable %s: %w", cache, err)
	}
	return
}

func (s *objectArchive) link() (err error) {
	if s.linker == nil {
		return ErrUninitialized
	}
	if s.module != nil {
		return ErrLinked
	}
	if s.module, err = goloader.Load(s.linker, s.sym); err != nil {
		return
	}
	if s.debug {
		log.Printf("create module: %+v", s.module)
	}
	return
}

func (s *objectArchive) Path() string {
	return s.path
}

func (s *objectArchive) Lookup(sym string) (u Sym, ok bool) {
	if s.module == nil {
		return
	}
	sym = checkPackage(sym)
	var p uintptr
	p, ok = s.module.Syms[sym]
	if !ok {
		return
	}
	if s.debug {
		log.Printf("found symbol %s: %x", sym, p)
	}
	return (Sym)(unsafe.Pointer(&p)), ok
}

func (s *objectArchive) Symbols() []string {
	if s.module == nil {
		return nil
	}
	return fn.MapKeys(s.module.Syms)
}

// MissingSymbols dump the symbols the archive failed to resolve against its Symbols.
func (s *objectArchive) MissingSymbols() []string {
	if s.linker == nil {
		panic(ErrUninitialized)
	}
	return goloader.UnresolvedSymbols(s.linker, s.sym)
}

func (s *objectArchive) Close() error {
	if s.module == nil {
		return ErrUninitialized
	}
	if s.debug {
		log.Printf("free archive: %s", s.path)
	}
	_ = os.Stdout.Sync()
	s.module.Unload()
	s.module = nil
	s.linker = nil
	s.sym = nil
	return nil
}

// MissingSymbols dump unresolved symbols of an archive opened by ObjectOpener, nil for other archives.
func MissingSymbols(c CodeArchive) []string {
	if o, ok := c.(*objectArchive); ok {
		return o.MissingSymbols()
	}
	return nil
}

func checkPackage(sym string) string {
	if strings.IndexByte(sym, '.') < 0 {
		return "main." + sym
	}
	return sym
}

// checkScratch validates scratch is an existing writable directory, it never creates one.
func checkScratch(scratch string) error {
	fi, err := os.Stat(scratch)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return &fs.PathError{Op: "scratch", Path: scratch, Err: errors.New("not a directory")}
	}
	f, err := os.CreateTemp(scratch, ".writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Use create a function to fetch and use symbol from loader on the fly
func Use[T any](l *Loader, sym string) func(func(t T, err error)) {
	return func(f func(t T, err error)) {
		var x T
		defer func() {
			switch y := recover().(type) {
			case nil:
				f(x, nil)
			case error:
				f(x, y)
			default:
				f(x, fmt.Errorf("%v", y))
			}
		}()
		p := l.MustFind(sym)
		x = As[T](p)
	}
}

// As convert fetched Sym to contract type
func As[T any](ptr Sym) (x T) {
	px := (*T)(unsafe.Pointer(&ptr))
	x = *px
	return
}
