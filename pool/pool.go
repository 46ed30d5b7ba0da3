package pool

import (
	"errors"
	. "github.com/ZenLiuCN/dynpatch"
	"github.com/ZenLiuCN/fn"
	"path/filepath"
	"slices"
	"sync"
)

// Pool injects plugin archives into one Loader, each archive at most once.
type Pool struct {
	Loader  *Loader
	Patcher *Patcher
	Scratch string
	Modules map[string]Generation //injected archive with the layout it was built with
	Loaded  []string              //injected archives in search order
	sync.RWMutex
}

var (
	ErrAlreadyLoad = errors.New("archive already injected")
)

// Inject patch the loader with file, file is recorded by its absolute path.
func (p *Pool) Inject(file string) (err error) {
	if file, err = filepath.Abs(file); err != nil {
		return
	}
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Modules[file]; ok {
		return ErrAlreadyLoad
	}
	if err = p.Patcher.Patch(p.Loader, file, p.Scratch); err != nil {
		return
	}
	p.Modules[file] = p.Patcher.Generation()
	p.Loaded = append(p.Loaded, file)
	return
}

// Archives returns injected archives in search order.
func (p *Pool) Archives() []string {
	p.RLock()
	defer p.RUnlock()
	return slices.Clone(p.Loaded)
}

// Injected reports whether file was injected by this pool.
func (p *Pool) Injected(file string) bool {
	abs, err := filepath.Abs(file)
	if err != nil {
		return false
	}
	p.RLock()
	defer p.RUnlock()
	_, ok := p.Modules[abs]
	return ok
}

// Generations returns the distinct layouts used by injected archives.
func (p *Pool) Generations() []Generation {
	p.RLock()
	defer p.RUnlock()
	g := make(map[Generation]struct{}, 3)
	for _, v := range p.Modules {
		g[v] = struct{}{}
	}
	v := fn.MapKeys(g)
	slices.Sort(v)
	return v
}

// Require fetch symbol through the loader, throws ErrUninitialized or ErrMissingSymbol
func (p *Pool) Require(symbolName string) Sym {
	return p.Loader.MustFind(symbolName)
}

// NewPool create new pool injecting into loader
func NewPool(loader *Loader, patcher *Patcher, scratch string) *Pool {
	p := new(Pool)
	p.Loader = loader
	p.Patcher = patcher
	p.Scratch = scratch
	p.Modules = make(map[string]Generation)
	return p
}
