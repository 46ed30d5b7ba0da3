package dynpatch

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// Patcher appends plugin archives to the search list of running loaders.
//
// Use Steps:
//
//  1. Build a Patcher with an ArchiveOpener and the platform level, or take one from ConfigFromEnv.
//  2. Call [Patcher.Patch] once per plugin archive, before any plugin symbol is looked up.
//  3. Resolve plugin symbols through the patched loader.
//
// The plugin element is always appended, existing elements keep their priority.
type Patcher struct {
	Opener        ArchiveOpener
	Level         int   //platform level, selects the element Generation
	Shape         Shape //fields to introspect, DefaultShape when zero
	AllowEarliest bool  //build EarliestElement for levels below LegacyLevel
	Debug         bool
}

// AllowEarliestEnv names the environment variable enabling Patcher.AllowEarliest in ConfigFromEnv.
const AllowEarliestEnv = "DYNPATCH_ALLOW_EARLIEST"

// ConfigFromEnv create a Patcher from environment, using opener to open archives.
func ConfigFromEnv(opener ArchiveOpener) (p *Patcher, err error) {
	p = &Patcher{Opener: opener}
	if p.Level, err = PlatformLevel(); err != nil {
		return nil, err
	}
	if v := os.Getenv(AllowEarliestEnv); v != "" {
		if p.AllowEarliest, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("parse %s: %w", AllowEarliestEnv, err)
		}
	}
	return
}

// Generation selected by Level.
func (p *Patcher) Generation() Generation {
	return GenerationOf(p.Level)
}

func (p *Patcher) shape() Shape {
	if p.Shape == (Shape{}) {
		return DefaultShape
	}
	return p.Shape
}

// Patch append an element wrapping archive to the search list of loader. loader is reached through its
// private fields named by Shape, so any struct laid out like Loader is accepted.
//
// On error the loader is unchanged and the error is a *PatchError.
func (p *Patcher) Patch(loader any, archive, scratch string) error {
	acc, err := Introspect(loader, p.shape())
	if err != nil {
		return err
	}
	return p.PatchAccessor(acc, archive, scratch)
}

// PatchAccessor is Patch on an already resolved search list.
func (p *Patcher) PatchAccessor(acc SearchPathAccessor, archive, scratch string) (err error) {
	if _, err = acc.Load(); err != nil {
		return
	}
	g := p.Generation()
	build, ok := constructors[g]
	if !ok {
		return fail(ConstructionError, "construct", archive, fmt.Errorf("no element layout for %s", g))
	}
	if g == Earliest && !p.AllowEarliest {
		return fail(ConstructionError, "construct", archive, fmt.Errorf("level %d needs the %s layout, which is not allowed", p.Level, g))
	}
	if p.Opener == nil {
		return fail(ArchiveLoadError, "open", archive, ErrUninitialized)
	}
	if err = checkScratch(scratch); err != nil {
		return fail(ArchiveLoadError, "scratch", archive, err)
	}
	a, err := p.Opener.Open(archive, scratch)
	if err != nil {
		return fail(ArchiveLoadError, "open", archive, err)
	}
	el := build(archive, a)
	if p.Debug {
		log.Printf("built %s for level %d", el, p.Level)
	}
	for {
		var cur *Elements
		if cur, err = acc.Load(); err != nil {
			_ = a.Close()
			return
		}
		n := len(*cur)
		next := make(Elements, n+1)
		copy(next, *cur)
		next[n] = el
		if acc.CompareAndSwap(cur, &next) {
			if p.Debug {
				log.Printf("published %d elements, %s at %d", n+1, archive, n)
			}
			return nil
		}
		if p.Debug {
			log.Printf("search list changed while patching %s, retry", archive)
		}
	}
}

// PatchQuietly is Patch which logs failures instead of returning them. It reports whether loader was patched,
// callers needing certainty should resolve a plugin symbol afterward.
func (p *Patcher) PatchQuietly(loader any, archive, scratch string) bool {
	if err := p.Patch(loader, archive, scratch); err != nil {
		log.Printf("patch %s: %v", archive, err)
		return false
	}
	return true
}
