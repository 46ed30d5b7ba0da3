package dynpatch

import (
	"sync"
)

var (
	system     *Loader
	systemOnce sync.Once
)

// System returns the process wide loader. It starts with an empty search list and only grows by patching.
func System() *Loader {
	systemOnce.Do(func() {
		system = NewLoader(nil)
	})
	return system
}

// PatchSystem patches the System loader with a goloader backed Patcher configured from environment,
// the archive links against runtime symbols of current executable. A malformed environment is returned as is,
// other failures are *PatchError.
func PatchSystem(archive, scratch string, types ...any) error {
	p, err := ConfigFromEnv(nil)
	if err != nil {
		return err
	}
	s, err := NewSymbols()
	if err != nil {
		return fail(ArchiveLoadError, "symbols", archive, err)
	}
	p.Opener = ObjectOpener{Symbols: s, Types: types}
	return p.Patch(System(), archive, scratch)
}

// CloseSystem release archives injected into the System loader. this should only use when no symbol of them
// is in use!
func CloseSystem() error {
	return System().Close()
}
