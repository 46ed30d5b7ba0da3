package dynpatch

import (
	"errors"
	"github.com/ZenLiuCN/fn"
	"os"
	"testing"
)

func TestSystem(t *testing.T) {
	s := System()
	if s != System() {
		t.Fatal("system loader not shared")
	}
	if s.Parent() != nil || s.Elements() == nil {
		t.Fatalf("unexpected system loader %+v", s)
	}
	n := len(s.Elements())
	p := &Patcher{Opener: greeterOpener(), Level: ModernLevel}
	fn.Panic(p.Patch(s, archiveGreeter, t.TempDir()))
	if len(System().Elements()) != n+1 {
		t.Fatal("system loader not patched")
	}
	if _, ok := System().Find(symPluginGreet); !ok {
		t.Fatalf("missing %s", symPluginGreet)
	}
	fn.Panic(CloseSystem())
	if _, ok := System().Find(symPluginGreet); ok {
		t.Fatal("closed archive still resolves")
	}
}

func TestPatchSystemBadEnv(t *testing.T) {
	n := len(System().Elements())
	t.Setenv(LevelEnv, "modern")
	err := PatchSystem(modulePlugin, t.TempDir())
	if err == nil {
		t.Fatal("bad level accepted")
	}
	var pe *PatchError
	if errors.As(err, &pe) {
		t.Fatalf("configuration error reported as %s", pe.Kind)
	}
	if len(System().Elements()) != n {
		t.Fatal("system loader changed")
	}
}

func TestPatchSystemObjects(t *testing.T) {
	if _, err := os.Stat(modulePlugin); err != nil {
		t.Skipf("%s not compiled: %v", modulePlugin, err)
	}
	var g Greeter
	fn.Panic(PatchSystem(modulePlugin, t.TempDir(), &g))
	gr := As[typeGreeter](System().MustFind(symGreeter))()
	t.Log(gr.Greet("system"))
}
