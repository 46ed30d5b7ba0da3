package dynpatch

import (
	"github.com/ZenLiuCN/fn"
	"sync/atomic"
	"testing"
)

type (
	shadowList struct {
		dexElements atomic.Pointer[Elements]
	}
	shadowLoader struct {
		name  string
		paths *shadowList
	}
)

func TestIntrospectShapes(t *testing.T) {
	cases := []struct {
		name   string
		loader any
		kind   Kind
	}{
		{"value", Loader{}, IntrospectionError},
		{"nil", (*Loader)(nil), NullStateError},
		{"zero", new(Loader), NullStateError},
		{"not struct", new(int), IntrospectionError},
		{"missing container", &struct{ other int }{}, IntrospectionError},
		{"container not pointer", &struct{ pathList int }{}, IntrospectionError},
		{"missing entries", &struct{ pathList *struct{ other int } }{pathList: &struct{ other int }{}}, IntrospectionError},
		{"entries mistyped", &struct{ pathList *struct{ elements []Element } }{pathList: &struct{ elements []Element }{}}, IntrospectionError},
		{"never published", &struct{ pathList *PathList }{pathList: new(PathList)}, NullStateError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			acc, err := Introspect(c.loader, DefaultShape)
			if err == nil {
				_, err = acc.Load()
			}
			if KindOf(err) != c.kind {
				t.Fatalf("want %s, got %v", c.kind, err)
			}
			t.Log(err)
		})
	}
}

func TestIntrospectCustomShape(t *testing.T) {
	shape := Shape{Container: "paths", Entries: "dexElements"}
	l := &shadowLoader{name: "shadow", paths: new(shadowList)}
	if _, err := Introspect(l, DefaultShape); KindOf(err) != IntrospectionError {
		t.Fatalf("default shape matched: %v", err)
	}
	acc := fn.Panic1(Introspect(l, shape))
	if _, err := acc.Load(); KindOf(err) != NullStateError {
		t.Fatalf("want null state, got %v", err)
	}
	initial := Elements{NewModernElement(table("host0.o", map[string]Sym{symSampleVer: symOf(hostVersion)}), "host0.o")}
	l.paths.dexElements.Store(&initial)
	p := &Patcher{Opener: greeterOpener(), Level: ModernLevel, Shape: shape}
	fn.Panic(p.Patch(l, archiveGreeter, t.TempDir()))
	e := *l.paths.dexElements.Load()
	if len(e) != 2 || e[0] != initial[0] {
		t.Fatalf("unexpected list %v", e)
	}
	if _, ok := e[1].Find(symPluginGreet); !ok {
		t.Fatalf("missing %s", symPluginGreet)
	}
}

func TestAccessorCompareAndSwap(t *testing.T) {
	l := hostLoader()
	acc := fn.Panic1(Introspect(l, DefaultShape))
	cur := fn.Panic1(acc.Load())
	next := append(Elements{}, *cur...)
	stale := new(Elements)
	if acc.CompareAndSwap(stale, &next) {
		t.Fatal("swapped a stale list")
	}
	if !acc.CompareAndSwap(cur, &next) {
		t.Fatal("swap failed")
	}
	if fn.Panic1(acc.Load()) != &next {
		t.Fatal("swap not visible")
	}
}
