package dynpatch

import (
	"github.com/pkujhd/goloader"
	"github.com/pkujhd/goloader/obj"
	"slices"
	"strings"
)

// ObjectImportsIter resolve all imported packages and version (only if it's a module) of an archive file.
//
// this use for inspecting plugin dependencies before patching
func ObjectImportsIter(file, pkgPath string) (info *Info, err error) {
	v := &obj.Pkg{Syms: make(map[string]*obj.ObjSymbol, 0), File: file, PkgPath: pkgPath}
	if v.PkgPath == obj.EmptyString {
		v.PkgPath = "main"
	}
	if err = v.Symbols(); err != nil {
		return
	}
	info = parseInfo(v)
	info.File = file
	info.PkgPath = pkgPath
	return
}

type (
	// Import is one package an archive depends on, Version is empty for std or non module packages.
	Import struct {
		Path    string
		Version string
	}
	// Info lists the dependencies of an archive, ordered by import path.
	Info struct {
		File    string
		PkgPath string
		Imports []Import
	}
)

func (i Import) String() string {
	if i.Version == "" {
		return i.Path
	}
	return i.Path + "@" + i.Version
}

func (i Info) String() string {
	s := strings.Builder{}
	for _, v := range i.Imports {
		s.WriteString("\t" + v.String() + "\n")
	}
	return s.String()
}

// Version of an imported package, empty when unknown.
func (i Info) Version(path string) string {
	n, ok := slices.BinarySearchFunc(i.Imports, path, func(x Import, p string) int {
		return strings.Compare(x.Path, p)
	})
	if !ok {
		return ""
	}
	return i.Imports[n].Version
}

func parseInfo(v *obj.Pkg) *Info {
	versions := make(map[string]string, len(v.ImportPkgs))
	for _, f := range v.CUFiles {
		mod, ver, ok := moduleOf(f)
		if !ok {
			continue
		}
		for _, pkg := range v.ImportPkgs {
			if _, found := versions[pkg]; !found && (pkg == mod || strings.HasPrefix(pkg, mod+"/")) {
				versions[pkg] = ver
			}
		}
	}
	i := &Info{Imports: make([]Import, 0, len(v.ImportPkgs))}
	for _, pkg := range v.ImportPkgs {
		i.Imports = append(i.Imports, Import{Path: pkg, Version: versions[pkg]})
	}
	slices.SortFunc(i.Imports, func(a, b Import) int {
		return strings.Compare(a.Path, b.Path)
	})
	i.Imports = slices.CompactFunc(i.Imports, func(a, b Import) bool {
		return a.Path == b.Path
	})
	return i
}

// moduleOf extract module path and version from a compile unit file inside the module cache,
// like 'gofile../go/pkg/mod/github.com/!zen!liu!c!n/fn@v0.1.33/fn.go'.
func moduleOf(f string) (mod, ver string, ok bool) {
	f = strings.TrimPrefix(f, "gofile..")
	if strings.HasPrefix(f, "$GOROOT") {
		return
	}
	at := strings.IndexByte(f, '@')
	if at < 0 {
		return
	}
	ver = f[at+1:]
	if n := strings.IndexByte(ver, '/'); n >= 0 {
		ver = ver[:n]
	}
	mod = f[:at]
	if n := strings.Index(mod, "/pkg/mod/"); n >= 0 {
		mod = mod[n+len("/pkg/mod/"):]
	}
	return unescape(mod), ver, ver != ""
}

// unescape decode module cache escaping, '!x' stands for 'X'.
func unescape(f string) string {
	if strings.IndexByte(f, '!') < 0 {
		return f
	}
	v := strings.Builder{}
	upper := false
	for _, c := range []byte(f) {
		switch {
		case c == '!':
			upper = true
		case upper:
			upper = false
			v.WriteByte(c - 'a' + 'A')
		default:
			v.WriteByte(c)
		}
	}
	return v.String()
}

// Inspect display symbols inside an archive file
func Inspect(file, pkg string) ([]string, error) {
	return goloader.Parse(file, pkg)
}
