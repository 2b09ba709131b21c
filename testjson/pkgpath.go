package testjson

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// RelativePackagePath returns a package path relative to the module of the
// current working directory. Returns "." for the module itself, and the full
// path for packages outside the module.
func RelativePackagePath(pkgpath string) string {
	switch {
	case pkgPathPrefix == "":
		return pkgpath
	case pkgpath == pkgPathPrefix:
		return "."
	}
	return strings.TrimPrefix(pkgpath, pkgPathPrefix+"/")
}

// getPkgPathPrefix returns the module path from the go.mod of the working
// directory, or any parent directory.
func getPkgPathPrefix() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		raw, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil {
			return modfile.ModulePath(raw)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

var pkgPathPrefix = getPkgPathPrefix()
