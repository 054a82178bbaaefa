package version

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
)

// Package returns the overall, canonical project import path under
// which the package was built.
func Package() string {
	return mainpkg
}

// Version returns the module version the running binary was built from.
// A version not set at link time falls back to the one recorded by go
// install.
func Version() string {
	if !strings.HasSuffix(version, "+unknown") {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Path == mainpkg && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// Revision returns the VCS (e.g. git) revision being used to build
// the program at linking time, or the one recorded in the build
// information.
func Revision() string {
	if revision != "" {
		return revision
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}

// FprintVersion outputs the version string to the writer, in the following
// format, followed by a newline:
//
//	<cmd> <project> <version> [<revision>]
//
// For example, a binary "graphstore" built from github.com/rdfkit/graphstore
// with version "v0.1.0" would print the following:
//
//	graphstore github.com/rdfkit/graphstore v0.1.0
func FprintVersion(w io.Writer) {
	if r := Revision(); r != "" {
		fmt.Fprintln(w, os.Args[0], Package(), Version(), r)
		return
	}
	fmt.Fprintln(w, os.Args[0], Package(), Version())
}

// PrintVersion outputs the version information, from Fprint, to stdout.
func PrintVersion() {
	FprintVersion(os.Stdout)
}
