// Package assets holds the files apphost materializes into its data dir:
// the process runtime every app is started through and the default app
// template.
package assets

import (
	"embed"
	"io/fs"
)

// RuntimeScript is the runtime file name inside Runtime.
const RuntimeScript = "runtime.js"

//go:embed runtime
var runtimeFS embed.FS

//go:embed all:template
var templateFS embed.FS

// Runtime returns the runtime tree rooted at its directory.
func Runtime() fs.FS {
	return mustSub(runtimeFS, "runtime")
}

// DefaultTemplate returns the default app template tree.
func DefaultTemplate() fs.FS {
	return mustSub(templateFS, "template")
}

func mustSub(f embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(f, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
