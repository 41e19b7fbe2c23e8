// Package web embeds the console's templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static templates
var content embed.FS

// StaticFS returns the static asset file system.
func StaticFS() fs.FS {
	return sub("static")
}

// TemplatesFS returns the page template file system.
func TemplatesFS() fs.FS {
	return sub("templates")
}

func sub(dir string) fs.FS {
	f, err := fs.Sub(content, dir)
	if err != nil {
		// Only reachable if the embed directive and dir disagree.
		panic("web: missing embedded directory " + dir)
	}
	return f
}
