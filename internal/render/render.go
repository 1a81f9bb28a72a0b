// Package render assembles a bundle's selected files into a single
// artifact in one of the supported output formats.
package render

import (
	"fmt"
	"strings"

	"github.com/satchelworks/satchel/internal/bundle"
)

// Renderer turns a bundle into an artifact body.
type Renderer interface {
	// Render produces the artifact bytes for a finished bundle.
	Render(b *bundle.Bundle) ([]byte, error)
	// Name is the canonical format name.
	Name() string
}

// For returns the renderer for a format name. "md" aliases "markdown".
func For(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return &Markdown{}, nil
	case "xml":
		return &XML{}, nil
	case "json":
		return &JSON{}, nil
	case "plain":
		return &Plain{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// fenceFor picks a fence that cannot collide with the body: one backtick
// longer than the longest backtick run in the content, minimum three.
func fenceFor(content []byte) string {
	longest := 0
	run := 0
	for _, c := range content {
		if c == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	n := longest + 1
	if n < 3 {
		n = 3
	}
	return strings.Repeat("`", n)
}
