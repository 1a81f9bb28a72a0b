package render

import (
	"fmt"
	"strings"

	"github.com/satchelworks/satchel/internal/bundle"
)

// Plain concatenates file bodies separated by a path banner. Suited for
// piping into tools that choke on markup.
type Plain struct{}

func (p *Plain) Name() string { return "plain" }

func (p *Plain) Render(b *bundle.Bundle) ([]byte, error) {
	var sb strings.Builder
	for i, f := range b.Included() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "==== %s ====\n", f.RelPath)
		sb.Write(f.Content)
		if len(f.Content) > 0 && f.Content[len(f.Content)-1] != '\n' {
			sb.WriteByte('\n')
		}
	}
	return []byte(sb.String()), nil
}
