package render

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/satchelworks/satchel/internal/bundle"
)

// Markdown renders a header, a directory tree, and one fenced section per
// file. Fences grow past any backtick run inside a body.
type Markdown struct{}

func (m *Markdown) Name() string { return "markdown" }

func (m *Markdown) Render(b *bundle.Bundle) ([]byte, error) {
	files := b.Included()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", path.Base(b.Root))
	if b.Profile != nil {
		fmt.Fprintf(&sb, "Profile: %s\n", b.Profile.Name)
	}
	fmt.Fprintf(&sb, "Files: %d (%d bytes)\n\n", len(files), b.TotalBytes())

	sb.WriteString("## Tree\n\n```\n")
	writeTree(&sb, files)
	sb.WriteString("```\n")

	for _, f := range files {
		fmt.Fprintf(&sb, "\n## %s\n\n", f.RelPath)
		if f.Git != bundle.GitUnknown && f.Git != bundle.GitClean {
			fmt.Fprintf(&sb, "_git: %s_\n\n", f.Git)
		}
		if f.Summary != "" {
			fmt.Fprintf(&sb, "> %s\n\n", strings.ReplaceAll(f.Summary, "\n", "\n> "))
		}

		fence := fenceFor(f.Content)
		sb.WriteString(fence)
		sb.WriteString(f.Language)
		sb.WriteByte('\n')
		sb.Write(f.Content)
		if len(f.Content) > 0 && f.Content[len(f.Content)-1] != '\n' {
			sb.WriteByte('\n')
		}
		sb.WriteString(fence)
		sb.WriteByte('\n')
	}

	if skipped := b.SkippedFiles(); len(skipped) > 0 {
		sb.WriteString("\n## Skipped\n\n")
		for _, f := range skipped {
			fmt.Fprintf(&sb, "- %s (%s)\n", f.RelPath, f.SkipReason)
		}
	}

	return []byte(sb.String()), nil
}

// treeNode is one directory or file in the rendered tree.
type treeNode struct {
	name     string
	children map[string]*treeNode
}

func writeTree(sb *strings.Builder, files []*bundle.File) {
	root := &treeNode{children: map[string]*treeNode{}}
	for _, f := range files {
		node := root
		for _, part := range strings.Split(f.RelPath, "/") {
			child, ok := node.children[part]
			if !ok {
				child = &treeNode{name: part, children: map[string]*treeNode{}}
				node.children[part] = child
			}
			node = child
		}
	}
	writeBranch(sb, root, "")
}

func writeBranch(sb *strings.Builder, node *treeNode, prefix string) {
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		child := node.children[name]
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(names)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(name)
		sb.WriteByte('\n')
		writeBranch(sb, child, childPrefix)
	}
}
