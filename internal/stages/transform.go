package stages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/pipeline"
)

// Transform applies the profile's transform list to every loaded body, in
// order. Built-ins: html-to-text, strip-comments, line-numbers, head:N,
// tail:N. A script:<path> entry runs user JavaScript in a sandbox.
type Transform struct{}

func (t *Transform) StageName() string { return "transform" }

// transformer rewrites one file body.
type transformer interface {
	Apply(f *bundle.File) error
}

func (t *Transform) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}
	if len(b.Profile.Transforms) == 0 {
		return b, nil
	}

	chain := make([]transformer, 0, len(b.Profile.Transforms))
	for _, spec := range b.Profile.Transforms {
		tr, pErr := parseTransform(spec)
		if pErr != nil {
			return nil, pErr
		}
		chain = append(chain, tr)
	}

	for _, f := range b.Files {
		if f.Skipped() || f.Content == nil {
			continue
		}
		for _, tr := range chain {
			if err := tr.Apply(f); err != nil {
				return nil, fmt.Errorf("%s: %w", f.RelPath, err)
			}
		}
		f.Size = int64(len(f.Content))
	}

	pipeline.Logf(ctx, "info", "applied %d transforms", len(chain))
	return b, nil
}

func parseTransform(spec string) (transformer, error) {
	switch {
	case spec == "html-to-text":
		return &htmlToText{sanitizer: bluemonday.UGCPolicy()}, nil
	case spec == "strip-comments":
		return &stripComments{}, nil
	case spec == "line-numbers":
		return &lineNumbers{}, nil
	case strings.HasPrefix(spec, "head:"):
		n, err := strconv.Atoi(strings.TrimPrefix(spec, "head:"))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("transform %q: line count must be a positive integer", spec)
		}
		return &truncate{lines: n, fromEnd: false}, nil
	case strings.HasPrefix(spec, "tail:"):
		n, err := strconv.Atoi(strings.TrimPrefix(spec, "tail:"))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("transform %q: line count must be a positive integer", spec)
		}
		return &truncate{lines: n, fromEnd: true}, nil
	case strings.HasPrefix(spec, "script:"):
		return newScriptTransform(strings.TrimPrefix(spec, "script:"))
	default:
		return nil, fmt.Errorf("unknown transform %q", spec)
	}
}

// htmlToText reduces HTML files to their visible text, prefixed with the
// document title when present. Non-HTML files pass through.
type htmlToText struct {
	sanitizer *bluemonday.Policy
}

func (h *htmlToText) Apply(f *bundle.File) error {
	if !strings.Contains(f.MIME, "html") && f.Language != "html" {
		return nil
	}

	clean := h.sanitizer.Sanitize(f.Text())

	var title string
	if node, err := htmlquery.Parse(strings.NewReader(f.Text())); err == nil {
		if tn := htmlquery.FindOne(node, "//title"); tn != nil {
			title = strings.TrimSpace(htmlquery.InnerText(tn))
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style").Remove()
	text := collapseBlankLines(doc.Text())

	if title != "" {
		text = title + "\n\n" + text
	}
	f.Content = []byte(text)
	f.Language = ""
	return nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// stripComments removes whole-line comments using the file's language tag.
// It is line-based: trailing comments and block comments sharing a line
// with code are left alone.
type stripComments struct{}

func (s *stripComments) Apply(f *bundle.File) error {
	marker := commentMarker(f.Language)
	if marker == "" {
		return nil
	}

	lines := strings.Split(f.Text(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), marker) {
			continue
		}
		out = append(out, line)
	}
	f.Content = []byte(strings.Join(out, "\n"))
	return nil
}

func commentMarker(language string) string {
	switch language {
	case "go", "c", "cpp", "java", "javascript", "jsx", "typescript", "tsx",
		"rust", "csharp", "swift", "kotlin", "scss", "zig", "php":
		return "//"
	case "python", "ruby", "bash", "yaml", "toml", "makefile", "dockerfile", "r", "perl", "hcl":
		return "#"
	case "sql", "lua":
		return "--"
	default:
		return ""
	}
}

// lineNumbers prefixes each line with its 1-based number.
type lineNumbers struct{}

func (l *lineNumbers) Apply(f *bundle.File) error {
	lines := strings.Split(f.Text(), "\n")
	width := len(strconv.Itoa(len(lines)))

	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%*d | %s", width, i+1, line)
		if i < len(lines)-1 {
			sb.WriteByte('\n')
		}
	}
	f.Content = []byte(sb.String())
	return nil
}

// truncate keeps the first or last N lines, noting the elision.
type truncate struct {
	lines   int
	fromEnd bool
}

func (t *truncate) Apply(f *bundle.File) error {
	lines := strings.Split(f.Text(), "\n")
	if len(lines) <= t.lines {
		return nil
	}

	elided := len(lines) - t.lines
	if t.fromEnd {
		kept := lines[len(lines)-t.lines:]
		f.Content = []byte(fmt.Sprintf("... (%d lines elided)\n%s", elided, strings.Join(kept, "\n")))
	} else {
		kept := lines[:t.lines]
		f.Content = []byte(fmt.Sprintf("%s\n... (%d lines elided)", strings.Join(kept, "\n"), elided))
	}
	return nil
}
