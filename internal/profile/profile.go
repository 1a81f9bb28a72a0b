package profile

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/satchelworks/satchel/internal/shared/utils"
)

// BinaryPolicy decides what happens to files sniffed as binary.
type BinaryPolicy string

const (
	BinaryDrop        BinaryPolicy = "drop"
	BinaryKeep        BinaryPolicy = "keep"
	BinaryPlaceholder BinaryPolicy = "placeholder"
)

// CharsetPolicy decides what happens to non-UTF-8 files.
type CharsetPolicy string

const (
	// CharsetConvert decodes known charsets to UTF-8 and skips unknown ones.
	CharsetConvert CharsetPolicy = "convert"
	// CharsetStrict fails the run on any non-UTF-8 file.
	CharsetStrict CharsetPolicy = "strict"
	// CharsetSkip drops non-UTF-8 files with a skip reason.
	CharsetSkip CharsetPolicy = "skip"
)

// GitOptions controls the gitstatus stage.
type GitOptions struct {
	// Annotate tags each file with its working-tree status.
	Annotate bool `yaml:"annotate"`
	// OnlyChanged keeps only modified and untracked files.
	OnlyChanged bool `yaml:"only_changed"`
}

// Profile is one declarative file-selection and transformation recipe.
// Profiles support single-parent inheritance through Extends.
type Profile struct {
	Name    string `yaml:"name"`
	Extends string `yaml:"extends,omitempty"`

	// Include and Exclude are doublestar globs on root-relative paths.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	// MaxFileSize caps individual file sizes in bytes; 0 means no cap.
	MaxFileSize int64 `yaml:"max_file_size"`

	Binary  BinaryPolicy  `yaml:"binary"`
	Charset CharsetPolicy `yaml:"charset"`

	// Transforms are applied in order: built-ins (html-to-text,
	// strip-comments, line-numbers, head:N, tail:N) or script:path.js
	// entries run in the JS sandbox.
	Transforms []string `yaml:"transforms"`

	// Summarize enables per-file AI summaries for files matching
	// SummarizeGlobs (all included files when empty).
	Summarize      bool     `yaml:"summarize"`
	SummarizeGlobs []string `yaml:"summarize_globs"`

	// SortBy orders files in the artifact: path, size, or none
	// (discovery order).
	SortBy string `yaml:"sort_by"`

	// Format is the artifact format: markdown, xml, json, or plain.
	Format string `yaml:"format"`
	// Output is the destination: "-" for stdout, "clipboard", a *.tar.gz /
	// *.tar.zst / *.zip path for an archive, any other path for a file.
	Output string `yaml:"output"`

	Git GitOptions `yaml:"git"`

	// TokenBudget caps the artifact's estimated token count; 0 disables
	// enforcement.
	TokenBudget int `yaml:"token_budget"`
}

// ValidationError reports a malformed profile field.
type ValidationError struct {
	Profile string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile %s: field %s: %s", e.Profile, e.Field, e.Reason)
}

// Validate checks the profile after inheritance resolution.
func (p *Profile) Validate() error {
	if err := utils.ValidateProfileName(p.Name); err != nil {
		return &ValidationError{Profile: p.Name, Field: "name", Reason: err.Error()}
	}

	for field, patterns := range map[string][]string{
		"include":         p.Include,
		"exclude":         p.Exclude,
		"summarize_globs": p.SummarizeGlobs,
	} {
		if err := utils.ValidatePatterns(patterns); err != nil && len(patterns) > 0 {
			return &ValidationError{Profile: p.Name, Field: field, Reason: err.Error()}
		}
		for _, pat := range patterns {
			if !doublestar.ValidatePattern(pat) {
				return &ValidationError{Profile: p.Name, Field: field, Reason: fmt.Sprintf("invalid pattern %q", pat)}
			}
		}
	}

	switch p.Binary {
	case "", BinaryDrop, BinaryKeep, BinaryPlaceholder:
	default:
		return &ValidationError{Profile: p.Name, Field: "binary", Reason: fmt.Sprintf("unknown policy %q", p.Binary)}
	}

	switch p.Charset {
	case "", CharsetConvert, CharsetStrict, CharsetSkip:
	default:
		return &ValidationError{Profile: p.Name, Field: "charset", Reason: fmt.Sprintf("unknown policy %q", p.Charset)}
	}

	switch p.SortBy {
	case "", "path", "size", "none":
	default:
		return &ValidationError{Profile: p.Name, Field: "sort_by", Reason: fmt.Sprintf("unknown order %q", p.SortBy)}
	}

	if p.Format != "" {
		if err := utils.ValidateFormat(p.Format); err != nil {
			return &ValidationError{Profile: p.Name, Field: "format", Reason: err.Error()}
		}
	}

	if p.MaxFileSize < 0 {
		return &ValidationError{Profile: p.Name, Field: "max_file_size", Reason: "must be non-negative"}
	}
	if p.TokenBudget < 0 {
		return &ValidationError{Profile: p.Name, Field: "token_budget", Reason: "must be non-negative"}
	}

	return nil
}

// Matches reports whether a root-relative slash path is selected by the
// profile's include/exclude globs. An empty include list selects
// everything; exclude wins over include.
func (p *Profile) Matches(relPath string) bool {
	for _, pat := range p.Exclude {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return false
		}
	}
	if len(p.Include) == 0 {
		return true
	}
	for _, pat := range p.Include {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return true
		}
	}
	return false
}

// WantsSummary reports whether a file should receive an AI summary.
func (p *Profile) WantsSummary(relPath string) bool {
	if !p.Summarize {
		return false
	}
	if len(p.SummarizeGlobs) == 0 {
		return true
	}
	for _, pat := range p.SummarizeGlobs {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return true
		}
	}
	return false
}

// merge overlays child on parent: scalars from the child win when set,
// list fields append the child's entries after the parent's.
func merge(parent, child *Profile) *Profile {
	out := *parent
	out.Name = child.Name
	out.Extends = child.Extends

	out.Include = append(append([]string(nil), parent.Include...), child.Include...)
	out.Exclude = append(append([]string(nil), parent.Exclude...), child.Exclude...)
	out.SummarizeGlobs = append(append([]string(nil), parent.SummarizeGlobs...), child.SummarizeGlobs...)
	out.Transforms = append(append([]string(nil), parent.Transforms...), child.Transforms...)

	if child.MaxFileSize != 0 {
		out.MaxFileSize = child.MaxFileSize
	}
	if child.Binary != "" {
		out.Binary = child.Binary
	}
	if child.Charset != "" {
		out.Charset = child.Charset
	}
	if child.Summarize {
		out.Summarize = true
	}
	if child.SortBy != "" {
		out.SortBy = child.SortBy
	}
	if child.Format != "" {
		out.Format = child.Format
	}
	if child.Output != "" {
		out.Output = child.Output
	}
	if child.TokenBudget != 0 {
		out.TokenBudget = child.TokenBudget
	}
	if child.Git.Annotate {
		out.Git.Annotate = true
	}
	if child.Git.OnlyChanged {
		out.Git.OnlyChanged = true
	}

	return &out
}
