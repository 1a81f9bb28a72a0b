package bundle

import (
	"os"
	"time"

	"github.com/satchelworks/satchel/internal/profile"
	"github.com/satchelworks/satchel/internal/shared/id"
)

// GitStatus annotates a file with its working-tree state.
type GitStatus string

const (
	GitUnknown   GitStatus = ""
	GitClean     GitStatus = "clean"
	GitModified  GitStatus = "modified"
	GitUntracked GitStatus = "untracked"
	GitIgnored   GitStatus = "ignored"
)

// File is one selected file flowing through the pipeline. Stages annotate
// it in place; a stage that drops a file records why in SkipReason and
// leaves it in the list so the final artifact can account for it.
type File struct {
	Path     string      `json:"-"`
	RelPath  string      `json:"path"`
	Size     int64       `json:"size"`
	Mode     os.FileMode `json:"-"`
	ModTime  time.Time   `json:"mod_time"`
	MIME     string      `json:"mime,omitempty"`
	Language string      `json:"language,omitempty"`
	Content  []byte      `json:"-"`
	Summary  string      `json:"summary,omitempty"`
	Tokens   int         `json:"tokens,omitempty"`
	Hash     string      `json:"hash,omitempty"`
	Git      GitStatus   `json:"git_status,omitempty"`

	// Charset is the detected source encoding for non-UTF-8 files; the
	// load stage decodes through it.
	Charset string `json:"-"`

	// SkipReason marks a file excluded mid-pipeline, e.g. "binary",
	// "duplicate of internal/x.go", "over token budget".
	SkipReason string `json:"skip_reason,omitempty"`
	// DuplicateOf names the file this one's body matched.
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// Skipped reports whether a stage excluded this file.
func (f *File) Skipped() bool { return f.SkipReason != "" }

// Text returns the file body as a string.
func (f *File) Text() string { return string(f.Content) }

// Bundle is the context value threaded through every stage of a pack run.
// It starts as root + profile and accumulates files, then the rendered
// artifact.
type Bundle struct {
	Root    string
	Profile *profile.Profile

	// Ignore holds glob patterns collected from ignore files at the root;
	// discovery honors them in addition to the profile's excludes.
	Ignore []string

	Files []*File

	// Artifact holds the rendered output after the render stage.
	Artifact []byte
	// ArtifactID is assigned when the artifact is assembled.
	ArtifactID id.ArtifactID
	// Checksum is the annotated artifact checksum recorded at delivery.
	Checksum string
	// Destination records where the deliver stage wrote the artifact.
	Destination string
}

// New creates a bundle for one run.
func New(root string, prof *profile.Profile) *Bundle {
	return &Bundle{Root: root, Profile: prof}
}

// Size implements the engine's cardinality hook: metrics report the number
// of files currently selected.
func (b *Bundle) Size() int { return len(b.Files) }

// Included returns the files not excluded by a prior stage, in order.
func (b *Bundle) Included() []*File {
	out := make([]*File, 0, len(b.Files))
	for _, f := range b.Files {
		if !f.Skipped() {
			out = append(out, f)
		}
	}
	return out
}

// SkippedFiles returns the files excluded so far, in order.
func (b *Bundle) SkippedFiles() []*File {
	out := make([]*File, 0)
	for _, f := range b.Files {
		if f.Skipped() {
			out = append(out, f)
		}
	}
	return out
}

// TotalBytes sums the sizes of included files.
func (b *Bundle) TotalBytes() int64 {
	var n int64
	for _, f := range b.Included() {
		n += f.Size
	}
	return n
}

// TotalTokens sums the token estimates of included files.
func (b *Bundle) TotalTokens() int {
	n := 0
	for _, f := range b.Included() {
		n += f.Tokens
	}
	return n
}
