package stages

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/profile"
)

// Binary sniffs each file's MIME type from its header bytes and applies
// the profile's binary policy. Text files get a language tag for fenced
// rendering.
type Binary struct{}

func (s *Binary) StageName() string { return "binary" }

func (s *Binary) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}
	policy := b.Profile.Binary
	if policy == "" {
		policy = profile.BinaryDrop
	}

	dropped := 0
	for _, f := range b.Files {
		if f.Skipped() {
			continue
		}

		mt, detErr := mimetype.DetectFile(f.Path)
		if detErr != nil {
			f.SkipReason = "unreadable: " + detErr.Error()
			continue
		}
		f.MIME = mt.String()
		f.Language = languageFor(f.RelPath, f.MIME)

		if isText(mt) {
			continue
		}
		switch policy {
		case profile.BinaryKeep:
		case profile.BinaryPlaceholder:
			// Pre-set content marks the file final; load leaves it alone.
			f.Content = []byte("(binary " + f.MIME + ", " + byteCount(f.Size) + ")")
		default:
			f.SkipReason = "binary (" + f.MIME + ")"
			dropped++
		}
	}

	if dropped > 0 {
		pipeline.Logf(ctx, "info", "dropped %d binary files", dropped)
	}
	return b, nil
}

// isText walks the detected type's ancestry looking for text/plain, which
// every textual detection in mimetype descends from.
func isText(mt *mimetype.MIME) bool {
	for cur := mt; cur != nil; cur = cur.Parent() {
		if cur.Is("text/plain") {
			return true
		}
	}
	return false
}

func byteCount(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(n)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}

// languageFor maps a file to the info string used on markdown fences.
var extLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".rb":    "ruby",
	".rs":    "rust",
	".js":    "javascript",
	".jsx":   "jsx",
	".ts":    "typescript",
	".tsx":   "tsx",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".sh":    "bash",
	".bash":  "bash",
	".zsh":   "bash",
	".sql":   "sql",
	".html":  "html",
	".htm":   "html",
	".css":   "css",
	".scss":  "scss",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".xml":   "xml",
	".md":    "markdown",
	".proto": "protobuf",
	".tf":    "hcl",
	".lua":   "lua",
	".swift": "swift",
	".kt":    "kotlin",
	".php":   "php",
	".pl":    "perl",
	".r":     "r",
	".zig":   "zig",
}

func languageFor(relPath, mime string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(relPath))]; ok {
		return lang
	}
	base := strings.ToLower(filepath.Base(relPath))
	switch base {
	case "makefile", "gnumakefile":
		return "makefile"
	case "dockerfile":
		return "dockerfile"
	}
	if strings.HasPrefix(mime, "text/x-shellscript") {
		return "bash"
	}
	return ""
}
