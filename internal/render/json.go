package render

import (
	"path"

	"github.com/bytedance/sonic"

	"github.com/satchelworks/satchel/internal/bundle"
)

// JSON renders the bundle as a machine-readable document: metadata, the
// selected files with bodies, and the skip ledger.
type JSON struct{}

func (j *JSON) Name() string { return "json" }

type jsonPack struct {
	Root    string      `json:"root"`
	Profile string      `json:"profile,omitempty"`
	Bytes   int64       `json:"total_bytes"`
	Tokens  int         `json:"total_tokens,omitempty"`
	Files   []*jsonFile `json:"files"`
	Skipped []*jsonSkip `json:"skipped,omitempty"`
}

type jsonFile struct {
	*bundle.File
	Body string `json:"body"`
}

type jsonSkip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (j *JSON) Render(b *bundle.Bundle) ([]byte, error) {
	doc := jsonPack{
		Root:   path.Base(b.Root),
		Bytes:  b.TotalBytes(),
		Tokens: b.TotalTokens(),
		Files:  make([]*jsonFile, 0, len(b.Files)),
	}
	if b.Profile != nil {
		doc.Profile = b.Profile.Name
	}

	for _, f := range b.Included() {
		doc.Files = append(doc.Files, &jsonFile{File: f, Body: f.Text()})
	}
	for _, f := range b.SkippedFiles() {
		doc.Skipped = append(doc.Skipped, &jsonSkip{Path: f.RelPath, Reason: f.SkipReason})
	}

	out, err := sonic.ConfigDefault.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
