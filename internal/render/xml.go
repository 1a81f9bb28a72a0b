package render

import (
	"bytes"
	"encoding/xml"
	"path"

	"github.com/satchelworks/satchel/internal/bundle"
)

// XML renders the bundle as a <pack> document with one <file> element per
// selected file, body as character data.
type XML struct{}

func (x *XML) Name() string { return "xml" }

type xmlPack struct {
	XMLName xml.Name  `xml:"pack"`
	Root    string    `xml:"root,attr"`
	Profile string    `xml:"profile,attr,omitempty"`
	Files   []xmlFile `xml:"file"`
}

type xmlFile struct {
	Path     string `xml:"path,attr"`
	Size     int64  `xml:"size,attr"`
	Language string `xml:"language,attr,omitempty"`
	Git      string `xml:"git,attr,omitempty"`
	Summary  string `xml:"summary,omitempty"`
	Body     string `xml:",chardata"`
}

func (x *XML) Render(b *bundle.Bundle) ([]byte, error) {
	doc := xmlPack{Root: path.Base(b.Root)}
	if b.Profile != nil {
		doc.Profile = b.Profile.Name
	}

	for _, f := range b.Included() {
		doc.Files = append(doc.Files, xmlFile{
			Path:     f.RelPath,
			Size:     f.Size,
			Language: f.Language,
			Git:      string(f.Git),
			Summary:  f.Summary,
			Body:     f.Text(),
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
