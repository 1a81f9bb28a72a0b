package stages

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/shared/utils"
)

// Deliver writes the rendered artifact to its destination and records the
// artifact checksum. Destinations: "-" (stdout), "clipboard", an archive
// path (*.tar.gz, *.tar.zst, *.zip), or a plain file path.
type Deliver struct {
	// Stdout receives the artifact for the "-" destination; defaults to
	// os.Stdout.
	Stdout io.Writer

	fingerprint *utils.Fingerprint
}

func (s *Deliver) StageName() string { return "deliver" }

func (s *Deliver) Init(ec *pipeline.ExecContext) error {
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	s.fingerprint = utils.NewFingerprint(utils.DefaultHasher())
	return nil
}

func (s *Deliver) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}
	if b.Artifact == nil {
		return nil, fmt.Errorf("no artifact to deliver")
	}

	b.Checksum = s.fingerprint.Checksum(b.Artifact)

	dest := b.Profile.Output
	if dest == "" {
		dest = "-"
	}

	switch {
	case dest == "-":
		if _, err := s.Stdout.Write(b.Artifact); err != nil {
			return nil, fmt.Errorf("write stdout: %w", err)
		}
		b.Destination = "stdout"
	case dest == "clipboard":
		if err := clipboard.WriteAll(string(b.Artifact)); err != nil {
			return nil, fmt.Errorf("clipboard: %w", err)
		}
		b.Destination = "clipboard"
	case strings.HasSuffix(dest, ".tar.gz"), strings.HasSuffix(dest, ".tar.zst"), strings.HasSuffix(dest, ".zip"):
		if err := writeArchive(dest, artifactFileName(b), b.Artifact); err != nil {
			return nil, err
		}
		b.Destination = dest
	default:
		if err := os.WriteFile(dest, b.Artifact, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", dest, err)
		}
		b.Destination = dest
	}

	pipeline.Logf(ctx, "info", "delivered %d bytes to %s (%s)", len(b.Artifact), b.Destination, b.Checksum)
	return b, nil
}

// artifactFileName is the entry name inside archives.
func artifactFileName(b *bundle.Bundle) string {
	ext := map[string]string{"xml": ".xml", "json": ".json", "plain": ".txt"}[strings.ToLower(b.Profile.Format)]
	if ext == "" {
		ext = ".md"
	}
	return filepath.Base(b.Root) + ext
}

func writeArchive(dest, name string, artifact []byte) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	switch {
	case strings.HasSuffix(dest, ".zip"):
		zw := zip.NewWriter(out)
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write(artifact); err != nil {
			return err
		}
		return zw.Close()

	case strings.HasSuffix(dest, ".tar.zst"):
		zw, err := zstd.NewWriter(out)
		if err != nil {
			return err
		}
		if err := writeTar(zw, name, artifact); err != nil {
			return err
		}
		return zw.Close()

	default: // .tar.gz
		gw := gzip.NewWriter(out)
		if err := writeTar(gw, name, artifact); err != nil {
			return err
		}
		return gw.Close()
	}
}

func writeTar(w io.Writer, name string, artifact []byte) error {
	tw := tar.NewWriter(w)
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(artifact)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := tw.Write(artifact); err != nil {
		return err
	}
	return tw.Close()
}
