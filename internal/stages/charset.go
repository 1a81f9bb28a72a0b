package stages

import (
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/profile"
)

// charsetSample bounds how much of a file is read for detection.
const charsetSample = 8 * 1024

// Charset detects each file's encoding from a leading sample. UTF-8 files
// pass untouched; others are handled per the profile's charset policy,
// with the actual decode deferred to the load stage.
type Charset struct{}

func (s *Charset) StageName() string { return "charset" }

func (s *Charset) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}
	policy := b.Profile.Charset
	if policy == "" {
		policy = profile.CharsetConvert
	}

	detector := chardet.NewTextDetector()
	converted, skipped := 0, 0

	for _, f := range b.Files {
		if f.Skipped() || f.Content != nil {
			continue
		}

		sample, sErr := readSample(f.Path, charsetSample)
		if sErr != nil {
			f.SkipReason = "unreadable: " + sErr.Error()
			continue
		}
		if utf8.Valid(sample) {
			continue
		}

		result, dErr := detector.DetectBest(sample)
		if dErr != nil || result == nil || result.Charset == "" {
			if policy == profile.CharsetStrict {
				return nil, fmt.Errorf("%s: undetectable encoding", f.RelPath)
			}
			f.SkipReason = "undetectable encoding"
			skipped++
			continue
		}

		enc, eErr := ianaindex.IANA.Encoding(result.Charset)
		if eErr != nil || enc == nil {
			if policy == profile.CharsetStrict {
				return nil, fmt.Errorf("%s: unsupported encoding %s", f.RelPath, result.Charset)
			}
			f.SkipReason = "unsupported encoding " + result.Charset
			skipped++
			continue
		}

		switch policy {
		case profile.CharsetStrict:
			return nil, fmt.Errorf("%s: not UTF-8 (%s)", f.RelPath, result.Charset)
		case profile.CharsetSkip:
			f.SkipReason = "non-UTF-8 (" + result.Charset + ")"
			skipped++
		default:
			f.Charset = result.Charset
			converted++
		}
	}

	if converted > 0 || skipped > 0 {
		pipeline.Logf(ctx, "info", "charset: %d to convert, %d skipped", converted, skipped)
	}
	return b, nil
}

func readSample(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	buf = buf[:read]

	// A full sample may cut a multi-byte rune; trim the partial tail so a
	// truncated UTF-8 file is not misclassified.
	if read == n {
		for i := 0; i < utf8.UTFMax && len(buf) > 0; i++ {
			r, size := utf8.DecodeLastRune(buf)
			if r != utf8.RuneError || size != 1 {
				break
			}
			buf = buf[:len(buf)-1]
		}
	}
	return buf, nil
}
