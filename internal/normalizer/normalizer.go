// Package normalizer composes the media pipeline: resolve a reference to
// local bytes, classify the container from binary content, decode,
// composite, resize, re-encode to BMP, and write the result to the cache
// directory — degrading through fallback tiers so an image failure never
// aborts the chat turn that attached it.
package normalizer

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pocketllm/mediabox/internal/imaging"
	"github.com/pocketllm/mediabox/internal/locator"
	"github.com/pocketllm/mediabox/internal/types"
)

// Options controls a single normalization call.
type Options struct {
	// MaxSize bounds the largest output dimension. Zero means the
	// configured default.
	MaxSize int
}

// Result describes a normalized media file. Path is a plain absolute
// filesystem path (no URI scheme), fully written and statable before it is
// returned.
type Result struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	SizeBytes   int64  `json:"size_bytes"`
	PassThrough bool   `json:"pass_through"`
	Placeholder bool   `json:"placeholder"`
	Reference   string `json:"reference"`
	CreatedAt   int64  `json:"created_at"`
}

// Normalizer is the pipeline orchestrator external collaborators call.
type Normalizer struct {
	locator  *locator.Locator
	cacheDir string
	maxSize  int
}

// New creates a Normalizer writing output files into cacheDir.
func New(loc *locator.Locator, cacheDir string, defaultMaxSize int) *Normalizer {
	return &Normalizer{
		locator:  loc,
		cacheDir: cacheDir,
		maxSize:  defaultMaxSize,
	}
}

// Normalize runs the full pipeline for one reference. A *types.ResolutionError
// means no attachment could be produced and the caller should proceed
// text-only; a *types.EncodeError means writing itself failed. Decode
// failures never surface: they are absorbed by the alternate-rendition,
// alternate-format-guess, and placeholder fallback tiers.
func (n *Normalizer) Normalize(ctx context.Context, reference string, opts Options) (*Result, error) {
	return n.normalize(ctx, reference, opts, 0)
}

// normalize is the state machine body. depth bounds the WebP
// alternate-rendition retry to a single level of recursion.
func (n *Normalizer) normalize(ctx context.Context, reference string, opts Options, depth int) (*Result, error) {
	maxSize := cmp.Or(opts.MaxSize, n.maxSize)

	path, err := n.locator.Resolve(ctx, reference)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path came from the locator, not raw user input
	if err != nil {
		return nil, types.NewResolutionError(reference, err)
	}

	format := imaging.Classify(data)
	slog.Debug("Media classified", "reference", reference, "format", format.String(), "bytes", len(data))

	var buf *imaging.PixelBuffer
	placeholder := false

	switch format {
	case imaging.FormatBMP:
		// Already displayable; the only branch that skips decode/encode.
		w, h := bmpDimensions(data)
		slog.Debug("Media passed through", "reference", reference, "path", path)
		return &Result{
			ID:          uuid.NewString(),
			Path:        path,
			Format:      imaging.FormatBMP.String(),
			Width:       w,
			Height:      h,
			SizeBytes:   int64(len(data)),
			PassThrough: true,
			Reference:   reference,
			CreatedAt:   time.Now().Unix(),
		}, nil

	case imaging.FormatPNG:
		decoded, err := imaging.DecodePNG(data)
		if err != nil {
			slog.Warn("PNG decode failed, using placeholder", "reference", reference, "error", err)
			buf, placeholder = imaging.WhitePlaceholder(), true
		} else {
			// PNG is the only source format expected to carry
			// transparency; compositing is a no-op for opaque pixels.
			buf = imaging.CompositeOnWhite(decoded)
		}

	case imaging.FormatJPEG:
		decoded, err := imaging.DecodeJPEG(data)
		if err != nil {
			slog.Warn("JPEG decode failed, using placeholder", "reference", reference, "error", err)
			buf, placeholder = imaging.WhitePlaceholder(), true
		} else {
			buf = decoded
		}

	case imaging.FormatWebP:
		// No WebP decode capability; try an alternate rendition once.
		if depth == 0 {
			if alt, ok := rewriteRenditionHint(reference); ok {
				slog.Debug("Requesting alternate rendition", "reference", reference, "alternate", alt)
				res, err := n.normalize(ctx, alt, opts, depth+1)
				if err == nil {
					return res, nil
				}
				var encodeErr *types.EncodeError
				if errors.As(err, &encodeErr) {
					return nil, err
				}
				slog.Warn("Alternate rendition not obtainable", "reference", reference, "error", err)
			}
		}
		slog.Warn("WebP source not decodable, using placeholder", "reference", reference)
		buf, placeholder = imaging.WhitePlaceholder(), true

	default:
		buf, placeholder = decodeUnknown(reference, data)
	}

	if w, h := imaging.FitWithin(buf.Width, buf.Height, maxSize); w != buf.Width || h != buf.Height {
		slog.Debug("Media resized", "reference", reference, "from_w", buf.Width, "from_h", buf.Height, "to_w", w, "to_h", h)
		buf = imaging.Resample(buf, w, h)
	}

	return n.writeOutput(reference, buf, placeholder)
}

// decodeUnknown handles unclassified content: try PNG as a first guess,
// then JPEG, then fall back to the placeholder.
func decodeUnknown(reference string, data []byte) (*imaging.PixelBuffer, bool) {
	if buf, err := imaging.DecodePNG(data); err == nil {
		slog.Debug("Unclassified media decoded as PNG", "reference", reference)
		return imaging.CompositeOnWhite(buf), false
	}
	if buf, err := imaging.DecodeJPEG(data); err == nil {
		slog.Debug("Unclassified media decoded as JPEG", "reference", reference)
		return buf, false
	}
	slog.Warn("Unclassified media not decodable, using placeholder", "reference", reference)
	return imaging.WhitePlaceholder(), true
}

// writeOutput encodes the pixel buffer to BMP, writes it to a uniquely
// named cache file, and verifies the write by stat before returning.
func (n *Normalizer) writeOutput(reference string, buf *imaging.PixelBuffer, placeholder bool) (*Result, error) {
	id := uuid.NewString()
	outPath := filepath.Join(n.cacheDir, "normalized-"+id+".bmp")

	encoded := imaging.EncodeBMP(buf)
	if err := os.WriteFile(outPath, encoded, 0o600); err != nil {
		return nil, types.NewEncodeError(outPath, err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, types.NewEncodeError(outPath, err)
	}
	if info.Size() != int64(len(encoded)) {
		return nil, types.NewEncodeError(outPath, fmt.Errorf("wrote %d bytes, stat reports %d", len(encoded), info.Size()))
	}

	slog.Info("Media normalized",
		"reference", reference,
		"path", outPath,
		"width", buf.Width,
		"height", buf.Height,
		"bytes", info.Size(),
		"placeholder", placeholder)

	return &Result{
		ID:          id,
		Path:        outPath,
		Format:      imaging.FormatBMP.String(),
		Width:       buf.Width,
		Height:      buf.Height,
		SizeBytes:   info.Size(),
		Placeholder: placeholder,
		Reference:   reference,
		CreatedAt:   time.Now().Unix(),
	}, nil
}

// rewriteRenditionHint rewrites a webp format hint in a URL query to
// request a JPEG rendition instead. String surgery on query tokens is
// inherently best-effort; failure to find a hint means an immediate
// fallback rather than further heuristics.
func rewriteRenditionHint(reference string) (string, bool) {
	u, err := url.Parse(reference)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}

	q := u.Query()
	changed := false
	for key, vals := range q {
		for i, v := range vals {
			if strings.EqualFold(v, "webp") {
				vals[i] = "jpeg"
				changed = true
			}
		}
		q[key] = vals
	}
	if !changed {
		return "", false
	}

	u.RawQuery = q.Encode()
	return u.String(), true
}

// bmpDimensions peeks width/height out of a BMP DIB header for reporting.
// Returns zeros when the header is too short to carry them.
func bmpDimensions(data []byte) (int, int) {
	if len(data) < 26 {
		return 0, 0
	}
	w := int(int32(binary.LittleEndian.Uint32(data[18:22])))
	h := int(int32(binary.LittleEndian.Uint32(data[22:26])))
	if h < 0 {
		h = -h // top-down BMPs store negative height
	}
	return w, h
}
