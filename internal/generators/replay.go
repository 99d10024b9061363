package generators

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"

	xdraw "golang.org/x/image/draw"

	_ "image/png" // frame files are PNGs per the session directory layout

	"github.com/turnengine/core/internal/apperrors"
)

// qualityStep is one point in the degradation ladder the Replay Assembler
// walks: shrink dimensions and/or palette depth until the encoded GIF
// fits the size budget.
type qualityStep struct {
	scale       float64
	paletteSize int
}

// qualityLadder is tried in order, largest/highest-fidelity first. All
// frames are always preserved; only dimensions and palette depth shrink.
var qualityLadder = []qualityStep{
	{scale: 1.0, paletteSize: 256},
	{scale: 0.75, paletteSize: 256},
	{scale: 0.75, paletteSize: 128},
	{scale: 0.5, paletteSize: 128},
	{scale: 0.5, paletteSize: 64},
	{scale: 0.35, paletteSize: 64},
	{scale: 0.35, paletteSize: 32},
	{scale: 0.25, paletteSize: 16},
}

// FrameDelayCentiseconds is the per-frame GIF delay used for replay
// artifacts: 60 centiseconds (0.6s) per frame, a pace intended for
// skimming a full run rather than real-time playback.
const FrameDelayCentiseconds = 60

// ReplayAssembler implements Replay by encoding the given frame files into
// a single animated GIF, using golang.org/x/image/draw for resizing.
type ReplayAssembler struct{}

// NewReplayAssembler returns the stdlib/x-image-backed Replay Assembler.
func NewReplayAssembler() *ReplayAssembler { return &ReplayAssembler{} }

// Assemble loads every frame path (in order, never skipping any), and
// encodes them as an animated GIF, walking qualityLadder until the result
// fits sizeBudgetBytes. Returns apperrors.InvalidState if even the lowest
// quality step still exceeds the budget.
func (r *ReplayAssembler) Assemble(frames []string, sizeBudgetBytes int) ([]byte, error) {
	if len(frames) < 2 {
		return nil, apperrors.InvalidState("replay requires at least 2 frames, got %d", len(frames))
	}

	decoded := make([]image.Image, 0, len(frames))
	for _, path := range frames {
		img, err := decodeFrame(path)
		if err != nil {
			return nil, apperrors.PersistentDiskFailure(err, "decode frame %s", path)
		}
		decoded = append(decoded, img)
	}

	var lastSize int
	for _, step := range qualityLadder {
		buf, err := encodeGIF(decoded, step)
		if err != nil {
			return nil, fmt.Errorf("generators: encode replay gif: %w", err)
		}
		lastSize = buf.Len()
		if lastSize <= sizeBudgetBytes {
			return buf.Bytes(), nil
		}
	}

	return nil, apperrors.InvalidState(
		"even minimum-quality replay (%d bytes) exceeds the %d byte budget", lastSize, sizeBudgetBytes)
}

func decodeFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func encodeGIF(frames []image.Image, step qualityStep) (*bytes.Buffer, error) {
	pal := reducedPalette(step.paletteSize)

	anim := &gif.GIF{}
	for _, img := range frames {
		resized := resize(img, step.scale)
		paletted := image.NewPaletted(resized.Bounds(), pal)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, FrameDelayCentiseconds)
		anim.Disposal = append(anim.Disposal, gif.DisposalNone)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, err
	}
	return &buf, nil
}

// reducedPalette returns the first n colors of the standard web-safe
// palette, a crude but deterministic way to shrink color depth per the
// spec's "color palette may be reduced" allowance.
func reducedPalette(n int) color.Palette {
	if n >= len(palette.WebSafe) {
		return palette.WebSafe
	}
	return palette.WebSafe[:n]
}

func resize(img image.Image, scale float64) image.Image {
	if scale >= 1.0 {
		return img
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
