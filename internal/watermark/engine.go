package watermark

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// Engine performs the actual watermark compositing. Each pool worker owns a
// private instance; the engine itself keeps no mutable state between calls,
// so a single Apply never observes another task's data.
type Engine struct{}

// NewEngine creates a watermark engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Warmup exercises the codec path once so that the first real task does not
// pay any lazy-initialization cost. Used by the pool's readiness handshake.
func (e *Engine) Warmup() error {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("warmup encode: %w", err)
	}
	if _, _, err := image.Decode(bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("warmup decode: %w", err)
	}
	return nil
}

// Apply decodes data, composites the configured mark over it, and returns the
// result re-encoded as PNG. The base image geometry is preserved. The
// returned buffer is freshly allocated and owned by the caller.
func (e *Engine) Apply(data []byte, cfg Config) ([]byte, error) {
	if _, err := SniffFormat(data); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	mark, err := prepareMark(cfg)
	if err != nil {
		return nil, err
	}

	base := toRGBA(src)
	composite(base, mark, cfg)

	var buf bytes.Buffer
	if err := png.Encode(&buf, base); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// prepareMark decodes the mark bitmap, applies the optional resize (keeping
// aspect ratio when only a width is given), and rotates it about its center.
func prepareMark(cfg Config) (*image.RGBA, error) {
	if len(cfg.Mark) == 0 {
		return nil, errors.New("mark bitmap is required")
	}

	img, _, err := image.Decode(bytes.NewReader(cfg.Mark))
	if err != nil {
		return nil, fmt.Errorf("decode mark image: %w", err)
	}

	mark := toRGBA(img)

	if cfg.Width > 0 {
		mw := mark.Bounds().Dx()
		if mw == 0 {
			return nil, errors.New("mark image has zero width")
		}
		w := cfg.Width
		h := cfg.Height
		if h == 0 {
			h = mark.Bounds().Dy() * w / mw
			if h == 0 {
				h = 1
			}
		}
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), mark, mark.Bounds(), xdraw.Over, nil)
		mark = scaled
	}

	if cfg.Rotate != 0 {
		mark = rotate(mark, cfg.Rotate)
	}

	return mark, nil
}

// composite draws the mark onto base, either once at the configured offset or
// tiled across the whole image with mark-size-plus-offset spacing.
func composite(base, mark *image.RGBA, cfg Config) {
	bw, bh := base.Bounds().Dx(), base.Bounds().Dy()
	mw, mh := mark.Bounds().Dx(), mark.Bounds().Dy()

	if cfg.Tile {
		spacingX := mw + absInt(cfg.OffsetX)
		spacingY := mh + absInt(cfg.OffsetY)
		startX := max(cfg.OffsetX, 0)
		startY := max(cfg.OffsetY, 0)

		for y := startY; y < bh; y += spacingY {
			for x := startX; x < bw; x += spacingX {
				overlay(base, mark, x, y, cfg.Opacity)
			}
		}
		return
	}

	// Single placement: negative offsets anchor to the far edge.
	x := cfg.OffsetX
	if x < 0 {
		x = max(bw+x, 0)
	}
	y := cfg.OffsetY
	if y < 0 {
		y = max(bh+y, 0)
	}
	overlay(base, mark, x, y, cfg.Opacity)
}

// overlay alpha-blends mark onto dst at (x, y), scaling the mark's own alpha
// by opacity. Pixels falling outside dst are skipped.
func overlay(dst, mark *image.RGBA, x, y int, opacity float64) {
	db := dst.Bounds()
	mb := mark.Bounds()

	for oy := 0; oy < mb.Dy(); oy++ {
		ty := y + oy
		if ty < 0 || ty >= db.Dy() {
			continue
		}
		for ox := 0; ox < mb.Dx(); ox++ {
			tx := x + ox
			if tx < 0 || tx >= db.Dx() {
				continue
			}

			mi := mark.PixOffset(mb.Min.X+ox, mb.Min.Y+oy)
			alpha := float64(mark.Pix[mi+3]) / 255 * opacity
			if alpha <= 0 {
				continue
			}
			inv := 1 - alpha

			di := dst.PixOffset(db.Min.X+tx, db.Min.Y+ty)
			for c := 0; c < 4; c++ {
				dst.Pix[di+c] = uint8(float64(dst.Pix[di+c])*inv + float64(mark.Pix[mi+c])*alpha)
			}
		}
	}
}

// rotate resamples src rotated by deg degrees about its center into an
// expanded canvas, using nearest-neighbor sampling. Uncovered corners stay
// fully transparent.
func rotate(src *image.RGBA, deg float64) *image.RGBA {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	cx, cy := float64(sw)/2, float64(sh)/2

	nw := int(math.Ceil(float64(sw)*math.Abs(cos) + float64(sh)*math.Abs(sin)))
	nh := int(math.Ceil(float64(sw)*math.Abs(sin) + float64(sh)*math.Abs(cos)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	ncx, ncy := float64(nw)/2, float64(nh)/2

	for y := 0; y < nh; y++ {
		for x := 0; x < nw; x++ {
			relX := float64(x) - ncx
			relY := float64(y) - ncy

			// Inverse-rotate into source coordinates.
			sx := int(math.Round(relX*cos + relY*sin + cx))
			sy := int(math.Round(-relX*sin + relY*cos + cy))

			if sx < 0 || sx >= sw || sy < 0 || sy >= sh {
				continue
			}
			di := dst.PixOffset(x, y)
			si := src.PixOffset(src.Bounds().Min.X+sx, src.Bounds().Min.Y+sy)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

// toRGBA copies img into a freshly allocated RGBA image anchored at (0, 0).
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
