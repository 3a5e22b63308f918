package fimfic2cover

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Placeholder cover renderer: wrapped, centered title/author text on a
// fixed-size double-bordered canvas. The geometry constants are the contract;
// fimfic2epub expects a 1080x1440 JPEG.

// ---- Canvas constants ----

const (
	CoverWidth  = 1080
	CoverHeight = 1440

	sidePadding   = 108
	titleAnchorY  = 150
	authorAnchorY = 1200
	lineSpacing   = 1.2
	borderWidth   = 2
)

// Border outlines are drawn at both of these insets.
var borderInsets = [2]int{12, 20}

var (
	coverBackground = color.RGBA{0x00, 0x00, 0x00, 0xFF}
	coverForeground = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
)

// ---- Font loading ----

type FontAndFace struct {
	Font *truetype.Font
	Face font.Face
	size float64
}

// CoverFonts holds the two faces a cover is drawn with.
type CoverFonts struct {
	Title  *FontAndFace
	Author *FontAndFace
}

// FontConfig selects the TTF files and sizes used for the cover text. Empty
// paths fall back to the bundled Go fonts (bold for the title, regular for
// the author).
type FontConfig struct {
	TitlePath  string
	TitleSize  float64
	AuthorPath string
	AuthorSize float64
}

func loadFontAndFace(ttfBytes []byte, size float64) (*FontAndFace, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", size)
	}
	ft, err := truetype.Parse(ttfBytes)
	if err != nil {
		return nil, err
	}
	face := truetype.NewFace(ft, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	return &FontAndFace{
		Font: ft,
		Face: face,
		size: size,
	}, nil
}

func loadFont(path string, fallback []byte, size float64) (*FontAndFace, error) {
	ttf := fallback
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		ttf = b
	}
	return loadFontAndFace(ttf, size)
}

// LoadCoverFonts loads the title and author faces. A bad path, an unparsable
// TTF, or a non-positive size is fatal to the run.
func LoadCoverFonts(cfg FontConfig) (CoverFonts, error) {
	var f CoverFonts
	var err error

	f.Title, err = loadFont(cfg.TitlePath, gobold.TTF, cfg.TitleSize)
	if err != nil {
		return f, fmt.Errorf("load title font: %w", err)
	}
	f.Author, err = loadFont(cfg.AuthorPath, goregular.TTF, cfg.AuthorSize)
	if err != nil {
		return f, fmt.Errorf("load author font: %w", err)
	}
	return f, nil
}

// ---- Measurement & wrapping ----

func measureWidth(fnt *FontAndFace, s string) int {
	if fnt == nil || s == "" {
		return 0
	}
	// freetype.Context lacks a direct width measurement; approximate using font.Drawer
	var d font.Drawer
	d.Face = fnt.Face
	d.Src = image.NewUniform(color.Black)
	d.Dst = nil
	return d.MeasureString(s).Round()
}

func measureHeight(fnt *FontAndFace, s string) int {
	if fnt == nil || s == "" {
		return 0
	}
	bounds, _ := font.BoundString(fnt.Face, s)
	return (bounds.Max.Y - bounds.Min.Y).Ceil()
}

// wrapText greedily accumulates words into lines that fit maxWidth. A single
// word wider than maxWidth still gets its own line; words are never split.
//
// The returned line height is 1.2x the measured height of the last candidate
// line tested while wrapping, applied uniformly to every line of the block.
func wrapText(fnt *FontAndFace, text string, maxWidth int) (lines []string, lineHeight int) {
	var line []string
	for _, word := range strings.Fields(text) {
		candidate := strings.Join(line, " ")
		if candidate != "" {
			candidate += " "
		}
		candidate += word

		lineHeight = int(float64(measureHeight(fnt, candidate)) * lineSpacing)
		if measureWidth(fnt, candidate) <= maxWidth {
			line = append(line, word)
		} else {
			if len(line) > 0 {
				lines = append(lines, strings.Join(line, " "))
			}
			line = []string{word}
		}
	}
	if len(line) > 0 {
		lines = append(lines, strings.Join(line, " "))
	}
	return lines, lineHeight
}

// ---- Rendering ----

// CoverSpec is everything needed to draw one placeholder cover.
type CoverSpec struct {
	Title  string
	Author string
	Fonts  CoverFonts
}

func outlineRect(img *image.RGBA, r image.Rectangle, width int, col color.Color) {
	src := image.NewUniform(col)
	// top, bottom, left, right edges
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}

// RenderCover draws the bordered canvas with the wrapped, centered title and
// author blocks. Empty text produces no lines but still a bordered canvas.
func RenderCover(spec CoverSpec) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, CoverWidth, CoverHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(coverBackground), image.Point{}, draw.Src)

	for _, inset := range borderInsets {
		outlineRect(img, image.Rect(inset, inset, CoverWidth-inset, CoverHeight-inset), borderWidth, coverForeground)
	}

	dc := freetype.NewContext()
	dc.SetDPI(72)
	dc.SetClip(img.Bounds())
	dc.SetDst(img)
	dc.SetSrc(image.NewUniform(coverForeground))

	maxWidth := CoverWidth - sidePadding*2
	blocks := []struct {
		text    string
		fnt     *FontAndFace
		anchorY int
	}{
		{spec.Title, spec.Fonts.Title, titleAnchorY},
		{spec.Author, spec.Fonts.Author, authorAnchorY},
	}

	for _, b := range blocks {
		if b.fnt == nil {
			return nil, fmt.Errorf("cover font not loaded")
		}
		lines, lineHeight := wrapText(b.fnt, b.text, maxWidth)

		dc.SetFont(b.fnt.Font)
		dc.SetFontSize(b.fnt.size)
		ascent := b.fnt.Face.Metrics().Ascent.Ceil()

		y := b.anchorY
		for _, ln := range lines {
			x := sidePadding + (maxWidth-measureWidth(b.fnt, ln))/2
			if _, err := dc.DrawString(ln, freetype.Pt(x, y+ascent)); err != nil {
				return nil, fmt.Errorf("draw cover text: %w", err)
			}
			y += lineHeight
		}
	}
	return img, nil
}

// WriteCover encodes the cover as a JPEG at path.
func WriteCover(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 92}); err != nil {
		return fmt.Errorf("encode cover: %w", err)
	}
	return f.Close()
}

// CreatePlaceholderCover renders and writes the placeholder cover for a
// story in one step.
func CreatePlaceholderCover(title, author, filename string, fonts CoverFonts) error {
	img, err := RenderCover(CoverSpec{Title: title, Author: author, Fonts: fonts})
	if err != nil {
		return err
	}
	return WriteCover(filename, img)
}
