package locator

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RasterRenderer draws an estimation result into a plain RGBA image with a
// text legend. It needs no vector backend and is what the PNG endpoint serves.
type RasterRenderer struct {
	Result  Result
	Size    int // square plot area in pixels
	Padding int
}

// NewRasterRenderer creates a raster renderer with default settings.
func NewRasterRenderer(result Result) *RasterRenderer {
	return &RasterRenderer{Result: result, Size: 800, Padding: 40}
}

// Render draws the diagram.
func (r *RasterRenderer) Render() *image.RGBA {
	frame := newPlotFrame(r.Result, float64(r.Size), float64(r.Padding))
	w := int(math.Ceil(frame.totalWidth()))
	h := int(math.Ceil(frame.totalHeight()))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, color.RGBA{255, 255, 255, 255})

	// image rows grow downward, latitude grows upward
	toPixel := func(p orb.Point) (int, int) {
		x, y := frame.project(p)
		return int(math.Round(x)), h - 1 - int(math.Round(y))
	}

	result := r.Result
	for _, obs := range result.Observations {
		x0, y0 := toPixel(obs.Origin.OrbPoint())
		x1, y1 := toPixel(frame.rayEnd(obs))
		drawLine(img, x0, y0, x1, y1, colorRay)
	}

	for _, p := range result.Intersections {
		pt := orb.Point{p.Point.X, p.Point.Y}
		if !frame.visible(pt) {
			continue
		}
		x, y := toPixel(pt)
		drawCircle(img, x, y, 3, intersectionColor(result, p.Pair))
	}

	contributing := make(map[int]bool)
	if result.Selection != nil {
		for _, idx := range result.Selection.Contributors {
			contributing[idx] = true
		}
	}
	for i, obs := range result.Observations {
		c := colorObserver
		if contributing[i] {
			c = colorContributor
		}
		x, y := toPixel(obs.Origin.OrbPoint())
		drawSquare(img, x, y, 9, c)
	}

	if result.Estimate != nil {
		x, y := toPixel(result.Estimate.LatLon().OrbPoint())
		drawCircle(img, x, y, 8, color.RGBA{0, 0, 0, 255})
		drawCircle(img, x, y, 6, colorEstimate)
	}

	r.drawLegend(img)
	return img
}

// WritePNG encodes the diagram as PNG.
func (r *RasterRenderer) WritePNG(w io.Writer) error {
	return png.Encode(w, r.Render())
}

// SavePNG writes the diagram to a PNG file.
func (r *RasterRenderer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := r.WritePNG(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return f.Close()
}

// legendLines describes the result in a few short lines.
func legendLines(result Result) []string {
	lines := []string{
		fmt.Sprintf("observers: %d  rejected: %d  intersections: %d",
			len(result.Observations), len(result.Rejected), len(result.Intersections)),
	}
	if e := result.Estimate; e != nil {
		lines = append(lines, fmt.Sprintf("estimate: %.5f, %.5f", e.Lat, e.Lon))
		if result.Selection != nil {
			lines = append(lines, fmt.Sprintf("cluster %d: %d points, score %.5f",
				result.Selection.Cluster.Label, len(result.Selection.Cluster.Points), result.Selection.Cluster.Score))
		}
	} else {
		lines = append(lines, fmt.Sprintf("no estimate (%s)", result.Outcome))
	}
	return lines
}

func (r *RasterRenderer) drawLegend(img *image.RGBA) {
	y := 15
	for _, line := range legendLines(r.Result) {
		drawText(img, 10, y, line, color.RGBA{0, 0, 0, 255})
		y += 15
	}
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawLine draws a line with Bresenham's algorithm, clipped to the image.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	// clamp far endpoints so the loop stays bounded
	limit := 4 * (img.Bounds().Dx() + img.Bounds().Dy())
	x1, y1 = clampEndpoint(x0, y0, x1, y1, limit)

	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		setClipped(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// clampEndpoint shortens the segment so neither delta exceeds limit.
func clampEndpoint(x0, y0, x1, y1, limit int) (int, int) {
	dx, dy := float64(x1-x0), float64(y1-y0)
	longest := math.Max(math.Abs(dx), math.Abs(dy))
	if longest <= float64(limit) {
		return x1, y1
	}
	k := float64(limit) / longest
	return x0 + int(dx*k), y0 + int(dy*k)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				setClipped(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawSquare draws a filled square
func drawSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			setClipped(img, cx+dx, cy+dy, c)
		}
	}
}

// drawText renders text onto an image at the specified baseline position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
