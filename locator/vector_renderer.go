package locator

import (
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// Plot colors shared by the vector and raster renderers.
var (
	colorObserver    = color.RGBA{30, 90, 200, 255}
	colorContributor = color.RGBA{0, 40, 140, 255}
	colorRay         = color.RGBA{120, 150, 210, 255}
	colorNoise       = color.RGBA{160, 160, 160, 255}
	colorCluster     = color.RGBA{240, 150, 40, 255}
	colorWinner      = color.RGBA{220, 40, 30, 255}
	colorEstimate    = color.RGBA{200, 0, 0, 255}
	colorHull        = color.RGBA{50, 9, 7, 50} // premultiplied
)

// minPlotSpan is the smallest frame edge, in degrees.
const minPlotSpan = 0.01

// plotFrame maps geographic coordinates onto a drawing area. Y grows north.
type plotFrame struct {
	bound   orb.Bound
	width   float64
	height  float64
	padding float64
	scale   float64 // drawing units per degree
}

// newPlotFrame fits the observers, clustered intersections and estimate of a
// result into a drawing area of the given width plus padding on every side.
// Noise intersections do not widen the frame.
func newPlotFrame(result Result, width, padding float64) plotFrame {
	var pts []orb.Point
	for _, obs := range result.Observations {
		pts = append(pts, obs.Origin.OrbPoint())
	}
	for _, c := range result.Clusters {
		for _, p := range c.Points {
			pts = append(pts, orb.Point{p.Point.X, p.Point.Y})
		}
	}
	if result.Estimate != nil {
		pts = append(pts, result.Estimate.LatLon().OrbPoint())
	}

	bound := orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}
	if len(pts) > 0 {
		bound = orb.MultiPoint(pts).Bound()
	}

	// keep degenerate frames drawable
	span := math.Max(math.Max(bound.Right()-bound.Left(), bound.Top()-bound.Bottom()), minPlotSpan)
	center := bound.Center()
	half := span / 2
	bound = orb.Bound{
		Min: orb.Point{center[0] - half, center[1] - half},
		Max: orb.Point{center[0] + half, center[1] + half},
	}

	return plotFrame{
		bound:   bound,
		width:   width,
		height:  width,
		padding: padding,
		scale:   width / span,
	}
}

// totalWidth and totalHeight include padding.
func (f plotFrame) totalWidth() float64  { return f.width + 2*f.padding }
func (f plotFrame) totalHeight() float64 { return f.height + 2*f.padding }

// project converts an orb.Point ([lon, lat]) to drawing coordinates.
func (f plotFrame) project(p orb.Point) (float64, float64) {
	x := (p[0]-f.bound.Left())*f.scale + f.padding
	y := (p[1]-f.bound.Bottom())*f.scale + f.padding
	return x, y
}

// visible reports whether p falls inside the frame, padding included.
func (f plotFrame) visible(p orb.Point) bool {
	return f.bound.Pad(f.padding / f.scale).Contains(p)
}

// rayEnd returns a point on the observation's ray far enough to leave the
// frame.
func (f plotFrame) rayEnd(obs Observation) orb.Point {
	o := obs.Origin.Planar()
	t := obs.Through.Planar()
	dx, dy := t.X-o.X, t.Y-o.Y
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return obs.Origin.OrbPoint()
	}
	reach := 2 * math.Hypot(f.bound.Right()-f.bound.Left(), f.bound.Top()-f.bound.Bottom())
	return orb.Point{o.X + dx/norm*reach, o.Y + dy/norm*reach}
}

// intersectionColor picks a color by cluster membership.
func intersectionColor(result Result, pair [2]int) color.RGBA {
	for _, c := range result.Clusters {
		for _, p := range c.Points {
			if p.Pair != pair {
				continue
			}
			if result.Selection != nil && c.Label == result.Selection.Cluster.Label {
				return colorWinner
			}
			return colorCluster
		}
	}
	return colorNoise
}

// VectorRenderer draws an estimation result as a vector diagram.
type VectorRenderer struct {
	Result     Result
	Width      float64           // drawing width in millimeters
	Padding    float64           // millimeters
	Resolution canvas.Resolution // PNG output only
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer(result Result) *VectorRenderer {
	return &VectorRenderer{
		Result:     result,
		Width:      200.0,
		Padding:    10.0,
		Resolution: canvas.DPI(150),
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the diagram as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	frame := newPlotFrame(r.Result, r.Width, r.Padding)
	svgRenderer := svg.New(w, frame.totalWidth(), frame.totalHeight(), nil)
	r.renderToCanvas(svgRenderer, frame)
	return svgRenderer.Close()
}

// RenderToPNG writes the diagram as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	frame := newPlotFrame(r.Result, r.Width, r.Padding)
	rast := rasterizer.New(frame.totalWidth(), frame.totalHeight(), r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, frame)
	return png.Encode(w, rast)
}

func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, frame plotFrame) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	bgStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	renderer.RenderPath(canvas.Rectangle(frame.totalWidth(), frame.totalHeight()), bgStyle, canvas.Identity)

	result := r.Result
	contributing := make(map[int]bool)
	if result.Selection != nil {
		for _, idx := range result.Selection.Contributors {
			contributing[idx] = true
		}
	}

	// Contributor hull
	if result.Selection != nil && len(result.Selection.Contributors) >= 3 {
		pts := make([]orb.Point, 0, len(result.Selection.Contributors))
		for _, idx := range result.Selection.Contributors {
			pts = append(pts, result.Observations[idx].Origin.OrbPoint())
		}
		if hull := ConvexHull(pts); len(hull) >= 3 {
			hullStyle := canvas.DefaultStyle
			hullStyle.Fill = canvas.Paint{Color: colorHull}
			hullStyle.Stroke = canvas.Paint{Color: colorWinner}
			hullStyle.StrokeWidth = 0.3
			hullStyle.Dashes = []float64{1.5, 1.0}

			cp := &canvas.Path{}
			for i, p := range hull {
				x, y := frame.project(p)
				if i == 0 {
					cp.MoveTo(x, y)
				} else {
					cp.LineTo(x, y)
				}
			}
			cp.Close()
			renderer.RenderPath(cp, hullStyle, canvas.Identity)
		}
	}

	// Rays
	rayStyle := canvas.DefaultStyle
	rayStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	rayStyle.Stroke = canvas.Paint{Color: colorRay}
	rayStyle.StrokeWidth = 0.3
	for _, obs := range result.Observations {
		x0, y0 := frame.project(obs.Origin.OrbPoint())
		x1, y1 := frame.project(frame.rayEnd(obs))
		cp := &canvas.Path{}
		cp.MoveTo(x0, y0)
		cp.LineTo(x1, y1)
		renderer.RenderPath(cp, rayStyle, canvas.Identity)
	}

	// Intersections
	for _, p := range result.Intersections {
		pt := orb.Point{p.Point.X, p.Point.Y}
		if !frame.visible(pt) {
			continue
		}
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: intersectionColor(result, p.Pair)}
		style.Stroke = canvas.Paint{Color: canvas.Transparent}
		x, y := frame.project(pt)
		renderer.RenderPath(canvas.Circle(0.8).Translate(x, y), style, canvas.Identity)
	}

	// Observers
	for i, obs := range result.Observations {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: colorObserver}
		style.Stroke = canvas.Paint{Color: canvas.Black}
		style.StrokeWidth = 0.2
		if contributing[i] {
			style.Fill = canvas.Paint{Color: colorContributor}
		}
		x, y := frame.project(obs.Origin.OrbPoint())
		renderer.RenderPath(canvas.Circle(1.5).Translate(x, y), style, canvas.Identity)
	}

	// Estimate
	if result.Estimate != nil {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: colorEstimate}
		style.Stroke = canvas.Paint{Color: canvas.Black}
		style.StrokeWidth = 0.4
		x, y := frame.project(result.Estimate.LatLon().OrbPoint())
		renderer.RenderPath(canvas.Circle(2.5).Translate(x, y), style, canvas.Identity)
	}
}
