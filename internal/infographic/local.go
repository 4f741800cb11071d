package infographic

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

const (
	CanvasWidth  = 1600
	CanvasHeight = 900

	maxSectors  = 8
	maxSegments = 6
	maxPoints   = 10
)

var (
	background = color.RGBA{0x0f, 0x17, 0x2a, 0xff}
	gridColor  = color.RGBA{0x1e, 0x29, 0x3b, 0xff}
	frameColor = color.RGBA{0x38, 0xbd, 0xf8, 0xff}
	linkColor  = color.RGBA{0x47, 0x55, 0x69, 0xff}

	palette = []color.RGBA{
		{0x38, 0xbd, 0xf8, 0xff},
		{0x81, 0x8c, 0xf8, 0xff},
		{0x34, 0xd3, 0x99, 0xff},
		{0xfb, 0xbf, 0x24, 0xff},
		{0xf4, 0x72, 0xb6, 0xff},
		{0xa7, 0x8b, 0xfa, 0xff},
		{0x2d, 0xd4, 0xbf, 0xff},
		{0xfb, 0x92, 0x3c, 0xff},
	}
)

type Point struct{ X, Y float64 }

type Rect struct {
	Min, Max Point
	Color    color.RGBA
}

type Segment struct {
	From, To Point
	Width    float64
	Color    color.RGBA
}

// Sector is an annular wedge around Center between two angles in radians.
type Sector struct {
	Center       Point
	Inner, Outer float64
	Start, End   float64
	Color        color.RGBA
}

type Marker struct {
	Center Point
	Radius float64
	Color  color.RGBA
}

// Layout is the full geometry of a fallback infographic. It is a pure
// function of the keyword list.
type Layout struct {
	Width, Height int
	Grid          []Segment
	Brackets      []Rect
	TopBar        []Rect
	Sectors       []Sector
	Links         []Segment
	Markers       []Marker
}

// ComputeLayout places every element for keywords. With no keywords a
// single placeholder element is drawn in each group.
func ComputeLayout(keywords []string) Layout {
	n := len(keywords)
	l := Layout{Width: CanvasWidth, Height: CanvasHeight}

	for x := 80.0; x < CanvasWidth; x += 80 {
		l.Grid = append(l.Grid, Segment{From: Point{x, 0}, To: Point{x, CanvasHeight}, Width: 1, Color: gridColor})
	}
	for y := 60.0; y < CanvasHeight; y += 60 {
		l.Grid = append(l.Grid, Segment{From: Point{0, y}, To: Point{CanvasWidth, y}, Width: 1, Color: gridColor})
	}

	l.Brackets = cornerBrackets(30, 70, 5)

	segments := clamp(n, maxSegments)
	const barLeft, barRight, barTop, barBottom, gap = 200.0, 1400.0, 50.0, 74.0, 12.0
	segW := (barRight - barLeft - gap*float64(segments-1)) / float64(segments)
	for i := 0; i < segments; i++ {
		x := barLeft + float64(i)*(segW+gap)
		l.TopBar = append(l.TopBar, Rect{Min: Point{x, barTop}, Max: Point{x + segW, barBottom}, Color: palette[i%len(palette)]})
	}

	sectors := clamp(n, maxSectors)
	center := Point{CanvasWidth / 2, CanvasHeight / 2}
	step := 2 * math.Pi / float64(sectors)
	const sectorGap = 0.04
	for i := 0; i < sectors; i++ {
		outer := 200.0
		if i < n {
			outer = 190 + 8*float64(min(utf8.RuneCountInString(keywords[i]), 10))
		}
		start := -math.Pi/2 + float64(i)*step
		end := start + step
		if sectors > 1 {
			start += sectorGap / 2
			end -= sectorGap / 2
		}
		l.Sectors = append(l.Sectors, Sector{Center: center, Inner: 90, Outer: outer, Start: start, End: end, Color: palette[i%len(palette)]})
	}

	points := clamp(n, maxPoints)
	const left, right = 240.0, 1360.0
	for i := 0; i < points; i++ {
		x := CanvasWidth / 2.0
		if points > 1 {
			x = left + float64(i)*(right-left)/float64(points-1)
		}
		y := 790.0 + float64(i%2)*30
		l.Markers = append(l.Markers, Marker{Center: Point{x, y}, Radius: 10, Color: palette[i%len(palette)]})
		if i > 0 {
			prev := l.Markers[i-1].Center
			l.Links = append(l.Links, Segment{From: prev, To: Point{x, y}, Width: 3, Color: linkColor})
		}
	}
	return l
}

func clamp(n, limit int) int {
	if n < 1 {
		return 1
	}
	return min(n, limit)
}

func cornerBrackets(margin, length, thick float64) []Rect {
	w, h := float64(CanvasWidth), float64(CanvasHeight)
	var out []Rect
	for _, c := range []struct{ x, y, dx, dy float64 }{
		{margin, margin, 1, 1},
		{w - margin, margin, -1, 1},
		{margin, h - margin, 1, -1},
		{w - margin, h - margin, -1, -1},
	} {
		out = append(out,
			rectFrom(c.x, c.y, c.x+c.dx*length, c.y+c.dy*thick),
			rectFrom(c.x, c.y, c.x+c.dx*thick, c.y+c.dy*length),
		)
	}
	return out
}

func rectFrom(x0, y0, x1, y1 float64) Rect {
	return Rect{
		Min:   Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max:   Point{math.Max(x0, x1), math.Max(y0, y1)},
		Color: frameColor,
	}
}

// Render rasterizes l into an RGBA image.
func Render(l Layout) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	z := vector.NewRasterizer(l.Width, l.Height)
	fill := func(pts []Point, c color.RGBA) {
		if len(pts) < 3 {
			return
		}
		z.Reset(l.Width, l.Height)
		z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
		for _, p := range pts[1:] {
			z.LineTo(float32(p.X), float32(p.Y))
		}
		z.ClosePath()
		z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
	}

	for _, s := range l.Grid {
		fill(segmentPolygon(s), s.Color)
	}
	for _, r := range l.Brackets {
		fill(rectPolygon(r), r.Color)
	}
	for _, r := range l.TopBar {
		fill(rectPolygon(r), r.Color)
	}
	for _, s := range l.Sectors {
		fill(sectorPolygon(s), s.Color)
	}
	for _, s := range l.Links {
		fill(segmentPolygon(s), s.Color)
	}
	for _, m := range l.Markers {
		fill(circlePolygon(m.Center, m.Radius), m.Color)
	}
	return img
}

func rectPolygon(r Rect) []Point {
	return []Point{r.Min, {r.Max.X, r.Min.Y}, r.Max, {r.Min.X, r.Max.Y}}
}

func segmentPolygon(s Segment) []Point {
	dx, dy := s.To.X-s.From.X, s.To.Y-s.From.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil
	}
	nx, ny := -dy/length*s.Width/2, dx/length*s.Width/2
	return []Point{
		{s.From.X + nx, s.From.Y + ny},
		{s.To.X + nx, s.To.Y + ny},
		{s.To.X - nx, s.To.Y - ny},
		{s.From.X - nx, s.From.Y - ny},
	}
}

func circlePolygon(c Point, r float64) []Point {
	const steps = 32
	pts := make([]Point, steps)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / steps
		pts[i] = Point{c.X + r*math.Cos(a), c.Y + r*math.Sin(a)}
	}
	return pts
}

func sectorPolygon(s Sector) []Point {
	steps := max(int((s.End-s.Start)/(math.Pi/64)), 2)
	pts := make([]Point, 0, 2*(steps+1))
	for i := 0; i <= steps; i++ {
		a := s.Start + (s.End-s.Start)*float64(i)/float64(steps)
		pts = append(pts, Point{s.Center.X + s.Outer*math.Cos(a), s.Center.Y + s.Outer*math.Sin(a)})
	}
	for i := steps; i >= 0; i-- {
		a := s.Start + (s.End-s.Start)*float64(i)/float64(steps)
		pts = append(pts, Point{s.Center.X + s.Inner*math.Cos(a), s.Center.Y + s.Inner*math.Sin(a)})
	}
	return pts
}

// Local draws the keyword-driven fallback. It never calls out and never
// draws text.
type Local struct{}

func (Local) Name() string { return "local" }

func (Local) Generate(_ context.Context, req Request) ([]byte, error) {
	if req.Summary == "" && len(req.Keywords) == 0 {
		return nil, errors.New("nothing to draw")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Render(ComputeLayout(req.Keywords))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
