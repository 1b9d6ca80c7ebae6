package analysis

import (
	"math"
	"strings"
)

// Point is one sample of a portrait.
type Point struct{ X, Y float64 }

// Portrait pairs two recorded series, typically two latent components or
// a control component against the parameter it drives.
type Portrait struct {
	XLabel, YLabel string
	Points         []Point
}

// NewPortrait zips xs and ys, truncating to the shorter one. Non-finite
// pairs are skipped.
func NewPortrait(xLabel string, xs []float64, yLabel string, ys []float64) *Portrait {
	n := min(len(xs), len(ys))
	p := &Portrait{XLabel: xLabel, YLabel: yLabel, Points: make([]Point, 0, n)}
	for i := 0; i < n; i++ {
		if !finite(xs[i]) || !finite(ys[i]) {
			continue
		}
		p.Points = append(p.Points, Point{xs[i], ys[i]})
	}
	return p
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Bounds returns the extent of the points padded by 10% on each side.
func (p *Portrait) Bounds() (minX, maxX, minY, maxY float64) {
	if len(p.Points) == 0 {
		return 0, 1, 0, 1
	}
	minX, maxX = p.Points[0].X, p.Points[0].X
	minY, maxY = p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points[1:] {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}
	rx, ry := maxX-minX, maxY-minY
	if rx == 0 {
		rx = 1
	}
	if ry == 0 {
		ry = 1
	}
	return minX - rx*0.1, maxX + rx*0.1, minY - ry*0.1, maxY + ry*0.1
}

// ASCII draws the portrait on a width x height grid. The most recent point
// is marked with 'o', earlier ones with '•'. Axes are drawn through zero
// when it is visible.
func (p *Portrait) ASCII(width, height int) string {
	if len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}
	minX, maxX, minY, maxY := p.Bounds()
	rx, ry := maxX-minX, maxY-minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}
	cell := func(x, y float64) (row, col int) {
		col = int((x - minX) / rx * float64(width-1))
		row = height - 1 - int((y-minY)/ry*float64(height-1))
		return row, col
	}

	if minX <= 0 && maxX >= 0 {
		_, col := cell(0, minY)
		for row := range canvas {
			canvas[row][col] = '│'
		}
	}
	if minY <= 0 && maxY >= 0 {
		row, _ := cell(minX, 0)
		for col := range canvas[row] {
			if canvas[row][col] == '│' {
				canvas[row][col] = '┼'
			} else {
				canvas[row][col] = '─'
			}
		}
	}
	for i, pt := range p.Points {
		row, col := cell(pt.X, pt.Y)
		if row < 0 || row >= height || col < 0 || col >= width {
			continue
		}
		if i == len(p.Points)-1 {
			canvas[row][col] = 'o'
		} else {
			canvas[row][col] = '•'
		}
	}

	var sb strings.Builder
	if p.YLabel != "" {
		sb.WriteString(p.YLabel + "\n")
	}
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteByte('\n')
	}
	if p.XLabel != "" {
		sb.WriteString(strings.Repeat(" ", max(0, width-len(p.XLabel))) + p.XLabel + "\n")
	}
	return sb.String()
}

// Crossings returns the fractional indices at which series rises through
// threshold, linearly interpolated between neighbouring samples.
func Crossings(series []float64, threshold float64) []float64 {
	var out []float64
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1], series[i]
		if prev < threshold && cur >= threshold {
			frac := (threshold - prev) / (cur - prev)
			if !finite(frac) {
				frac = 0.5
			}
			out = append(out, float64(i-1)+frac)
		}
	}
	return out
}
