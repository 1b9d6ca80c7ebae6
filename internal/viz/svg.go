package viz

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/san-kum/brainjam/internal/analysis"
)

var seriesColors = []string{"#00ffff", "#ff00ff", "#ffcc00", "#00ff88", "#ff4444", "#88aaff"}

func svgHeader(w io.Writer, width, height int) {
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

// PortraitSVG draws p as one path inside its padded bounds.
func PortraitSVG(out io.Writer, p *analysis.Portrait, width, height int) error {
	if len(p.Points) < 2 {
		return fmt.Errorf("portrait needs at least two points, has %d", len(p.Points))
	}
	minX, maxX, minY, maxY := p.Bounds()
	w := bufio.NewWriter(out)
	svgHeader(w, width, height)
	fmt.Fprintf(w, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, seriesColors[0])
	for i, pt := range p.Points {
		x := (pt.X - minX) / (maxX - minX) * float64(width)
		y := float64(height) - (pt.Y-minY)/(maxY-minY)*float64(height)
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(w, "%s%.1f,%.1f ", cmd, x, y)
	}
	fmt.Fprintf(w, "\"/>\n<text x=\"8\" y=\"16\" fill=\"#888899\" font-size=\"12\">%s vs %s</text>\n</svg>\n",
		p.YLabel, p.XLabel)
	return w.Flush()
}

// SeriesSVG draws each series across the full width on a shared vertical
// scale, with a legend in the top left corner.
func SeriesSVG(out io.Writer, names []string, series [][]float64, width, height int) error {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 0) {
		return fmt.Errorf("no data to draw")
	}
	if hi == lo {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.1
	lo, hi = lo-pad, hi+pad

	w := bufio.NewWriter(out)
	svgHeader(w, width, height)
	for i, s := range series {
		if len(s) < 2 {
			continue
		}
		color := seriesColors[i%len(seriesColors)]
		fmt.Fprintf(w, `<polyline fill="none" stroke="%s" stroke-width="1.5" points="`, color)
		for j, v := range s {
			x := float64(j) / float64(len(s)-1) * float64(width)
			y := float64(height) - (v-lo)/(hi-lo)*float64(height)
			fmt.Fprintf(w, "%.1f,%.1f ", x, y)
		}
		w.WriteString("\"/>\n")
		if i < len(names) {
			fmt.Fprintf(w, "<text x=\"8\" y=\"%d\" fill=\"%s\" font-size=\"12\">%s</text>\n", 16+14*i, color, names[i])
		}
	}
	w.WriteString("</svg>\n")
	return w.Flush()
}
