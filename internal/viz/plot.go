package viz

import (
	"fmt"
	"math"
	"slices"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/brainjam/internal/analysis"
)

// Plot renders a recorded series. Series shorter than two points render as
// an empty string.
func Plot(series []float64, caption string, width, height int) string {
	if len(series) < 2 {
		return ""
	}
	return asciigraph.Plot(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption))
}

// Spectrum plots the averaged magnitude spectrum of r in dB, max-pooled to
// width columns so narrow peaks survive.
func Spectrum(r analysis.Report, width, height int) string {
	if len(r.Spectrum) == 0 || width < 2 {
		return ""
	}
	cols := Pool(r.Spectrum, width)
	for i, v := range cols {
		cols[i] = 20 * math.Log10(v+1e-9)
	}
	floor := slices.Max(cols) - 90
	for i := range cols {
		cols[i] = math.Max(cols[i], floor)
	}
	nyquist := float64(r.SampleRate) / 2
	return asciigraph.Plot(cols,
		asciigraph.Height(height),
		asciigraph.Precision(0),
		asciigraph.Caption(fmt.Sprintf("magnitude dB, 0 .. %.0f Hz", nyquist)))
}

// Pool reduces vs to n columns keeping the maximum of each group.
func Pool(vs []float64, n int) []float64 {
	if n >= len(vs) {
		return append([]float64(nil), vs...)
	}
	out := make([]float64, n)
	for i := range out {
		lo, hi := i*len(vs)/n, (i+1)*len(vs)/n
		out[i] = slices.Max(vs[lo:hi])
	}
	return out
}
