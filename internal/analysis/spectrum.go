package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FrameSize is the FFT length used by Analyze.
const FrameSize = 2048

// Band edges in Hz for the low/mid/high split.
const (
	LowMidEdge  = 250.0
	MidHighEdge = 2000.0
)

// Report describes the spectral content of a buffer.
type Report struct {
	SampleRate int       `json:"sample_rate"`
	Frames     int       `json:"frames"`
	Spectrum   []float64 `json:"-"`
	Centroid   float64   `json:"centroid"`
	Rolloff    float64   `json:"rolloff"`
	RMS        float64   `json:"rms"`
	Peak       float64   `json:"peak"`
	Low        float64   `json:"low"`
	Mid        float64   `json:"mid"`
	High       float64   `json:"high"`
}

// Analyze averages Hann-windowed magnitude spectra over consecutive
// half-overlapping frames.
func Analyze(samples []float32, sampleRate int) Report {
	r := Report{SampleRate: sampleRate, RMS: RMS(samples)}
	for _, s := range samples {
		r.Peak = math.Max(r.Peak, math.Abs(float64(s)))
	}
	if len(samples) == 0 || sampleRate <= 0 {
		return r
	}

	// only whole frames are analyzed; a short buffer is windowed over its
	// own length and zero padded
	span := min(len(samples), FrameSize)
	window := hann(span)
	frame := make([]float64, FrameSize)
	r.Spectrum = make([]float64, FrameSize/2)

	for start := 0; start+span <= len(samples); start += FrameSize / 2 {
		clear(frame)
		for i := 0; i < span; i++ {
			frame[i] = float64(samples[start+i]) * window[i]
		}
		spec := fft.FFTReal(frame)
		for k := range r.Spectrum {
			r.Spectrum[k] += cmplx.Abs(spec[k])
		}
		r.Frames++
	}
	for k := range r.Spectrum {
		r.Spectrum[k] /= float64(r.Frames)
	}

	r.Centroid = Centroid(r.Spectrum, sampleRate)
	r.Rolloff = Rolloff(r.Spectrum, sampleRate, 0.85)
	r.Low, r.Mid, r.High = Bands(r.Spectrum, sampleRate)
	return r
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n < 2 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// binHz is the width of one bin of a half spectrum.
func binHz(spectrum []float64, sampleRate int) float64 {
	return float64(sampleRate) / float64(2*len(spectrum))
}

// Centroid is the magnitude-weighted mean frequency in Hz.
func Centroid(spectrum []float64, sampleRate int) float64 {
	hz := binHz(spectrum, sampleRate)
	var num, den float64
	for k, m := range spectrum {
		num += float64(k) * hz * m
		den += m
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Rolloff is the frequency below which frac of the magnitude lies.
func Rolloff(spectrum []float64, sampleRate int, frac float64) float64 {
	total := 0.0
	for _, m := range spectrum {
		total += m
	}
	if total == 0 {
		return 0
	}
	hz := binHz(spectrum, sampleRate)
	acc := 0.0
	for k, m := range spectrum {
		acc += m
		if acc >= frac*total {
			return float64(k) * hz
		}
	}
	return float64(len(spectrum)-1) * hz
}

// Bands returns the share of magnitude below LowMidEdge, between the edges
// and above MidHighEdge. The shares sum to 1 for a non-silent spectrum.
func Bands(spectrum []float64, sampleRate int) (low, mid, high float64) {
	hz := binHz(spectrum, sampleRate)
	total := 0.0
	for k, m := range spectrum {
		f := float64(k) * hz
		switch {
		case f < LowMidEdge:
			low += m
		case f < MidHighEdge:
			mid += m
		default:
			high += m
		}
		total += m
	}
	if total == 0 {
		return 0, 0, 0
	}
	return low / total, mid / total, high / total
}

func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
