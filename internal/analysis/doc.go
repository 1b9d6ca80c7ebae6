// Package analysis measures rendered audio and recorded control paths.
//
//   - [Analyze]: averaged magnitude spectrum plus centroid, rolloff, RMS and
//     low/mid/high band shares of a mono buffer
//   - [NewPortrait]: two recorded series plotted against each other
//   - [Portrait.ASCII]: terminal rendering of a portrait
//
// Spectral centroid is the usual brightness proxy:
//
//	rep := analysis.Analyze(samples, 44100)
//	fmt.Printf("%.0f Hz\n", rep.Centroid)
package analysis
