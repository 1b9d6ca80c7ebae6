// Package shaping reduces raw control vectors to stable latent vectors.
//
// Three interchangeable strategies implement [jam.Shaper]:
//
//   - [Linear]: online normalization and streaming principal components
//   - [Nonlinear]: a small feed-forward encoder loaded from a weight file
//   - [Temporal]: per-dimension smoothing with an optional velocity channel
//
// Every shaper clamps its input to [0,1] before use and returns values in
// [0,1]. The first call returns the clamped input itself. Shape reuses an
// internal output buffer: the returned slice is valid until the next call.
package shaping
