// Package dsp holds the sample-level building blocks shared by the sound
// engines: parameter smoothing, a state variable filter, an ADSR envelope,
// seeded noise and an output limiter. Nothing here allocates per sample.
package dsp
