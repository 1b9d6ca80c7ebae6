// Package control provides control sources that feed the performance cycle.
//
// Every source implements [jam.Source] and yields vectors in [0,1]:
//
//   - [Mock]: seeded slow sinusoids plus Gaussian noise
//   - [Scripted]: piecewise ramps and holds, for scenarios and tests
//   - [Keyboard]: key presses nudge each control by a fixed step
//   - [OSC]: UDP listener decoding Open Sound Control messages
//   - [MIDI]: control change messages from a MIDI input port
//
// # Concurrency
//
// Poll is always called from the cycle goroutine and never blocks.
// Network and device sources receive on their own goroutine and hand the
// latest vector over through a [jam.Cell]; they implement io.Closer.
package control
