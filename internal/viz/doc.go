// Package viz draws the pipeline in the terminal.
//
//   - [Dashboard]: a Bubble Tea model that follows a running cycle through
//     its telemetry and forwards key presses to a keyboard source
//   - [Plot] and [Spectrum]: asciigraph renderings for recorded series and
//     analysis reports
//   - three color themes, switched at runtime
//
// # Key Bindings
//
//	q/w a/s z/x e/r - lower/raise controls 1..4
//	Space           - reset the controls to 0.5
//	P               - pause/resume the cycle
//	G               - switch the history graph
//	T               - cycle color themes
//	?               - show help
//	Esc, Ctrl+C     - quit
package viz
