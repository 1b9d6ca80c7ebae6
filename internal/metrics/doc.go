// Package metrics accumulates performance figures from cycle frames. Every
// type satisfies jam.Metric; Collector bundles them into a Summary.
package metrics
