// Package analysis inspects recorded runs.
//
//   - [PowerSpectrum] and [DominantFrequency]: spectral content of a sampled channel
//   - [Divergence] and [SeparationRate]: how far two runs of the same scene drift apart
//   - [NewPhasePortrait]: a 2D trajectory of two channels, renderable as text
//
// Channels are extracted from samples with [Channel]:
//
//	heights := analysis.Channel(result.Samples, analysis.BodyHeight(3))
//	hz := analysis.DominantFrequency(heights, dt*float64(every))
package analysis
