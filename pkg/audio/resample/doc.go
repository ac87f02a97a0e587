// ABOUTME: Audio resampling package backed by oov/audio
// ABOUTME: Converts interleaved PCM between sample rates for fixed-rate outputs
// Package resample provides audio sample rate conversion.
//
// The player uses it when configured with a fixed output rate and the
// decoded stream differs:
//
//	r, err := resample.New(44100, 48000, 2, 16)
//	out := r.Process(pcm)
package resample
