// ABOUTME: Audio fundamentals package shared by the playback and record pipelines
// ABOUTME: Defines Format, shared errors and sample conversion functions
// Package audio provides the types every pipeline stage agrees on.
//
// PCM travelling between stages is interleaved little-endian at
// Format.BitDepth. Format converts between byte counts and playing time:
//
//	format := audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16}
//	format.Duration(32000) // 1s
//	format.Bytes(500 * time.Millisecond) // 16000
//
// The subpackages queue and stream provide the bounded buffers stages are
// wired with; decode, encode, output, capture, preprocess and writer hold
// the plug-in interfaces.
package audio
