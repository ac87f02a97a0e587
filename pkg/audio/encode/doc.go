// ABOUTME: Audio encoder plug-ins for the record pipeline
// ABOUTME: Provides the Encoder interface, a registry and WAV, PCM and Opus encoders
// Package encode provides the encoder stage of the record pipeline.
//
// Encoders mirror decoders: PCM arrives through Config.Input, encoded bytes
// leave through Config.Output and Process is called until it returns an
// error. When Input reports io.EOF the encoder flushes what it holds and
// returns an error for which IsEnd is true.
//
// Example:
//
//	enc, err := encode.DefaultRegistry().New("wav")
//	err = enc.Init(encode.Config{Input: pcm.Read, Output: file.Write, Format: format})
//	for err == nil {
//	    err = enc.Process()
//	}
package encode
