// ABOUTME: Audio decoder plug-ins for the playback pipeline
// ABOUTME: Provides the Decoder interface, a registry and WAV, PCM, MP3, FLAC, Ogg and Opus decoders
// Package decode provides the decoder stage of the playback pipeline.
//
// A decoder never owns its source or sink. It pulls encoded bytes through
// Config.Input, pushes PCM through Config.Output and calls Config.Post once
// the output format is known so the playback device can be opened:
//
//	dec, err := decode.DefaultRegistry().New("wav")
//	err = dec.Init(decode.Config{Input: in, Output: out, Post: post})
//	for err == nil {
//	    err = dec.Process()
//	}
//	if decode.IsEnd(err) {
//	    // decoded everything
//	}
//
// Decoders implementing Seeker (wav, pcm) support repositioning.
package decode
