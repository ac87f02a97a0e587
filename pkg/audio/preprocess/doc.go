// ABOUTME: Preprocessor package for raw media sources
// ABOUTME: File, HTTP and WebSocket sources selected by target URI
// Package preprocess provides the sources the player reads encoded media
// from.
//
//	pre, err := preprocess.ForTarget("http://example.com/song.mp3")
//	err = pre.Init(preprocess.Config{URI: "http://example.com/song.mp3"})
//	defer pre.Destroy()
//	n, err := pre.Read(buf)
//
// Only File supports Seek; the network sources return ErrSeekUnsupported.
// Type returns a decoder type hint taken from the file extension,
// Content-Type or the stream header sent by the stream server.
package preprocess
