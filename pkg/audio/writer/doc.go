// ABOUTME: Writer package for recording sinks
// ABOUTME: File and WebSocket writers selected by target URI
// Package writer provides the sinks a recorder's encoded output goes to.
//
// File rewrites the 44-byte WAV header on Destroy when Type is "wav", so a
// recording stopped at any point is a valid RIFF file. WebSocket streams to
// the stream server's /record endpoint, which does the same on its side.
package writer
