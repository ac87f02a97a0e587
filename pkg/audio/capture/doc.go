// ABOUTME: Audio input package for recording sources
// ABOUTME: Provides the capture Device interface and malgo, tone and file implementations
// Package capture provides the sources a recorder reads PCM from.
//
// Malgo records from a microphone, Tone synthesizes a test signal and
// File replays a WAV file. Stop lets the reader drain and then see io.EOF;
// Abort discards buffered audio.
package capture
