// ABOUTME: Package audioserver runs playback and recording pipelines
// ABOUTME: Player and Recorder wire plug-ins together through bounded buffers

// Package audioserver plays and records audio through pluggable stages.
//
// A Player pulls bytes from a preprocess.Preprocessor, decodes them with a
// decode.Decoder chosen by type and writes PCM to an output.Device. A
// Recorder reads a capture.Device, encodes with an encode.Encoder and hands
// the result to a writer.Writer. Each stage runs on its own goroutine and
// stages are joined by a queue.Queue or a stream.Stream.
package audioserver
