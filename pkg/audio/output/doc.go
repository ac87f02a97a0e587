// ABOUTME: Audio output package for playback devices
// ABOUTME: Provides the Device interface and oto, malgo and discard implementations
// Package output provides playback devices for the player.
//
// A device is opened for one PCM format, started, written to by the
// playback stage and either stopped (drain) or aborted (discard):
//
//	dev, err := output.NewMalgo("")
//	err = dev.Open(output.Config{SampleRate: 48000, Bits: 24, Channels: 2})
//	err = dev.Start()
//	n, err := dev.Write(pcm)
//	err = dev.Stop()
//
// Oto converts everything to 16-bit; malgo plays 16, 24 and 32-bit
// natively. Both implement VolumeControl.
package output
