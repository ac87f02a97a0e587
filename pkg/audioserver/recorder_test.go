// ABOUTME: Recorder tests using the tone capture device and file writers
// ABOUTME: Checks finalized WAV headers, timed takes, pausing and failures
package audioserver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/capture"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/wav"
	gowav "github.com/go-audio/wav"
)

// recordEvents records recorder notifications
type recordEvents struct {
	ch chan RecordInfo

	mu   sync.Mutex
	errs []error
}

func newRecordEvents() *recordEvents {
	return &recordEvents{ch: make(chan RecordInfo, 64)}
}

func (e *recordEvents) listener(_ *Recorder, info RecordInfo) {
	e.ch <- info
}

func (e *recordEvents) onError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *recordEvents) errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

func (e *recordEvents) waitFor(t *testing.T, want RecordInfo) []RecordInfo {
	t.Helper()

	var seen []RecordInfo
	deadline := time.After(testTimeout)
	for {
		select {
		case info := <-e.ch:
			if info == want {
				return seen
			}
			seen = append(seen, info)
		case <-deadline:
			t.Fatalf("timed out waiting for %s, saw %v", want, seen)
		}
	}
}

func newTestRecorder(t *testing.T, ev *recordEvents, realtime bool) *Recorder {
	t.Helper()

	r, err := NewRecorder(RecorderConfig{
		Name:     "test",
		Device:   capture.NewTone(realtime),
		Listener: ev.listener,
		OnError:  ev.onError,
	})
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}
	t.Cleanup(r.Destroy)
	return r
}

// readWAV checks that the file at path is a finalized WAV and returns its header
func readWAV(t *testing.T, path string) (wav.Header, int) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read recording: %v", err)
	}
	h, err := wav.Parse(data)
	if err != nil {
		t.Fatalf("failed to parse header: %v", err)
	}
	if int(h.Subchunk2Size) != len(data)-wav.HeaderSize {
		t.Errorf("expected data size %d, got %d", len(data)-wav.HeaderSize, h.Subchunk2Size)
	}
	if int(h.ChunkSize) != len(data)-8 {
		t.Errorf("expected riff size %d, got %d", len(data)-8, h.ChunkSize)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if !gowav.NewDecoder(f).IsValidFile() {
		t.Error("expected a valid wav file")
	}
	return h, len(data) - wav.HeaderSize
}

func TestRecordToneUntilStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	ev := newRecordEvents()
	r := newTestRecorder(t, ev, true)

	if err := r.Record(RecordConfig{Target: Borrowed(path)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	seen := ev.waitFor(t, RecordInfoEncode)
	if len(seen) != 1 || seen[0] != RecordInfoWriter {
		t.Errorf("expected writer before encode, got %v", seen)
	}
	if r.State() != StateRunning {
		t.Errorf("expected running, got %s", r.State())
	}

	time.Sleep(300 * time.Millisecond)
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.State() != StateStopped {
		t.Errorf("expected stopped, got %s", r.State())
	}
	ev.waitFor(t, RecordInfoStop)

	h, size := readWAV(t, path)
	if h.SampleRate != 16000 || h.NumChannels != 1 || h.BitsPerSample != 16 {
		t.Errorf("unexpected header %+v", h)
	}
	if size == 0 || size%2 != 0 {
		t.Errorf("expected whole frames of audio, got %d bytes", size)
	}
	if got := DefaultRecordFormat.Duration(int64(size)); got != r.CurrentTime() {
		t.Errorf("expected current time %v to match the file, got %v", got, r.CurrentTime())
	}
	if errs := ev.errors(); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestRecordDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	ev := newRecordEvents()
	r := newTestRecorder(t, ev, false)

	format := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
	err := r.Record(RecordConfig{
		Target:   Borrowed(path),
		Format:   format,
		Duration: 500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := r.WaitIdle(ctx); err != nil {
		t.Fatalf("recorder did not go idle: %v", err)
	}
	ev.waitFor(t, RecordInfoStop)

	if r.State() != StateIdle {
		t.Errorf("expected idle, got %s", r.State())
	}
	_, size := readWAV(t, path)
	if size != 96000 {
		t.Errorf("expected 96000 bytes, got %d", size)
	}
	if r.CurrentTime() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", r.CurrentTime())
	}
}

func TestRecordRawPCM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.pcm")
	ev := newRecordEvents()
	r := newTestRecorder(t, ev, false)

	err := r.Record(RecordConfig{Target: Borrowed(path), Type: "pcm", Duration: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	ev.waitFor(t, RecordInfoStop)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 3200 {
		t.Errorf("expected 3200 bytes, got %d", info.Size())
	}
}

func TestRecordPauseResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	ev := newRecordEvents()
	r := newTestRecorder(t, ev, true)

	if err := r.Pause(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning before record, got %v", err)
	}

	if err := r.Record(RecordConfig{Target: Borrowed(path)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	ev.waitFor(t, RecordInfoEncode)

	if err := r.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := r.Pause(); err != nil {
		t.Errorf("expected second pause to be a no-op, got %v", err)
	}
	if r.State() != StatePaused {
		t.Errorf("expected paused, got %s", r.State())
	}
	ev.waitFor(t, RecordInfoPaused)

	time.Sleep(50 * time.Millisecond)
	held := r.CurrentTime()
	time.Sleep(100 * time.Millisecond)
	if r.CurrentTime() != held {
		t.Errorf("expected encoding to hold while paused, got %v then %v", held, r.CurrentTime())
	}

	if err := r.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	ev.waitFor(t, RecordInfoResumed)

	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	readWAV(t, path)
}

func TestStopWhilePausedFinalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	ev := newRecordEvents()
	r := newTestRecorder(t, ev, true)

	if err := r.Record(RecordConfig{Target: Borrowed(path)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	ev.waitFor(t, RecordInfoEncode)
	time.Sleep(100 * time.Millisecond)

	if err := r.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.State() != StateStopped {
		t.Errorf("expected stopped, got %s", r.State())
	}
	readWAV(t, path)
}

func TestRecordUnknownEncoder(t *testing.T) {
	ev := newRecordEvents()
	r := newTestRecorder(t, ev, false)

	var released int
	target := Owned(filepath.Join(t.TempDir(), "take.mp3"), func() { released++ })
	err := r.Record(RecordConfig{Target: target, Type: "mp3"})
	if !errors.Is(err, ErrUnknownEncoder) {
		t.Fatalf("expected ErrUnknownEncoder, got %v", err)
	}
	if r.State() != StateIdle {
		t.Errorf("expected idle, got %s", r.State())
	}
	if released != 1 {
		t.Errorf("expected the target to be released, got %d", released)
	}
}

func TestRecordInvalidFormat(t *testing.T) {
	r := newTestRecorder(t, newRecordEvents(), false)

	err := r.Record(RecordConfig{
		Target: Borrowed(filepath.Join(t.TempDir(), "take.wav")),
		Format: audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 12},
	})
	if err == nil {
		t.Fatal("expected an error for 12-bit audio")
	}
}

func TestRecordWriterFailure(t *testing.T) {
	ev := newRecordEvents()
	r := newTestRecorder(t, ev, false)

	path := filepath.Join(t.TempDir(), "missing", "take.wav")
	if err := r.Record(RecordConfig{Target: Borrowed(path)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	seen := ev.waitFor(t, RecordInfoStop)
	for _, info := range seen {
		if info == RecordInfoWriter {
			t.Error("expected no writer notification")
		}
	}

	if r.State() != StateError {
		t.Errorf("expected error state, got %s", r.State())
	}
	// OnError is queued behind the stop notification
	deadline := time.Now().Add(testTimeout)
	for len(ev.errors()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(ev.errors()) != 1 {
		t.Errorf("expected one error, got %v", ev.errors())
	}
}

func TestRecorderDestroy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	ev := newRecordEvents()

	r, err := NewRecorder(RecorderConfig{Device: capture.NewTone(true), Listener: ev.listener})
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}
	if err := r.Record(RecordConfig{Target: Borrowed(path)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	ev.waitFor(t, RecordInfoEncode)

	r.Destroy()
	r.Destroy()

	if err := r.Record(RecordConfig{Target: Borrowed(path)}); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
	readWAV(t, path)
}
