// Package audio records microphone speech for the conversation view.
//
// A Recorder owns at most one recording Session at a time. A session acquires
// a Stream from a Device, buffers its PCM chunks, feeds a live frequency
// Analyzer (read by the amplitude visualizer) and forwards audio to the live
// transcriber. Stopping a session releases the device and finalizes the
// buffered audio into a playable WAV Artifact.
//
// Example usage:
//
//	dev, err := audio.NewMalgoDevice()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	rec := audio.NewRecorder(dev, transcriber, visualizer)
//	if err := rec.Start(ctx, "fr-FR"); err != nil {
//	    // device denied or unavailable; nothing to clean up
//	}
//	artifact, _ := rec.Stop()
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"time"
)

// Sentinel errors for the recorder error taxonomy.
var (
	// ErrUnsupported is returned when no capture capability exists.
	ErrUnsupported = errors.New("audio: capture not supported")

	// ErrDeviceUnavailable is returned when the device cannot be acquired,
	// including permission denial.
	ErrDeviceUnavailable = errors.New("audio: device unavailable")

	// ErrAlreadyRecording is returned when a session is active, being
	// acquired, or still releasing its device.
	ErrAlreadyRecording = errors.New("audio: recording already in progress")

	// ErrAborted is returned by Start when Stop raced the device acquisition.
	ErrAborted = errors.New("audio: recording aborted")

	// ErrNotRecording is returned by Stop when it ended no session.
	ErrNotRecording = errors.New("audio: not recording")

	// ErrStreamClosed is returned when writing to a closed stream.
	ErrStreamClosed = errors.New("audio: stream closed")
)

// Format describes PCM16 little-endian audio.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// DefaultFormat is 16 kHz mono, which every supported STT engine accepts.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1}

// BytesPerSecond returns the PCM16 byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration returns the playback duration of n PCM16 bytes.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Device acquires capture streams. Open may block while the user is asked for
// permission.
type Device interface {
	Open(ctx context.Context, format Format) (Stream, error)
}

// Stream is a live capture stream.
type Stream interface {
	// Chunks delivers captured PCM16 chunks. It is closed after Close.
	Chunks() <-chan []byte

	// Close stops the capture and releases the device. It is idempotent.
	Close() error
}

// BytesToInt16 decodes little-endian PCM16. A trailing odd byte is ignored.
func BytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Int16ToBytes encodes samples as little-endian PCM16.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
