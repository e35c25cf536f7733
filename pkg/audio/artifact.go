package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Artifact is a finalized recording, playable as a WAV file.
type Artifact struct {
	ID        string        `json:"id"`
	Path      string        `json:"-"`
	Format    Format        `json:"format"`
	Duration  time.Duration `json:"duration"`
	Size      int64         `json:"size"`
	Locale    string        `json:"locale"`
	CreatedAt time.Time     `json:"created_at"`
}

// ContentType is the MIME type of artifact files.
const ContentType = "audio/wav"

// WriteWAV writes PCM16 chunks to path as a WAV file and returns its size.
func WriteWAV(path string, format Format, chunks [][]byte) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("audio: create recordings dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("audio: create artifact: %w", err)
	}
	defer f.Close()

	var total int
	for _, c := range chunks {
		total += len(c) / 2
	}
	data := make([]int, 0, total)
	for _, c := range chunks {
		for _, s := range BytesToInt16(c) {
			data = append(data, int(s))
		}
	}

	enc := wav.NewEncoder(f, format.SampleRate, 16, format.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return 0, fmt.Errorf("audio: encode artifact: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("audio: finalize artifact: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("audio: stat artifact: %w", err)
	}
	return info.Size(), nil
}

// ReadWAV decodes a PCM16 WAV file into raw little-endian bytes.
func ReadWAV(path string) ([]byte, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Format{}, fmt.Errorf("audio: open artifact: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, Format{}, fmt.Errorf("audio: %s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("audio: decode artifact: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = int16(s)
	}
	format := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	return Int16ToBytes(samples), format, nil
}
