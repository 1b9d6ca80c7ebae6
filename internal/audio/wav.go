package audio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/san-kum/brainjam/internal/jam"
)

// WAVSink streams buffers into a 16-bit mono WAV file.
type WAVSink struct {
	path       string
	file       *os.File
	enc        *wav.Encoder
	sampleRate int
	samples    int64
}

func CreateWAV(path string, sampleRate int) (*WAVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	return &WAVSink{
		path:       path,
		file:       f,
		enc:        wav.NewEncoder(f, sampleRate, 16, 1, 1),
		sampleRate: sampleRate,
	}, nil
}

func (w *WAVSink) Write(buf jam.AudioBuffer) error {
	if buf.SampleRate != w.sampleRate {
		return fmt.Errorf("wav is %d Hz, buffer is %d Hz", w.sampleRate, buf.SampleRate)
	}
	if len(buf.Samples) == 0 {
		return nil
	}
	err := w.enc.Write(&audio.Float32Buffer{
		Format:         &audio.Format{SampleRate: w.sampleRate, NumChannels: 1},
		Data:           buf.Samples,
		SourceBitDepth: 16,
	})
	if err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	w.samples += int64(len(buf.Samples))
	return nil
}

// Samples is the number of frames written so far.
func (w *WAVSink) Samples() int64 { return w.samples }
func (w *WAVSink) Path() string   { return w.path }

// Close finalizes the header and closes the file.
func (w *WAVSink) Close() error {
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("finalize wav: %w", encErr)
	}
	return fileErr
}

// ReadWAV loads a WAV file and downmixes it to mono.
func ReadWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float32, frames)
	for i := range out {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += buf.Data[i*ch+c]
		}
		out[i] = sum / float32(ch)
	}
	return out, buf.Format.SampleRate, nil
}
