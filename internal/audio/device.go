// Package audio holds the sinks finished buffers are written to: the
// PortAudio output device, WAV files and in-memory collectors.
package audio

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/san-kum/brainjam/internal/jam"
)

// DeviceSink plays buffers on the default PortAudio output device.
type DeviceSink struct {
	stream     *portaudio.Stream
	player     *Player
	sampleRate int
	timeout    time.Duration
	log        jam.Logger
}

// DeviceOptions configure the output stream.
type DeviceOptions struct {
	SampleRate int
	// Chunk is the duration of one buffer written by the cycle.
	Chunk time.Duration
	// Frames per device callback. Zero lets PortAudio choose.
	Frames   int
	Underrun string
	Logger   jam.Logger
}

// OpenDevice initializes PortAudio and starts a mono output stream.
func OpenDevice(opts DeviceOptions) (*DeviceSink, error) {
	if opts.SampleRate <= 0 {
		return nil, jam.NewConfigError("sample_rate", opts.SampleRate, "must be positive")
	}
	chunk := int(opts.Chunk.Seconds() * float64(opts.SampleRate))
	d := &DeviceSink{
		player:     NewPlayer(4*max(chunk, 1024), opts.Underrun),
		sampleRate: opts.SampleRate,
		timeout:    2 * opts.Chunk,
		log:        jam.OrNop(opts.Logger),
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}
	// output only; duplex streams fail on many Linux setups
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(opts.SampleRate), opts.Frames, d.process)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	d.stream = stream
	d.log.Info("audio output started", "sample_rate", opts.SampleRate, "underrun", opts.Underrun)
	return d, nil
}

func (d *DeviceSink) process(out []float32) {
	d.player.Fill(out)
}

// Write queues buf for playback, waiting at most two chunks for room.
func (d *DeviceSink) Write(buf jam.AudioBuffer) error {
	if buf.SampleRate != d.sampleRate {
		return fmt.Errorf("device runs at %d Hz, buffer is %d Hz", d.sampleRate, buf.SampleRate)
	}
	if n := d.player.Push(buf.Samples, d.timeout); n < len(buf.Samples) {
		return fmt.Errorf("device backed up: queued %d of %d samples", n, len(buf.Samples))
	}
	return nil
}

func (d *DeviceSink) Underruns() int64 { return d.player.Underruns() }

func (d *DeviceSink) Close() error {
	d.player.Close()
	var err error
	if d.stream != nil {
		if e := d.stream.Stop(); e != nil {
			err = e
		}
		if e := d.stream.Close(); e != nil && err == nil {
			err = e
		}
	}
	if e := portaudio.Terminate(); e != nil && err == nil {
		err = e
	}
	d.log.Info("audio output stopped", "underruns", d.Underruns())
	return err
}

// Devices lists output-capable device names.
func Devices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if info.MaxOutputChannels > 0 {
			names = append(names, info.Name)
		}
	}
	return names, nil
}
