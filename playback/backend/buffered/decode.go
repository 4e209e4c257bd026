package buffered

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/lexivox/lexivox/internal/audio"
	"github.com/lexivox/lexivox/playback"
)

const (
	bytesPerSample  = 2
	frameSize       = audio.Channels * bytesPerSample
	resampleQuality = 4
)

// decode turns raw asset bytes into interleaved stereo PCM16 at the
// given sample rate.
func decode(data []byte, sampleRate int) (*playback.Buffer, error) {
	rc := io.NopCloser(bytes.NewReader(data))

	streamer, format, err := audio.DecodeContainer(audio.SniffContainer(data), rc)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if int(format.SampleRate) != sampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(sampleRate), streamer)
	}

	pcm := drainPCM(src)
	if len(pcm) == 0 {
		return nil, fmt.Errorf("audio stream produced no samples")
	}

	frames := len(pcm) / frameSize
	return &playback.Buffer{
		Data:       pcm,
		SampleRate: sampleRate,
		Channels:   audio.Channels,
		Duration:   time.Duration(frames) * time.Second / time.Duration(sampleRate),
	}, nil
}

// drainPCM pulls the whole stream into interleaved PCM16LE.
func drainPCM(src beep.Streamer) []byte {
	chunk := make([][2]float64, 2048)
	var out []byte

	for {
		n, ok := src.Stream(chunk)
		for i := 0; i < n; i++ {
			l := audio.SampleToInt16(chunk[i][0])
			r := audio.SampleToInt16(chunk[i][1])
			out = append(out, byte(l), byte(l>>8), byte(r), byte(r>>8))
		}
		if !ok {
			return out
		}
	}
}

// pcmStreamer adapts interleaved PCM16LE back into a beep stream so the
// rate adjustment can reuse beep's resampler.
type pcmStreamer struct {
	data []byte
	pos  int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	n := 0
	for n < len(samples) && s.pos+frameSize <= len(s.data) {
		l := int16(s.data[s.pos]) | int16(s.data[s.pos+1])<<8
		r := int16(s.data[s.pos+2]) | int16(s.data[s.pos+3])<<8
		samples[n] = [2]float64{float64(l) / 32768, float64(r) / 32768}
		s.pos += frameSize
		n++
	}
	return n, n > 0
}

func (s *pcmStreamer) Err() error { return nil }

// stretchPCM time-stretches PCM by the playback rate: rate 2 halves the
// sample count so the same data plays twice as fast at the device rate.
func stretchPCM(data []byte, sampleRate int, rate float64) []byte {
	if rate == 1 {
		return data
	}
	target := beep.SampleRate(float64(sampleRate) / rate)
	if target < 1 {
		target = 1
	}
	src := beep.Resample(resampleQuality, beep.SampleRate(sampleRate), target, &pcmStreamer{data: data})
	return drainPCM(src)
}
