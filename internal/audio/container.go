package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Container identifies an audio container format.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerMP3
	ContainerWAV
	ContainerVorbis
	ContainerFLAC
)

// String returns the container name.
func (c Container) String() string {
	switch c {
	case ContainerMP3:
		return "mp3"
	case ContainerWAV:
		return "wav"
	case ContainerVorbis:
		return "vorbis"
	case ContainerFLAC:
		return "flac"
	default:
		return "unknown"
	}
}

// SniffContainer identifies an audio container by its magic bytes. CDN
// URLs often lack a useful extension, so the payload is the only truth.
func SniffContainer(data []byte) Container {
	if len(data) < 4 {
		return ContainerUnknown
	}
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return ContainerWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return ContainerVorbis
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ContainerFLAC
	case bytes.HasPrefix(data, []byte("ID3")), data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ContainerMP3
	}
	return ContainerUnknown
}

// DecodeContainer opens a beep decoder for the sniffed container over rc.
func DecodeContainer(c Container, rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch c {
	case ContainerMP3:
		return mp3.Decode(rc)
	case ContainerWAV:
		return wav.Decode(rc)
	case ContainerVorbis:
		return vorbis.Decode(rc)
	case ContainerFLAC:
		return flac.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("unrecognized audio container")
	}
}
