package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync/atomic"
)

// MaxVolume bounds the volume gain. Values above 1.0 amplify the source.
const MaxVolume = 2.0

// Resource reads s16le PCM from a stream one 20ms frame at a time and
// applies the attached volume gain. The gain may be adjusted while the
// resource is being played. A resource is exclusively owned by the
// session that created it.
type Resource struct {
	stream io.Reader
	raw    []byte

	// volume holds a float64 gain as bits, adjusted atomically.
	volume uint64
}

// NewResource wraps a PCM stream with a volume control set to the given
// initial gain.
func NewResource(stream io.Reader, volume float64) (*Resource, error) {
	if stream == nil {
		return nil, fmt.Errorf("nil audio stream")
	}

	r := &Resource{
		stream: stream,
		raw:    make([]byte, frameBytes),
	}
	r.SetVolume(volume)
	return r, nil
}

// Volume returns the current gain.
func (r *Resource) Volume() float64 {
	return math.Float64frombits(atomic.LoadUint64(&r.volume))
}

// SetVolume adjusts the gain, clamped to [0, MaxVolume].
func (r *Resource) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > MaxVolume {
		v = MaxVolume
	}
	atomic.StoreUint64(&r.volume, math.Float64bits(v))
}

// ReadFrame returns the next volume-scaled PCM frame. A short read at end
// of stream is zero-padded to a full frame; io.EOF is returned once the
// stream is exhausted.
func (r *Resource) ReadFrame() ([]int16, error) {
	n, err := io.ReadFull(r.stream, r.raw)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read pcm frame: %w", err)
	}

	// Pad the final partial frame with silence.
	for i := n; i < len(r.raw); i++ {
		r.raw[i] = 0
	}

	gain := r.Volume()
	frame := make([]int16, frameSamples)
	for i := range frame {
		sample := float64(int16(binary.LittleEndian.Uint16(r.raw[i*2:]))) * gain
		if sample > math.MaxInt16 {
			sample = math.MaxInt16
		}
		if sample < math.MinInt16 {
			sample = math.MinInt16
		}
		frame[i] = int16(sample)
	}
	return frame, nil
}
