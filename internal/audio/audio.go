// Package audio implements the playback half of the voice stack: framed
// PCM resources with an attached volume control, and an opus-encoding
// player that feeds a voice connection.
package audio

import (
	"fmt"

	"layeh.com/gopus"
)

const (
	SampleRate = 48000
	Channels   = 2   // Stereo
	FrameSize  = 960 // 20ms at 48kHz

	// frameSamples is the number of int16 samples in one frame.
	frameSamples = FrameSize * Channels
	// frameBytes is the size of one s16le frame on the wire.
	frameBytes = frameSamples * 2
	// maxOpusBytes bounds one encoded opus packet.
	maxOpusBytes = 4000
)

// Encoder turns one PCM frame into an opus packet.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

type opusEncoder struct {
	encoder *gopus.Encoder
}

// NewOpusEncoder creates an opus encoder for Discord's 48kHz stereo frames.
func NewOpusEncoder() (Encoder, error) {
	encoder, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	return &opusEncoder{
		encoder: encoder,
	}, nil
}

func (e *opusEncoder) Encode(pcm []int16) ([]byte, error) {
	data, err := e.encoder.Encode(pcm, FrameSize, maxOpusBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode opus frame: %w", err)
	}
	return data, nil
}
