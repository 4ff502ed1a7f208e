// Package audiopcm widens raw 16-bit PCM from the voice service into
// float sample buffers that playback and WAV-writing consumers share.
package audiopcm

import (
	"encoding/binary"
	"fmt"
	"time"
)

// SynthesisSampleRate is the fixed output rate of the voice service.
const SynthesisSampleRate = 24000

// Buffer is decoded multi-channel audio. Channels[c][f] is frame f of
// channel c, scaled to [-1,1].
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

func (b *Buffer) FrameCount() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.FrameCount()) / float64(b.SampleRate) * float64(time.Second))
}

// Decode converts little-endian signed 16-bit interleaved PCM into a Buffer.
// Each sample is divided by 32768, so the int16 range maps onto [-1, 1).
func Decode(raw []byte, sampleRate, channelCount int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channelCount < 1 {
		return nil, fmt.Errorf("channel count must be at least 1, got %d", channelCount)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("pcm16 payload has odd length %d", len(raw))
	}

	sampleCount := len(raw) / 2
	if sampleCount%channelCount != 0 {
		return nil, fmt.Errorf("sample count %d not divisible by %d channels", sampleCount, channelCount)
	}
	frameCount := sampleCount / channelCount

	channels := make([][]float32, channelCount)
	for c := range channels {
		channels[c] = make([]float32, frameCount)
	}
	for i := 0; i < sampleCount; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		channels[i%channelCount][i/channelCount] = float32(s) / 32768
	}

	return &Buffer{SampleRate: sampleRate, Channels: channels}, nil
}

// Encode is the inverse of Decode: scale by 32768, round to nearest, clamp to
// the int16 range, interleave little-endian. Samples that never saturated
// round-trip byte for byte.
func Encode(b *Buffer) []byte {
	if b == nil || len(b.Channels) == 0 {
		return nil
	}
	channelCount := len(b.Channels)
	frameCount := b.FrameCount()
	out := make([]byte, frameCount*channelCount*2)
	for f := 0; f < frameCount; f++ {
		for c := 0; c < channelCount; c++ {
			v := float64(b.Channels[c][f]) * 32768
			if v >= 0 {
				v += 0.5
			} else {
				v -= 0.5
			}
			n := int(v)
			if n > 32767 {
				n = 32767
			}
			if n < -32768 {
				n = -32768
			}
			binary.LittleEndian.PutUint16(out[(f*channelCount+c)*2:], uint16(int16(n)))
		}
	}
	return out
}
