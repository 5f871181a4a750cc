package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/teslashibe/go-livehelper/pkg/audioio"
)

// ErrCorruptChunk is returned for audio payloads that cannot be decoded.
var ErrCorruptChunk = errors.New("playback: corrupt audio chunk")

// DefaultChunkRate is assumed when a chunk's MIME type carries no rate.
const DefaultChunkRate = 24000

// ParseRate extracts the rate parameter from a MIME type such as
// "audio/pcm;rate=24000". It returns def when absent or malformed.
func ParseRate(mimeType string, def int) int {
	for _, param := range strings.Split(mimeType, ";")[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
			return rate
		}
	}
	return def
}

// Decode converts a raw PCM16 little-endian mono payload into a Buffer at
// outRate, resampling when the payload rate differs.
func Decode(data []byte, mimeType string, outRate int) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, fmt.Errorf("%w: empty payload", ErrCorruptChunk)
	}
	if mt := strings.ToLower(mimeType); mt != "" && !strings.HasPrefix(mt, "audio/pcm") {
		return Buffer{}, fmt.Errorf("%w: unsupported mime type %q", ErrCorruptChunk, mimeType)
	}
	samples, err := audioio.DecodePCM16(data)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
	}
	rate := ParseRate(mimeType, DefaultChunkRate)
	return Buffer{Samples: audioio.Resample(samples, rate, outRate)}, nil
}
