package audioio

import (
	"errors"
	"math"
	"testing"
)

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full positive", 1, math.MaxInt16},
		{"over positive clamps", 1.7, math.MaxInt16},
		{"full negative", -1, -math.MaxInt16},
		{"over negative clamps", -3, -math.MaxInt16},
		{"half", 0.5, int16(0.5 * math.MaxInt16)},
		{"nan is silence", float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := FloatToPCM16([]float32{tt.in})
			if len(b) != 2 {
				t.Fatalf("expected 2 bytes, got %d", len(b))
			}
			got := int16(uint16(b[0]) | uint16(b[1])<<8)
			if got != tt.want {
				t.Errorf("FloatToPCM16(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodePCM16(t *testing.T) {
	samples, err := DecodePCM16([]byte{0x01, 0x00, 0xff, 0xff})
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if len(samples) != 2 || samples[0] != 1 || samples[1] != -1 {
		t.Errorf("got %v, want [1 -1]", samples)
	}

	if _, err := DecodePCM16([]byte{0x01, 0x00, 0x02}); !errors.Is(err, ErrOddLength) {
		t.Errorf("odd input: err = %v, want ErrOddLength", err)
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16, 1234}
	out := BytesToSamples(SamplesToBytes(in))
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("sample %d: %d != %d", i, in[i], out[i])
		}
	}
}

func TestFloat32FromBytes(t *testing.T) {
	b := make([]byte, 8)
	bits := math.Float32bits(0.25)
	b[0], b[1], b[2], b[3] = byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24)
	got := Float32FromBytes(b)
	if len(got) != 2 || got[0] != 0.25 || got[1] != 0 {
		t.Errorf("got %v", got)
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		in       int
		from, to int
		wantLen  int
	}{
		{"same rate", 480, 24000, 24000, 480},
		{"48k to 24k", 960, 48000, 24000, 480},
		{"16k to 24k", 320, 16000, 24000, 480},
		{"24k to 16k", 480, 24000, 16000, 320},
		{"empty", 0, 16000, 24000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]int16, tt.in)
			for i := range samples {
				samples[i] = int16(i)
			}
			if got := Resample(samples, tt.from, tt.to); len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestDownmixFloat(t *testing.T) {
	got := DownmixFloat([]float32{1, 0, 0.5, 0.5}, 2)
	if len(got) != 2 || got[0] != 0.5 || got[1] != 0.5 {
		t.Errorf("got %v", got)
	}
	mono := []float32{0.1, 0.2}
	if got := DownmixFloat(mono, 1); &got[0] != &mono[0] {
		t.Error("mono input should pass through")
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("empty RMS should be 0")
	}
	if got := RMS([]float32{1, -1, 1, -1}); math.Abs(got-1) > 1e-9 {
		t.Errorf("RMS = %v, want 1", got)
	}
}
