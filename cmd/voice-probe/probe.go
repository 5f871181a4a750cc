package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/teslashibe/go-livehelper/pkg/audioio"
	"github.com/teslashibe/go-livehelper/pkg/voice"
)

const (
	chunkDuration = 100 * time.Millisecond
	replyTimeout  = 30 * time.Second
	replySettle   = 5 * time.Second
	loopPause     = 2 * time.Second
)

// result holds metrics for one measured turn.
type result struct {
	Loop          int
	BytesSent     int
	BytesReceived int
	FirstAudio    time.Duration // last frame sent to first audio received
	Total         time.Duration // first frame sent to turn complete
	Transcript    string
	Err           error
}

type probe struct {
	conn  voice.Conn
	rate  int
	pace  time.Duration
	pause time.Duration
	msgs  chan *voice.Message
	errc  chan error
}

func newProbe(conn voice.Conn, rate int) *probe {
	p := &probe{
		conn:  conn,
		rate:  rate,
		pace:  chunkDuration,
		pause: loopPause,
		msgs:  make(chan *voice.Message, 64),
		errc:  make(chan error, 1),
	}
	go p.read()
	return p
}

// read is the only caller of Receive.
func (p *probe) read() {
	for {
		msg, err := p.conn.Receive()
		if err != nil {
			p.errc <- err
			return
		}
		p.msgs <- msg
	}
}

func (p *probe) run(ctx context.Context, loops int, audio time.Duration) []result {
	results := make([]result, 0, loops)
	var seq uint64
	for i := 1; i <= loops; i++ {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("📝 Turn %d/%d\n", i, loops)
		r := p.turn(ctx, i, audio, &seq)
		results = append(results, r)
		if r.Err != nil {
			fmt.Printf("   ❌ Error: %v\n", r.Err)
			if !errors.Is(r.Err, errNoReply) {
				break
			}
		} else {
			fmt.Printf("   📊 First audio: %s | Total: %s\n", formatDuration(r.FirstAudio), formatDuration(r.Total))
		}
		if i < loops {
			time.Sleep(p.pause)
		}
	}
	return results
}

var errNoReply = errors.New("timeout waiting for reply")

func (p *probe) turn(ctx context.Context, loop int, audio time.Duration, seq *uint64) result {
	r := result{Loop: loop}
	samples := int(float64(p.rate) * chunkDuration.Seconds())
	chunks := int(audio / chunkDuration)
	if chunks < 1 {
		chunks = 1
	}

	start := time.Now()
	for i := 0; i < chunks; i++ {
		data := audioio.SamplesToBytes(speechLike(samples, p.rate, i))
		*seq++
		if err := p.conn.SendAudio(voice.Frame{Seq: *seq, Data: data, SampleRate: p.rate}); err != nil {
			r.Err = err
			return r
		}
		r.BytesSent += len(data)
		select {
		case <-ctx.Done():
			r.Err = ctx.Err()
			return r
		case <-time.After(p.pace):
		}
	}
	lastSent := time.Now()

	timeout := time.NewTimer(replyTimeout)
	defer timeout.Stop()
	var first time.Time
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			r.Err = ctx.Err()
			return r
		case err := <-p.errc:
			r.Err = err
			return r
		case <-timeout.C:
			r.Err = errNoReply
			return r
		case <-settle:
			r.Total = time.Since(start)
			return r
		case msg := <-p.msgs:
			for _, a := range msg.Audio {
				if first.IsZero() {
					first = time.Now()
					r.FirstAudio = first.Sub(lastSent)
					settle = time.After(replySettle)
				}
				r.BytesReceived += len(a.Data)
			}
			if msg.OutputTranscription != nil {
				r.Transcript += msg.OutputTranscription.Text
			}
			if msg.TurnComplete && !first.IsZero() {
				r.Total = time.Since(start)
				return r
			}
		}
	}
}

// speechLike generates a voiced, syllable-modulated tone loud enough to
// trigger server-side voice activity detection.
func speechLike(n, rate, chunk int) []int16 {
	out := make([]int16, n)
	base := 200.0 + float64(chunk%5)*50
	for i := range out {
		t := float64(chunk*n+i) / float64(rate)
		s := math.Sin(2*math.Pi*base*t) + 0.5*math.Sin(4*math.Pi*base*t) + 0.25*math.Sin(6*math.Pi*base*t)
		s *= 0.5 + 0.5*math.Sin(2*math.Pi*4*t)
		out[i] = int16(s * 8000)
	}
	return out
}

// summary aggregates successful turns.
type summary struct {
	OK            int
	Avg, Min, Max time.Duration
	AvgTotal      time.Duration
}

func summarize(results []result) summary {
	var s summary
	var sum, sumTotal time.Duration
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if s.OK == 0 || r.FirstAudio < s.Min {
			s.Min = r.FirstAudio
		}
		if r.FirstAudio > s.Max {
			s.Max = r.FirstAudio
		}
		s.OK++
		sum += r.FirstAudio
		sumTotal += r.Total
	}
	if s.OK > 0 {
		s.Avg = sum / time.Duration(s.OK)
		s.AvgTotal = sumTotal / time.Duration(s.OK)
	}
	return s
}

func printResults(transport string, results []result) {
	fmt.Println()
	fmt.Println("📊 Results Summary")
	fmt.Println("==================")
	fmt.Printf("Transport: %s\nTurns run: %d\n\n", transport, len(results))

	s := summarize(results)
	if s.OK == 0 {
		fmt.Println("❌ All turns failed.")
		return
	}
	fmt.Println("┌─────────────────────────────────────────┐")
	fmt.Printf("│  First audio (avg): %-20s│\n", formatDuration(s.Avg))
	fmt.Printf("│  First audio (min): %-20s│\n", formatDuration(s.Min))
	fmt.Printf("│  First audio (max): %-20s│\n", formatDuration(s.Max))
	fmt.Printf("│  Total (avg):       %-20s│\n", formatDuration(s.AvgTotal))
	fmt.Printf("│  Success rate:      %-20s│\n", fmt.Sprintf("%d/%d", s.OK, len(results)))
	fmt.Println("└─────────────────────────────────────────┘")

	for _, r := range results {
		status := "✅"
		if r.Err != nil {
			status = "❌ " + r.Err.Error()
		}
		fmt.Printf("  %2d  %8s  %8s  %6dB  %s\n", r.Loop, formatDuration(r.FirstAudio), formatDuration(r.Total), r.BytesReceived, status)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "---"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
