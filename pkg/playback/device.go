package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-livehelper/pkg/audioio"
)

// Device binds a Timeline to an output sink. It is the Output a session's
// Scheduler uses; closing it releases the sink.
type Device struct {
	*Timeline

	sink      audioio.Sink
	closeOnce sync.Once
	closeErr  error
}

// Open starts sink pulling from tl. On failure the sink is closed.
func Open(ctx context.Context, sink audioio.Sink, tl *Timeline) (*Device, error) {
	if rate := sink.Config().SampleRate; rate != tl.SampleRate() {
		sink.Close()
		return nil, fmt.Errorf("sink rate %d does not match timeline rate %d", rate, tl.SampleRate())
	}
	if err := sink.Start(ctx, tl); err != nil {
		sink.Close()
		return nil, fmt.Errorf("start %s output: %w", sink.Name(), err)
	}
	return &Device{Timeline: tl, sink: sink}, nil
}

// Close stops the timeline and releases the sink. Safe to call twice.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = errors.Join(d.Timeline.Close(), d.sink.Close())
	})
	return d.closeErr
}
