//go:build !cgo

package audioio

import (
	"errors"
	"log/slog"
)

const nativeAvailable = false

var errNoNative = errors.New("audioio: native backend requires cgo")

func newMalgoSource(Config, *slog.Logger) (Source, error) { return nil, errNoNative }

func newOtoSink(Config, *slog.Logger) (Sink, error) { return nil, errNoNative }
