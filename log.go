package tmq

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logger is the package-wide structured logger. It defaults to zerolog's
// global logger (stderr) and can be replaced with WithLogger on
// a Table, matching the density of the distilled driver's AUDIT tracing:
// one event per operation, plus the outcome.
var logger = log.Logger

// SetLogger replaces the package-wide logger used by every Table. It exists
// alongside the per-Table WithLogger option for callers that construct
// Tables before they have a configured logger available (e.g. very early
// in process startup).
func SetLogger(l zerolog.Logger) { logger = l }

func (ep *Endpoint) logWrite(s *Session, size int, err error) {
	ev := logger.Debug().Int("endpoint", ep.id).Int("size", size)
	if err != nil {
		ev.Err(err).Msg("write rejected")
		return
	}
	ev.Msg("write posted")
}

func (ep *Endpoint) logDeferredWrite(s *Session, size int, delay time.Duration) {
	logger.Debug().Int("endpoint", ep.id).Int("size", size).Dur("delay", delay).Msg("write deferred")
}

func (ep *Endpoint) logRead(s *Session, n int, err error) {
	ev := logger.Debug().Int("endpoint", ep.id).Int("bytes", n)
	switch {
	case err == nil:
		ev.Msg("read done")
	case err == ErrShortRead:
		ev.Err(err).Msg("read done, truncated")
	default:
		ev.Err(err).Msg("read aborted")
	}
}

func (ep *Endpoint) logRevoke(s *Session, released int) {
	logger.Debug().Int("endpoint", ep.id).Int("released", released).Msg("pending posts revoked")
}

func (ep *Endpoint) logFlush(s *Session) {
	logger.Info().Int("endpoint", ep.id).Msg("flush")
}

func (ep *Endpoint) logClose(s *Session) {
	logger.Debug().Int("endpoint", ep.id).Msg("session closed")
}
