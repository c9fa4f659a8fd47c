package log

import (
	"context"
	"log/slog"
	"strconv"
)

// SlogAdapter writes access events to an slog.Logger.
// Useful for development when you want to watch bus traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to the given
// slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Failed operations are logged
// at Warn level, everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("op", event.Op.String()),
		slog.String("origin", event.Origin.String()),
	}

	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.Register != "" {
		attrs = append(attrs,
			slog.String("register", event.Register),
			slog.String("addr", hex(event.Addr)),
		)
	}
	if event.Field != "" {
		attrs = append(attrs, slog.String("field", event.Field))
	}
	if event.Policy != "" {
		attrs = append(attrs, slog.String("policy", event.Policy))
	}

	switch event.Op {
	case OpRead, OpWrite, OpFieldRead, OpFieldWrite, OpPoll:
		attrs = append(attrs,
			slog.Uint64("value", event.Value),
			slog.Bool("fetched", event.Fetched),
		)
	}
	if event.Fetched {
		attrs = append(attrs, slog.Duration("latency", event.Latency))
	}
	attrs = append(attrs, slog.Bool("connected", event.Connected))

	level := slog.LevelDebug
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
		level = slog.LevelWarn
	}

	a.logger.LogAttrs(context.Background(), level, "regaccess", attrs...)
}

func hex(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
