package binlay

import "github.com/rs/zerolog"

// Op labels the direction of a notified event.
type Op uint8

const (
	OpWrite Op = iota
	OpRead
)

// String returns the operation name.
func (o Op) String() string {
	if o == OpRead {
		return "read"
	}
	return "write"
}

// Event describes one completed field operation: which field, its kind, the
// direction, and the relative stream position afterwards.
type Event struct {
	Field  string
	Kind   Kind
	Op     Op
	Offset int64
}

// Notifier receives progress events. The engine never inspects it; it is
// forwarded down the recursion unmodified and invoked by the variants as
// fields complete. A nil notifier is silently ignored.
type Notifier interface {
	Notify(Event)
}

// notify is the nil-safe dispatch the variants use.
func notify(nf Notifier, e Event) {
	if nf != nil {
		nf.Notify(e)
	}
}

// LogNotifier traces field events through a zerolog logger at trace level.
type LogNotifier struct {
	Logger zerolog.Logger
}

// NewLogNotifier wraps a logger in a notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (l *LogNotifier) Notify(e Event) {
	l.Logger.Trace().
		Str("field", e.Field).
		Stringer("kind", e.Kind).
		Stringer("op", e.Op).
		Int64("offset", e.Offset).
		Msg("field processed")
}
