package whisperlive

// EventKind discriminates session events delivered to the orchestrator.
type EventKind int

const (
	// EventReady fires once, when the server has allocated a transcription
	// pipeline and audio may flow.
	EventReady EventKind = iota

	// EventLanguageDetected fires at most once, when the server reports a
	// detected language for a session that did not configure one.
	EventLanguageDetected

	// EventServerBusy fires when the server answers with a WAIT status or a
	// terminal error status. Message is intended for user display.
	EventServerBusy

	// EventDisconnected is the terminal event: server DISCONNECT, transport
	// failure, or an explicit Stop.
	EventDisconnected

	// EventDiagnostic reports recovered local problems, such as malformed
	// frames. The session keeps running.
	EventDiagnostic
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventLanguageDetected:
		return "language_detected"
	case EventServerBusy:
		return "server_busy"
	case EventDisconnected:
		return "disconnected"
	case EventDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Event is one status notification from a Session.
type Event struct {
	Kind EventKind

	// Message carries the human-readable detail for busy, disconnect and
	// diagnostic events.
	Message string

	// Backend is set on ready events to the server-reported backend name.
	Backend string

	// Language and LanguageProb are set on language detection events.
	Language     string
	LanguageProb float64
}

// SegmentHandler receives each inbound segment batch verbatim, in arrival
// order. It is invoked from the session's reader goroutine and must not
// block for long.
type SegmentHandler func(segments []Segment)
