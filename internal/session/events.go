package session

// EventKind classifies events on the session stream.
type EventKind int

const (
	// EventState signals that the job store or artifact handles changed and
	// consumers should re-render from current state.
	EventState EventKind = iota
	// EventInfo carries a short human-readable status message.
	EventInfo
	// EventError carries a user-facing failure message. State is retained;
	// the message is transient.
	EventError
)

// Event is one entry on the session's event stream.
type Event struct {
	Kind EventKind
	Text string
}

func (s *Session) emit(event Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	select {
	case s.events <- event:
	default:
		// A slow consumer drops events rather than blocking the engine;
		// every EventState is recomputable from current store state.
	}
}

func (s *Session) emitState()         { s.emit(Event{Kind: EventState}) }
func (s *Session) emitInfo(t string)  { s.emit(Event{Kind: EventInfo, Text: t}) }
func (s *Session) emitError(t string) { s.emit(Event{Kind: EventError, Text: t}) }
