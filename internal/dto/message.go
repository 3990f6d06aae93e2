package dto

// RawMessage is one transport message before classification.
type RawMessage struct {
	// ID identifies the message in logs (topic/partition@offset).
	ID         string
	Key        []byte
	Body       []byte
	Attributes map[string]string

	// ReceiveCount is how many times the message has been delivered, starting at 1.
	ReceiveCount int

	// Position in the source log, used to commit.
	Topic     string
	Partition int
	Offset    int64
}

func (m RawMessage) Attr(name string) string {
	if m.Attributes == nil {
		return ""
	}
	return m.Attributes[name]
}

type Outcome int

const (
	// Done: applied, or nothing to do.
	Done Outcome = iota
	// Dropped: malformed input, never retried.
	Dropped
	// Escalated: handed to the compensating path through DeadLetters.
	Escalated
	// Retry: transient failure, redeliver.
	Retry
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Dropped:
		return "dropped"
	case Escalated:
		return "escalated"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// Result is the per-message verdict of a batch.
type Result struct {
	Outcome     Outcome
	Err         error
	DeadLetters []RawMessage
}

// Header names the transport attaches to messages.
const (
	AttrReceiveCount     = "x-receive-count"
	AttrDeadLetterReason = "x-dead-letter-reason"
	AttrSourceTopic      = "x-source-topic"
	AttrSourceID         = "x-source-id"
	AttrEventID          = "event_id"
)
