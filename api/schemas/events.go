package schemas

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the events flowing from the pipeline to its
// consumers. Progress, report, usage and chunk are the analysis stream kinds;
// status is emitted by the worker layer when a job settles.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventReport   EventKind = "report"
	EventUsage    EventKind = "usage"
	EventChunk    EventKind = "chunk"
	EventStatus   EventKind = "status"
	EventError    EventKind = "error"
)

// Event is one discriminated entry of the pipeline event sequence.
//
// On the wire an event is the ordered 2-tuple [payload, kind].
type Event struct {
	Kind    EventKind
	Payload any
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Payload, string(e.Kind)})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("event is not a 2-tuple: %w", err)
	}
	var kind string
	if err := json.Unmarshal(tuple[1], &kind); err != nil {
		return fmt.Errorf("event kind is not a string: %w", err)
	}
	var payload any
	if err := json.Unmarshal(tuple[0], &payload); err != nil {
		return err
	}
	e.Kind = EventKind(kind)
	e.Payload = payload
	return nil
}
