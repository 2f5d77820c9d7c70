package wire

import (
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
)

// Event names sent to the peripheral.
const (
	EventTick           = "tick"
	EventReset          = "reset"
	EventRunnerFinished = "runnerFinished"
)

// Message is an outbound event envelope. A nil Arguments slice is left out
// of the encoding entirely; an empty one is written as [].
type Message struct {
	Event     string `json:"event"`
	Arguments []any  `json:"arguments,omitzero"`
}

// Tick reports the new root time in seconds.
func Tick(raw int) Message {
	return Message{Event: EventTick, Arguments: []any{raw}}
}

// Reset tells the peripheral to clear its display.
func Reset() Message {
	return Message{Event: EventReset}
}

// RunnerFinished reports a non-forfeit completion.
func RunnerFinished() Message {
	return Message{Event: EventRunnerFinished}
}

// Result is a runner result as the peripheral sees it. Timestamp is in
// Unix milliseconds.
type Result struct {
	Raw       int    `json:"raw"`
	Formatted string `json:"formatted"`
	Timestamp int64  `json:"timestamp"`
	Forfeit   bool   `json:"forfeit"`
	Place     int    `json:"place"`
}

// StateChange mirrors a stopwatch state transition. Entering finished
// carries the full results array, empty slots as null.
func StateChange(state stopwatch.State, results [stopwatch.Slots]*stopwatch.RunnerResult) Message {
	args := []any{}
	if state == stopwatch.Finished {
		var out [stopwatch.Slots]*Result
		for i, r := range results {
			if r == nil {
				continue
			}
			out[i] = &Result{
				Raw:       r.Raw,
				Formatted: r.Formatted,
				Timestamp: r.Timestamp.UnixMilli(),
				Forfeit:   r.Forfeit,
				Place:     r.Place,
			}
		}
		args = append(args, out)
	}
	return Message{Event: state.String(), Arguments: args}
}
