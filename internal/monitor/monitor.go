// Package monitor triggers server-side processing of the uploaded missions
// and follows its progress through the bus events until the server reports
// an empty queue.
//
// Progress lives in a State value that is only changed by State.Apply. A
// single consumer loop reads the event channel, applies each event and hands
// the new state to a Reporter, so no state is shared between goroutines.
package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/mission-uploader/internal/bus"
	"github.com/fpang/mission-uploader/internal/mission"
	"github.com/fpang/mission-uploader/internal/server"
)

// ErrEventStreamClosed is returned when the event channel closes before the
// queue-empty event arrives.
var ErrEventStreamClosed = errors.New("processing event stream closed")

// ProcessingTriggerError reports that the batch could not be started.
type ProcessingTriggerError struct {
	Body string
	Err  error
}

func (e *ProcessingTriggerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("processing failed - %v. %s", e.Err, e.Body)
	}
	return fmt.Sprintf("processing failed - %v", e.Err)
}

func (e *ProcessingTriggerError) Unwrap() error { return e.Err }

// Trigger starts batch processing and returns the number of scheduled tasks.
type Trigger interface {
	TriggerProcessing(ctx context.Context) (int, error)
}

// EventSource hands out the processing event stream. The returned function
// releases it. Err explains a stream that closed early, when known.
type EventSource interface {
	Listen() (<-chan bus.Event, func())
	Err() error
}

// Reporter renders progress. All calls come from the consumer loop.
type Reporter interface {
	Start(s State)
	Update(s State)
	Finish(s State)
}

// Monitor drives one processing batch.
type Monitor struct {
	trigger  Trigger
	events   EventSource
	reporter Reporter
}

// New creates a Monitor. reporter may be nil.
func New(trigger Trigger, events EventSource, reporter Reporter) *Monitor {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Monitor{trigger: trigger, events: events, reporter: reporter}
}

// ProcessAll triggers processing for everything uploaded and blocks until
// the queue-empty event arrives, returning the final state. The listener is
// registered before the trigger request is sent, so events published while
// it is in flight are kept. On a trigger failure they are discarded.
func (m *Monitor) ProcessAll(ctx context.Context, missions []mission.Mission) (State, error) {
	events, stop := m.events.Listen()
	defer stop()

	tasks, err := m.trigger.TriggerProcessing(ctx)
	if err != nil {
		return State{}, &ProcessingTriggerError{Body: server.ResponseBody(err), Err: err}
	}

	log.Info().
		Int("missions", len(missions)).
		Int("tasks", tasks).
		Msg("Processing tasks scheduled at server")

	state := NewState(tasks)
	m.reporter.Start(state)
	return m.consume(ctx, events, state)
}

// consume applies events until the terminal one.
func (m *Monitor) consume(ctx context.Context, events <-chan bus.Event, state State) (State, error) {
	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if err := m.events.Err(); err != nil {
					return state, fmt.Errorf("%w: %w", ErrEventStreamClosed, err)
				}
				return state, ErrEventStreamClosed
			}
			next := state.Apply(ev)
			if next == state && !ev.QueueEmpty {
				continue
			}
			state = next
			if state.Done {
				m.reporter.Finish(state)
				log.Info().
					Int("processedSegments", state.ProcessedSegments).
					Int("ingestedSegments", state.IngestedSegments).
					Int("completedTasks", state.CompletedTasks).
					Msg("Processing queue empty")
				return state, nil
			}
			log.Trace().Str("type", ev.Type).Str("topic", ev.Topic).Msg("Processing event applied")
			m.reporter.Update(state)
		}
	}
}

type nopReporter struct{}

func (nopReporter) Start(State) {}
func (nopReporter) Update(State) {}
func (nopReporter) Finish(State) {}
