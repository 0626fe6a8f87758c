// Package orchestrator drives one ingest run: it streams an event
// feed through internal/feed, reports progress on a bounded channel
// sink, and on a clean finish hands the resulting state to
// internal/validate and internal/scoreboard.
//
// The sink is a bounded, single-producer/single-consumer channel that
// the producer writes to non-blockingly, so a disconnected consumer
// can never stall ingest.
package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"icpc-reveal-engine/internal/feed"
	"icpc-reveal-engine/internal/metrics"
	"icpc-reveal-engine/internal/scoreboard"
	"icpc-reveal-engine/internal/store"
	"icpc-reveal-engine/internal/tracing"
	"icpc-reveal-engine/internal/validate"
)

var tracer = tracing.Tracer("orchestrator")

// EventKind tags the variant of Event flowing through the sink.
type EventKind int

const (
	Started EventKind = iota
	Progress
	LineError
	Finished
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "Started"
	case Progress:
		return "Progress"
	case LineError:
		return "LineError"
	case Finished:
		return "Finished"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Event is one item on the sink channel.
type Event struct {
	Kind EventKind

	// Progress.
	LinesRead uint64

	// LineError.
	LineNo  uint64
	Message string

	// Finished.
	ErrorCount uint64
	State      *store.ContestState
	Warnings   []string
	Result     *scoreboard.Result // nil when ErrorCount > 0

	// Failed.
	FailMessage string
}

// progressEvery controls how often a Progress event is emitted.
const progressEvery = 100

// Run ingests r line by line, sending Event values to sink. sink must
// be a buffered channel the caller owns; Run never blocks on it. A
// full or abandoned sink simply drops the event, and ingest continues
// until ctx is cancelled or the feed is exhausted.
//
// runID identifies this run across logs and traces.
func Run(ctx context.Context, r io.Reader, cfg func(*store.ContestState) error, sink chan<- Event) (runID string) {
	runID = uuid.NewString()
	started := time.Now()
	ingestMetrics := metrics.NewIngestMetrics()

	ctx, span := tracer.Start(ctx, "orchestrator.run")
	span.SetAttributes(attribute.String("run.id", runID))
	defer span.End()

	outcome := "finished"
	defer func() {
		ingestMetrics.ObserveRun(outcome, time.Since(started))
	}()

	log.Printf("orchestrator: run %s started", runID)

	send(ctx, sink, Event{Kind: Started})

	state := store.NewContestState()
	ing := feed.NewIngester(state)

	var linesRead, errorCount uint64
	var warnings []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			log.Printf("orchestrator: run %s cancelled after %d lines", runID, linesRead)
			return runID
		default:
		}

		linesRead++
		warning, err := ing.Apply(scanner.Bytes())
		if err != nil {
			errorCount++
			ingestMetrics.LineErrored()
			send(ctx, sink, Event{Kind: LineError, LineNo: linesRead, Message: err.Error()})
			continue
		}
		ingestMetrics.LineApplied()
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if linesRead%progressEvery == 0 {
			send(ctx, sink, Event{Kind: Progress, LinesRead: linesRead})
		}
	}
	if err := scanner.Err(); err != nil {
		msg := fmt.Sprintf("read feed: %v", err)
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		log.Printf("orchestrator: run %s failed: %s", runID, msg)
		send(ctx, sink, Event{Kind: Failed, FailMessage: msg})
		return runID
	}

	if cfg != nil {
		if err := cfg(state); err != nil {
			msg := fmt.Sprintf("apply config: %v", err)
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, msg)
			log.Printf("orchestrator: run %s failed: %s", runID, msg)
			send(ctx, sink, Event{Kind: Failed, FailMessage: msg})
			return runID
		}
	}

	var result *scoreboard.Result
	if errorCount == 0 {
		if err := validate.Validate(state); err != nil {
			msg := fmt.Sprintf("validate: %v", err)
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, msg)
			log.Printf("orchestrator: run %s failed: %s", runID, msg)
			send(ctx, sink, Event{Kind: Failed, FailMessage: msg})
			return runID
		}
		computeStart := time.Now()
		var err error
		result, err = scoreboard.Compute(state)
		metrics.NewScoreboardMetrics().ObserveCompute(time.Since(computeStart))
		if err != nil {
			msg := fmt.Sprintf("compute scoreboard: %v", err)
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, msg)
			log.Printf("orchestrator: run %s failed: %s", runID, msg)
			send(ctx, sink, Event{Kind: Failed, FailMessage: msg})
			return runID
		}
	}

	span.SetAttributes(
		attribute.Int64("ingest.lines_read", int64(linesRead)),
		attribute.Int64("ingest.error_count", int64(errorCount)),
	)
	log.Printf("orchestrator: run %s finished: %d lines, %d errors", runID, linesRead, errorCount)
	send(ctx, sink, Event{
		Kind:       Finished,
		LinesRead:  linesRead,
		ErrorCount: errorCount,
		State:      state,
		Warnings:   warnings,
		Result:     result,
	})
	return runID
}

// send is a non-blocking channel write: if sink is full or ctx is
// already cancelled, the event is dropped and ingest proceeds.
func send(ctx context.Context, sink chan<- Event, e Event) {
	select {
	case sink <- e:
	case <-ctx.Done():
	default:
	}
}
