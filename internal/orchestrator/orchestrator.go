// Package orchestrator drives the end-to-end scheduling request (spec
// section 4.7): Analyzer, then Builder, then the streaming client, then
// persistence of the resulting Schedule, surfacing diagnostics for any
// unplaced pair along the way.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/fieldz/scheduler-engine/internal/analyzer"
	"github.com/fieldz/scheduler-engine/internal/builder"
	"github.com/fieldz/scheduler-engine/internal/model"
	"github.com/fieldz/scheduler-engine/internal/store"
	schederrors "github.com/fieldz/scheduler-engine/pkg/errors"
	"github.com/fieldz/scheduler-engine/pkg/logging"
	"github.com/fieldz/scheduler-engine/pkg/streaming"
)

// StreamClient is the orchestrator's view of one open Schedule stream;
// *streaming.Conn satisfies it on the wire, and tests substitute a fake.
type StreamClient interface {
	WriteInput(in model.ScheduledInput) error
	ReadMessage() (streaming.StreamMessage, error)
	Close() error
}

var _ StreamClient = (*streaming.Conn)(nil)

// Dialer opens a new StreamClient against the configured streaming
// service, attaching authentication (spec section 4.6).
type Dialer interface {
	Dial(ctx context.Context) (StreamClient, error)
}

// Request bundles everything one orchestrator run needs beyond what the
// entity store already holds.
type Request struct {
	AnalyzerConfig analyzer.Config
	Targets        []model.Target
	Phases         []model.SeasonPhase
	ScheduleName   string
}

// Diagnostic surfaces a non-fatal per-input warning from the Engine back
// to the caller (spec section 4.7 step 5).
type Diagnostic struct {
	UniqueID uint32
	Count    int
}

// Result is what a successful Run produces.
type Result struct {
	Report      analyzer.PreScheduleReport
	Schedule    model.Schedule
	Diagnostics []Diagnostic
}

// Orchestrator wires the Analyzer, Builder, streaming Dialer, and the
// EntityStore's Schedule persistence together (spec section 4.7).
type Orchestrator struct {
	entityStore store.EntityStore
	dialer      Dialer
	logger      logging.Logger
}

// New builds an Orchestrator over the given EntityStore and stream
// Dialer. A nil logger installs a no-op logger.
func New(entityStore store.EntityStore, dialer Dialer, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Orchestrator{entityStore: entityStore, dialer: dialer, logger: logger}
}

// Run executes the end-to-end request: analyze, build, stream, persist.
// Per spec section 4.7 step 1, any analyzer error condition (duplicate,
// impossible, or undersupplied target) aborts before a stream is ever
// opened; an empty target is silently excluded from scheduling rather
// than treated as an error (spec section 4.3 point 5).
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	snapshot, err := o.loadSnapshot(ctx, req.Targets)
	if err != nil {
		return nil, schederrors.Internal(err)
	}

	report := analyzer.Analyze(req.AnalyzerConfig, snapshot.analyzerInput())
	if err := abortCondition(report); err != nil {
		return nil, err
	}

	schedulable := excludeEmptyTargets(req.Targets, report.EmptyTargets)
	if len(schedulable) == 0 {
		return &Result{Report: report}, nil
	}

	ids := builder.NewIDAllocator()
	payloads := builder.Build(snapshot.builderInput(), schedulable, req.AnalyzerConfig.Interregional, req.AnalyzerConfig.MatchesToPlay, req.Phases, ids)
	if len(payloads) == 0 {
		return &Result{Report: report}, nil
	}

	conn, err := o.dialer.Dial(ctx)
	if err != nil {
		return nil, schederrors.WrapError(err)
	}
	defer conn.Close()

	outputs, diagnostics, err := o.runStream(conn, payloads)
	if err != nil {
		return nil, err
	}

	reservations, err := translateReservations(outputs, ids)
	if err != nil {
		return nil, err
	}

	sched, err := o.entityStore.CreateSchedule(ctx, req.ScheduleName, reservations)
	if err != nil {
		return nil, err
	}

	for _, d := range diagnostics {
		o.logger.Warn("unplaced pairs surfaced to caller", "unique_id", d.UniqueID, "count", d.Count)
	}

	return &Result{Report: report, Schedule: sched, Diagnostics: diagnostics}, nil
}

// runStream sends every payload then reads messages until one output (or
// a fatal error) has been received per payload; diagnostics accumulate
// alongside without counting toward completion.
func (o *Orchestrator) runStream(conn StreamClient, payloads []model.ScheduledInput) (map[uint32]model.ScheduledOutput, []Diagnostic, error) {
	for _, p := range payloads {
		if err := conn.WriteInput(p); err != nil {
			return nil, nil, schederrors.WrapError(err)
		}
	}

	outputs := make(map[uint32]model.ScheduledOutput, len(payloads))
	var diagnostics []Diagnostic
	var errMsgs []error

	for len(outputs)+len(errMsgs) < len(payloads) {
		msg, err := conn.ReadMessage()
		if err != nil {
			return nil, nil, schederrors.WrapError(err)
		}

		switch msg.Type {
		case streaming.MessageTypeOutput:
			if msg.Output != nil {
				outputs[msg.Output.UniqueID] = *msg.Output
			}
		case streaming.MessageTypeDiagnostic:
			if msg.Diagnostic != nil {
				diagnostics = append(diagnostics, Diagnostic{UniqueID: msg.Diagnostic.UniqueID, Count: msg.Diagnostic.Count})
			}
		case streaming.MessageTypeError:
			errMsgs = append(errMsgs, fmt.Errorf("%s", msg.Error))
		case streaming.MessageTypeClosed:
			return outputs, diagnostics, errorsOrNil(errMsgs)
		}
	}

	return outputs, diagnostics, errorsOrNil(errMsgs)
}

// translateReservations flattens every output's WireReservations back
// into model.Reservation, resolving field ids through the allocator's
// reverse table.
func translateReservations(outputs map[uint32]model.ScheduledOutput, ids *builder.IDAllocator) ([]model.Reservation, error) {
	reverseFields := make(map[uint32]string)
	for key, id := range ids.Entries() {
		const prefix = "field:"
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			reverseFields[id] = key[len(prefix):]
		}
	}

	reverseTeams := make(map[uint32]string)
	for key, id := range ids.Entries() {
		const prefix = "team:"
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			reverseTeams[id] = key[len(prefix):]
		}
	}

	uniqueIDs := make([]uint32, 0, len(outputs))
	for id := range outputs {
		uniqueIDs = append(uniqueIDs, id)
	}
	sort.Slice(uniqueIDs, func(i, j int) bool { return uniqueIDs[i] < uniqueIDs[j] })

	var out []model.Reservation
	for _, uid := range uniqueIDs {
		for _, r := range outputs[uid].TimeSlots {
			fieldID, ok := reverseFields[r.Field.UniqueID]
			if !ok {
				return nil, schederrors.Internal(fmt.Errorf("unknown wire field id %d in output", r.Field.UniqueID))
			}
			out = append(out, model.Reservation{
				FieldID: fieldID,
				Start:   msToTime(r.Start),
				End:     msToTime(r.End),
				Booking: model.Booking{
					HomeTeamID: reverseTeams[r.Booking.HomeTeam.UniqueID],
					AwayTeamID: reverseTeams[r.Booking.AwayTeam.UniqueID],
				},
			})
		}
	}
	return out, nil
}

// abortCondition reports the first blocking analyzer finding, or nil if
// the report has none (spec section 4.7 step 1 / section 7).
func abortCondition(report analyzer.PreScheduleReport) error {
	if len(report.TargetDuplicates) > 0 {
		return schederrors.DuplicateTarget(report.TargetHasDuplicates)
	}
	if len(report.ImpossibleTargets) > 0 {
		return schederrors.ImpossibleTarget(report.ImpossibleTargets[0])
	}
	for _, tmc := range report.TargetMatchCount {
		if !tmc.Supplied.Covers(tmc.Required) {
			region := ""
			for r := range tmc.Required.ByRegion {
				region = r
				break
			}
			return schederrors.UndersuppliedTarget(tmc.Target.ID, tmc.Required.Sum(), tmc.Supplied.Sum(), region)
		}
	}
	return nil
}

// errorsOrNil aggregates per-input MalformedInput messages surfaced over
// the stream into one error, using go-multierror the way this module
// aggregates other soft-error findings (spec section 7: MalformedInput
// aborts that one input but keeps the stream open; the orchestrator
// still must not persist a schedule built from an incomplete run).
func errorsOrNil(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	result := &multierror.Error{Errors: errs}
	return result.ErrorOrNil()
}

func excludeEmptyTargets(targets []model.Target, emptyIDs []string) []model.Target {
	empty := make(map[string]bool, len(emptyIDs))
	for _, id := range emptyIDs {
		empty[id] = true
	}
	out := make([]model.Target, 0, len(targets))
	for _, t := range targets {
		if !empty[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
