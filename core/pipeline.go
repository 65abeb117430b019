package core

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/handover-engine/internal/logging"
	"github.com/signalsfoundry/handover-engine/internal/observability"
	"github.com/signalsfoundry/handover-engine/model"
)

// maxReportedReasons caps the failure reasons carried by a batch summary;
// the full per-satellite detail is in the outcomes.
const maxReportedReasons = 5

// BatchInput is one orchestration tick's worth of upstream data: the
// ordered position series of every candidate satellite plus the identity
// of the currently serving one.
type BatchInput struct {
	Timestamp time.Time
	ServingID string
	Series    map[string][]model.PositionSample
}

// SatelliteOutcome is the per-satellite product of the parallel phase.
type SatelliteOutcome struct {
	SatelliteID   string
	Constellation string
	Feasibility   model.FeasibilityResult
	Signals       []model.SignalSample

	// Err records the stage failure, if any. The satellite was skipped
	// (geometry) or degraded (signal); the batch always continues.
	Err error

	elapsed time.Duration
}

// MeanRSRPDBm averages the outcome's signal series, RSRP floor if empty.
func (o *SatelliteOutcome) MeanRSRPDBm() float64 {
	if len(o.Signals) == 0 {
		return model.RSRPMinDBm
	}
	sum := 0.0
	for _, s := range o.Signals {
		sum += s.RSRPDBm
	}
	return sum / float64(len(o.Signals))
}

// LatestSignal returns the last sample of the series, worst case if empty.
func (o *SatelliteOutcome) LatestSignal() model.SignalSample {
	if len(o.Signals) == 0 {
		return WorstCaseSample(o.SatelliteID, time.Time{})
	}
	return o.Signals[len(o.Signals)-1]
}

// BatchSummary is the always-reported account of a batch run: how many
// satellites were evaluated, how many failed and why (first few reasons),
// never silent loss.
type BatchSummary struct {
	Satellites     int
	Feasible       int
	Failed         int
	FailureReasons []string
	EventsEmitted  int
	Cancelled      bool
}

// BatchResult is everything one tick produced, handed to the downstream
// persistence collaborator.
type BatchResult struct {
	BatchID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   map[string]*SatelliteOutcome
	Events     []model.MeasurementEvent
	Decision   model.HandoverDecision
	Summary    BatchSummary
}

// Pipeline wires the evaluation stages into the per-tick batch run. The
// per-satellite phase (geometry -> feasibility -> signal quality) fans out
// over a worker pool sharing one immutable config snapshot; event
// detection, candidate management and the decision are aggregated by the
// single orchestrator goroutine because they are history-dependent.
type Pipeline struct {
	cfg        *Config
	log        logging.Logger
	metrics    *observability.BatchCollector
	geometry   *GeometryEvaluator
	filter     *LinkFeasibilityFilter
	signal     *SignalQualityEngine
	detector   *MeasurementEventDetector
	candidates *HandoverCandidateManager
	decider    *HandoverDecisionEngine
	thresholds *DynamicThresholdController

	// pairMark tracks, per (serving, neighbor) pair, the last sample
	// timestamp fed to the detector. Successive ticks may evaluate
	// overlapping horizons; only samples past the mark advance the
	// history-dependent machines.
	pairMark map[[2]string]time.Time

	workers int
}

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger attaches a structured logger; default is noop.
func WithLogger(l logging.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics attaches a Prometheus collector; default is none.
func WithMetrics(c *observability.BatchCollector) PipelineOption {
	return func(p *Pipeline) { p.metrics = c }
}

// WithWorkers overrides the worker-pool size; default is GOMAXPROCS.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPipeline validates the configuration (the only fatal path) and builds
// the full stage chain for a fixed observer.
func NewPipeline(cfg *Config, observer model.Observer, opts ...PipelineOption) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:        cfg,
		log:        logging.Noop(),
		geometry:   NewGeometryEvaluator(observer),
		filter:     NewLinkFeasibilityFilter(cfg),
		signal:     NewSignalQualityEngine(cfg),
		detector:   NewMeasurementEventDetector(cfg),
		candidates: NewHandoverCandidateManager(cfg),
		decider:    NewHandoverDecisionEngine(cfg),
		thresholds: NewDynamicThresholdController(cfg),
		pairMark:   make(map[[2]string]time.Time),
		workers:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Thresholds exposes the dynamic threshold controller, mainly so callers
// can inspect the published snapshot.
func (p *Pipeline) Thresholds() *DynamicThresholdController { return p.thresholds }

// RunTick executes one full orchestration tick. Cancellation is honored at
// satellite boundaries only: a series already being evaluated finishes,
// because detector state cannot be resumed mid-series.
func (p *Pipeline) RunTick(ctx context.Context, in BatchInput) *BatchResult {
	ctx, log := logging.WithBatchLogger(ctx, p.log)
	start := time.Now()

	ctx, span := observability.Tracer().Start(ctx, "pipeline.RunTick")
	span.SetAttributes(
		attribute.Int("satellites", len(in.Series)),
		attribute.String("serving_id", in.ServingID),
	)
	defer span.End()

	snapshot := p.thresholds.Current()
	outcomes, cancelled := p.evaluateSatellites(ctx, in, snapshot)

	result := &BatchResult{
		BatchID:   logging.BatchIDFromContext(ctx),
		StartedAt: start,
		Outcomes:  outcomes,
	}
	result.Summary.Satellites = len(outcomes)
	result.Summary.Cancelled = cancelled

	visible := make(map[string]int)
	for _, o := range outcomes {
		p.thresholds.Observe(o.Constellation, o.Feasibility.IsFeasible, o.MeanRSRPDBm())
		p.metrics.ObserveSatellite(o.Constellation, o.Feasibility.IsFeasible, o.elapsed)
		if o.Feasibility.IsFeasible {
			result.Summary.Feasible++
			visible[o.Constellation]++
		}
		if o.Err != nil {
			result.Summary.Failed++
			if len(result.Summary.FailureReasons) < maxReportedReasons {
				result.Summary.FailureReasons = append(result.Summary.FailureReasons, o.Err.Error())
			}
		}
	}
	for constellation, n := range visible {
		p.metrics.SetVisible(constellation, n)
	}

	events := p.detectEvents(ctx, log, in, outcomes)
	result.Events = events
	result.Summary.EventsEmitted = len(events)

	result.Decision = p.decide(in, outcomes, events)
	p.metrics.ObserveDecision(string(result.Decision.Action))
	if result.Decision.Action == model.ActionHandoverTo {
		p.retireServing(in.ServingID)
	}

	if p.thresholds.Tick(in.Timestamp) {
		log.Info(ctx, "threshold snapshot published",
			logging.Int("epoch", p.thresholds.Current().Epoch))
	}

	result.FinishedAt = time.Now()
	p.metrics.ObserveBatch(result.FinishedAt.Sub(start))

	log.Info(ctx, "batch complete",
		logging.Int("satellites", result.Summary.Satellites),
		logging.Int("feasible", result.Summary.Feasible),
		logging.Int("failed", result.Summary.Failed),
		logging.Int("events", result.Summary.EventsEmitted),
		logging.String("action", string(result.Decision.Action)),
	)
	return result
}

// evaluateSatellites fans the independent per-satellite pipelines out over
// the worker pool. Workers pull satellite IDs from a channel and stop
// pulling once the context is done, which is exactly the satellite-boundary
// checkpoint the batch guarantees.
func (p *Pipeline) evaluateSatellites(ctx context.Context, in BatchInput, snapshot *ThresholdSnapshot) (map[string]*SatelliteOutcome, bool) {
	ids := make([]string, 0, len(in.Series))
	for id := range in.Series {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	jobs := make(chan string)
	results := make(chan *SatelliteOutcome)

	workers := p.workers
	if workers > len(ids) {
		workers = len(ids)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				results <- p.evaluateOne(id, in.Series[id], snapshot)
			}
		}()
	}

	cancelled := false
	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				cancelled = true
				return
			case jobs <- id:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make(map[string]*SatelliteOutcome, len(ids))
	for o := range results {
		outcomes[o.SatelliteID] = o
	}
	return outcomes, cancelled
}

// evaluateOne runs geometry -> feasibility -> signal quality for a single
// satellite. Every failure is local: a GeometryError skips the satellite,
// a SignalQualityError degrades it, and the outcome records the reason.
func (p *Pipeline) evaluateOne(id string, series []model.PositionSample, snapshot *ThresholdSnapshot) *SatelliteOutcome {
	start := time.Now()
	out := &SatelliteOutcome{SatelliteID: id}
	if len(series) > 0 {
		out.Constellation = series[0].Constellation
	}

	topo, err := p.geometry.Evaluate(id, series)
	if err != nil {
		out.Err = err
		out.Feasibility = infeasible(id, out.Constellation, err.Error())
		p.metrics.ObserveFailure("geometry")
		out.elapsed = time.Since(start)
		return out
	}

	out.Feasibility = p.filter.Evaluate(id, out.Constellation, topo, snapshot)

	signals, sigErr := p.signal.ComputeSeries(id, topo)
	out.Signals = signals
	if sigErr != nil {
		out.Err = sigErr
		p.metrics.ObserveFailure("signal")
	}

	// The snapshot's second axis: a pass whose mean RSRP sits under the
	// constellation's recalibrated floor does not count as visible.
	if out.Feasibility.IsFeasible && snapshot != nil {
		if floor, ok := snapshot.RSRPFloorDBm(out.Constellation); ok {
			if mean := out.MeanRSRPDBm(); mean < floor {
				out.Feasibility.IsFeasible = false
				out.Feasibility.Reason = fmt.Sprintf(
					"mean RSRP %.1f dBm below recalibrated floor %.1f dBm", mean, floor)
			}
		}
	}

	out.elapsed = time.Since(start)
	return out
}

// detectEvents runs the pairwise state machines for the serving satellite
// against every neighbour, strictly in timestamp order per pair. Samples
// at or before a pair's high-water mark are re-deliveries from an
// overlapping horizon and are skipped, so a sustained condition confirms
// exactly once no matter how the caller slices its ticks.
func (p *Pipeline) detectEvents(ctx context.Context, log logging.Logger, in BatchInput, outcomes map[string]*SatelliteOutcome) []model.MeasurementEvent {
	serving, ok := outcomes[in.ServingID]
	if !ok {
		return nil
	}

	neighborIDs := make([]string, 0, len(outcomes))
	for id := range outcomes {
		if id != in.ServingID {
			neighborIDs = append(neighborIDs, id)
		}
	}
	sort.Strings(neighborIDs)

	servingByTime := make(map[time.Time]model.SignalSample, len(serving.Signals))
	for _, s := range serving.Signals {
		servingByTime[s.Timestamp] = s
	}

	var events []model.MeasurementEvent
	for _, nid := range neighborIDs {
		neighbor := outcomes[nid]
		pair := [2]string{in.ServingID, nid}
		mark := p.pairMark[pair]
		for _, ns := range neighbor.Signals {
			if !ns.Timestamp.After(mark) {
				// Overlapping horizon: the pair machines have already
				// consumed this sample on a previous tick.
				continue
			}
			ss, aligned := servingByTime[ns.Timestamp]
			if !aligned {
				continue
			}
			emitted, err := p.detector.Process(PairMeasurement{
				Timestamp:       ns.Timestamp,
				ServingID:       in.ServingID,
				NeighborID:      nid,
				ServingRSRPDBm:  ss.RSRPDBm,
				NeighborRSRPDBm: ns.RSRPDBm,
				ServingRangeKm:  ss.RangeKm,
				ServingElevDeg:  ss.ElevationDeg,
			})
			if err != nil {
				log.Warn(ctx, "event dropped, pair reset",
					logging.Pair(in.ServingID, nid), logging.Err(err))
				p.metrics.ObserveFailure("events")
				break
			}
			mark = ns.Timestamp
			events = append(events, emitted...)
		}
		p.pairMark[pair] = mark

		// Fold this neighbour's tick into the candidate list.
		var pairEvents []model.MeasurementEvent
		for _, ev := range events {
			if ev.NeighborID == nid {
				pairEvents = append(pairEvents, ev)
			}
		}
		p.candidates.Observe(in.ServingID, nid, neighbor.LatestSignal(),
			neighbor.Feasibility.QualityGrade, pairEvents, in.Timestamp)
	}

	for _, ev := range events {
		p.metrics.ObserveEvent(string(ev.Type))
	}
	return events
}

// retireServing drops all per-pair state keyed by a satellite that just
// stopped serving. Its candidate bucket, detector machines and high-water
// marks are meaningless for the new serving satellite, and would otherwise
// accumulate across every handover of a long run.
func (p *Pipeline) retireServing(servingID string) {
	p.candidates.Retire(servingID)
	for pair := range p.pairMark {
		if pair[0] == servingID {
			p.detector.ResetPair(pair[0], pair[1])
			delete(p.pairMark, pair)
		}
	}
}

// decide assembles the decision input from this tick's outcomes.
func (p *Pipeline) decide(in BatchInput, outcomes map[string]*SatelliteOutcome, events []model.MeasurementEvent) model.HandoverDecision {
	neighbors := make(map[string]NeighborState, len(outcomes))
	for id, o := range outcomes {
		if id == in.ServingID {
			continue
		}
		neighbors[id] = NeighborState{
			ID:       id,
			Feasible: o.Feasibility.IsFeasible,
			Grade:    o.Feasibility.QualityGrade,
			Signal:   o.LatestSignal(),
		}
	}

	cands := p.candidates.Candidates(in.ServingID, in.Timestamp)
	p.metrics.SetActiveCandidates(len(cands))

	input := DecisionInput{
		Timestamp:  in.Timestamp,
		ServingID:  in.ServingID,
		Neighbors:  neighbors,
		Candidates: cands,
		Events:     events,
	}
	if serving, ok := outcomes[in.ServingID]; ok {
		input.ServingFeasible = serving.Feasibility.IsFeasible
		input.ServingGrade = serving.Feasibility.QualityGrade
		input.ServingSignal = serving.LatestSignal()
	}
	return p.decider.Decide(input)
}
