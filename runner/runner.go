// Package runner drives a compiled episode one step at a time: invoke
// the step's owner layer (through a circuit breaker, with a timeout),
// validate every candidate packet through the ledger, publish admitted
// packets to the buses, and pick the next step. Grounded on gomind's
// orchestration.SmartExecutor step loop (executor.go's Execute /
// ExecuteStep shape — per-step result accumulation, logging at each
// stage) combined with resilience.CircuitBreaker.ExecuteWithTimeout for
// wrapping the one blocking call in the loop, per spec.md §4.6/§5. Each
// step also opens a core.Telemetry span and records its duration,
// per spec.md §4.6's "emits step telemetry" — wire telemetry.OTelProvider
// (via telemetry.EnableTelemetry) in for real spans/metrics, or leave it
// nil for core.NoOpTelemetry.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/Tpanarchist/omen/bus"
	"github.com/Tpanarchist/omen/core"
	"github.com/Tpanarchist/omen/layer"
	"github.com/Tpanarchist/omen/ledger"
	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/resilience"
	"github.com/Tpanarchist/omen/template"
	"github.com/Tpanarchist/omen/vocab"
)

// DefaultMaxSteps bounds a runaway episode absent an explicit override,
// matching spec.md §4.6's "step count ≤ max_steps" cooperative limit.
const DefaultMaxSteps = 64

// DefaultStepTimeout is used when a step carries no explicit
// time_budget_seconds in its envelope binding.
const DefaultStepTimeout = 30 * time.Second

// StepOutcome records what happened during one iteration of the loop.
type StepOutcome struct {
	StepID    string
	OwnerLayer vocab.LayerID
	Admitted  []packet.Packet
	Dropped   int
	Err       error
	Duration  time.Duration
}

// EpisodeResult is returned once the loop exits, successfully or not.
type EpisodeResult struct {
	CorrelationID string
	Steps         []StepOutcome
	FinalState    vocab.FSMState
	Ledger        ledger.Snapshot
	Err           error
}

// LayerRegistry resolves the Contract that owns a given role. The
// runner never constructs a layer itself — it is handed a populated
// registry by the caller (cmd/omenctl, a test harness, a future
// service entrypoint).
type LayerRegistry map[vocab.LayerID]layer.Contract

// Runner drives one compiled episode to completion.
type Runner struct {
	episode   *template.CompiledEpisode
	ledger    *ledger.Ledger
	layers    LayerRegistry
	buses     *bus.Pair
	breaker   *resilience.CircuitBreaker
	retrier   *resilience.RetryExecutor
	logger    core.Logger
	telemetry core.Telemetry
	maxSteps  int
}

// New builds a Runner for episode, backed by led (already instantiated
// in S0_IDLE per spec.md §4.6 step 1), layers, and buses. A nil logger
// defaults to core.NoOpLogger; a nil telemetry defaults to
// core.NoOpTelemetry (wire a real one, e.g. telemetry.EnableTelemetry's
// *telemetry.OTelProvider, to get step spans); maxSteps <= 0 defaults
// to DefaultMaxSteps.
func New(episode *template.CompiledEpisode, led *ledger.Ledger, layers LayerRegistry, buses *bus.Pair, logger core.Logger, telem core.Telemetry, maxSteps int) (*Runner, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if telem == nil {
		telem = &core.NoOpTelemetry{}
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	breaker, err := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
		Name:             fmt.Sprintf("runner/%s", episode.CorrelationID),
		ErrorThreshold:   0.5,
		VolumeThreshold:  1,
		SleepWindow:      5 * time.Second,
		HalfOpenRequests: 1,
		SuccessThreshold: 0.5,
		WindowSize:       60 * time.Second,
		BucketCount:      6,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("runner.New: %w", err)
	}
	retrier := resilience.NewRetryExecutor(nil)
	retrier.SetLogger(logger)
	return &Runner{
		episode:   episode,
		ledger:    led,
		layers:    layers,
		buses:     buses,
		breaker:   breaker,
		retrier:   retrier,
		logger:    logger,
		telemetry: telem,
		maxSteps:  maxSteps,
	}, nil
}

// Run executes the compiled episode's step loop per spec.md §4.6. It
// is strictly single-threaded for this episode; independent episodes
// are expected to call Run from separate goroutines, each owning its
// own Runner/Ledger pair.
func (r *Runner) Run(ctx context.Context, campaignID string, initial []packet.Packet) EpisodeResult {
	result := EpisodeResult{CorrelationID: r.episode.CorrelationID}

	currentStep := r.episode.EntryStep
	currentPackets := initial
	var lastOutcome vocab.DecisionOutcome
	var hasOutcome bool

	for stepCount := 0; ; stepCount++ {
		if r.episode.Steps.IsExit(currentStep) {
			break
		}
		if stepCount >= r.maxSteps {
			result.Err = core.NewFrameworkError("runner.Run", "step_budget_exceeded", core.ErrBudgetExceeded).WithID(r.episode.CorrelationID)
			break
		}
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			result.Steps = append(result.Steps, StepOutcome{StepID: currentStep, Err: ctx.Err()})
			return r.finish(result)
		default:
		}

		outcome, nextPackets, stepErr := r.runStep(ctx, currentStep, currentPackets, campaignID)
		result.Steps = append(result.Steps, outcome)
		if stepErr != nil {
			result.Err = stepErr
			break
		}

		for _, p := range nextPackets {
			if dp, ok := p.(packet.DecisionPacket); ok {
				lastOutcome = dp.DecisionOutcome
				hasOutcome = true
			}
		}

		next, err := r.episode.Steps.Next(currentStep, lastOutcome, hasOutcome)
		if err != nil {
			result.Err = fmt.Errorf("runner.Run: resolving successor of %q: %w", currentStep, err)
			break
		}
		currentStep = next
		currentPackets = nextPackets
	}

	return r.finish(result)
}

func (r *Runner) finish(result EpisodeResult) EpisodeResult {
	result.FinalState = r.ledger.CurrentState()
	result.Ledger = r.ledger.Snapshot()
	return result
}

// runStep performs one iteration of the loop: invoke the step's owner
// layer through the circuit breaker with a timeout, validate each
// candidate through the ledger, and publish admitted packets to the
// buses.
func (r *Runner) runStep(ctx context.Context, stepID string, received []packet.Packet, campaignID string) (StepOutcome, []packet.Packet, error) {
	start := time.Now()
	ctx, span := r.telemetry.StartSpan(ctx, "runner.step")
	span.SetAttribute("correlation_id", r.episode.CorrelationID)
	span.SetAttribute("step_id", stepID)
	defer func() {
		r.telemetry.RecordMetric("runner.step.duration_ms", float64(time.Since(start).Milliseconds()), map[string]string{
			"step_id": stepID,
		})
		span.End()
	}()

	step, ok := r.episode.Steps.Step(stepID)
	if !ok {
		err := fmt.Errorf("runner.runStep: unknown step %q", stepID)
		span.RecordError(err)
		return StepOutcome{StepID: stepID, Err: err, Duration: time.Since(start)}, nil, err
	}

	contract, ok := r.layers[step.OwnerLayer]
	if !ok {
		err := fmt.Errorf("runner.runStep: no layer registered for role %q (step %q)", step.OwnerLayer, stepID)
		span.RecordError(err)
		return StepOutcome{StepID: stepID, OwnerLayer: step.OwnerLayer, Err: err, Duration: time.Since(start)}, nil, err
	}
	span.SetAttribute("owner_layer", string(step.OwnerLayer))

	timeout := DefaultStepTimeout
	if secs := r.episode.MCPBindings.Budgets.TimeBudgetSeconds; secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	// Retry wraps the breaker-gated, timeout-bounded call: a layer that
	// fails transiently (a flaky tool call, a momentary timeout) gets a
	// few backed-off attempts before the step is declared failed, the
	// same way resilience.RetryExecutor's own doc comment describes.
	var candidates []packet.Packet
	invokeErr := r.retrier.Execute(ctx, fmt.Sprintf("layer_invoke/%s/%s", stepID, step.OwnerLayer), func() error {
		return r.breaker.ExecuteWithTimeout(ctx, timeout, func() error {
			stepCtx := layer.StepContext{
				StepID:       stepID,
				ExpectedKind: step.ExpectedKind,
				CurrentState: r.ledger.CurrentState(),
				ToolsState:   r.ledger.ToolsState(),
			}
			var err error
			candidates, err = contract.Invoke(ctx, received, r.episode.CorrelationID, campaignID, stepCtx)
			return err
		})
	})
	if invokeErr != nil {
		wrapped := core.NewFrameworkError("runner.runStep", "layer_invocation", invokeErr).WithID(r.episode.CorrelationID)
		span.RecordError(wrapped)
		return StepOutcome{StepID: stepID, OwnerLayer: step.OwnerLayer, Err: wrapped, Duration: time.Since(start)}, nil, wrapped
	}

	kept, dropped := layer.Filter(candidates, layer.EmitSetFor(step.OwnerLayer))
	if dropped > 0 {
		r.logger.Warn("runner.layer_contract_violation", map[string]interface{}{
			"step_id": stepID, "owner_layer": string(step.OwnerLayer), "dropped": dropped,
		})
		span.SetAttribute("dropped", dropped)
	}

	admitted := make([]packet.Packet, 0, len(kept))
	for _, p := range kept {
		if err := r.ledger.Apply(p); err != nil {
			wrapped := fmt.Errorf("runner.runStep: step %q: %w", stepID, err)
			span.RecordError(wrapped)
			outcome := StepOutcome{
				StepID: stepID, OwnerLayer: step.OwnerLayer, Admitted: admitted,
				Dropped: dropped, Err: wrapped, Duration: time.Since(start),
			}
			return outcome, admitted, wrapped
		}
		admitted = append(admitted, p)
		r.buses.Route(p, nil)
	}

	return StepOutcome{
		StepID: stepID, OwnerLayer: step.OwnerLayer, Admitted: admitted,
		Dropped: dropped, Duration: time.Since(start),
	}, admitted, nil
}
