package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Core Loop - Reducer-driven session brain
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + effects + broadcasts.
//   - This loop is the only writer of AppState and the only place effects are
//     dispatched (via the Runner).
//   - Engine callbacks and async completions are fed in as actions through the
//     same channel as user actions; nothing mutates state in place.
//   - Explicit action/effect queues; no nested or re-entrant reduction.
//
// The loop also owns the toast sweep: a low-frequency ticker that injects a
// ClearToastIfExpired action, but only while a toast is present. A one-shot
// timer keyed to the toast's expiry would be marginally cheaper; the fixed
// sweep is simple and the state involved is tiny.
// ============================================================================

// runCore is the main loop that:
//   - Receives Actions from all sources (user, IPC, WS, engine, runner)
//   - Reduces actions into (state, effects, broadcasts)
//   - Executes effects via the runner and fans broadcasts out to the hub
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the actions channel is closed
func runCore(
	ctx context.Context,
	actions <-chan Action,
	runner *Runner,
	cfg ReducerConfig,
	state *AppState,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if state == nil {
		state = NewAppState()
	}

	sweep := time.NewTicker(toastSweepInterval)
	defer sweep.Stop()

	// Explicit queues:
	// - actionQueue holds actions awaiting reduction
	// - effectQueue holds effects awaiting execution
	var actionQueue []Action
	var effectQueue []Effect

	enqueueAction := func(a Action) {
		actionQueue = append(actionQueue, a)
	}
	enqueueEffects := func(effects []Effect) {
		if len(effects) == 0 {
			return
		}
		effectQueue = append(effectQueue, effects...)
	}
	publish := func(bcasts []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bcasts {
			select {
			case broadcasts <- b:
			default:
				logger.Warn("broadcast queue full, dropping state broadcast")
			}
		}
	}

	// Reduce all queued actions, enqueuing any resulting effects.
	flushActions := func() {
		for len(actionQueue) > 0 {
			a := actionQueue[0]
			actionQueue = actionQueue[1:]

			rr := Reduce(state, a, cfg)
			if rr.State != nil {
				state = rr.State
			}
			enqueueEffects(rr.Effects)
			publish(rr.Broadcasts)
		}
	}

	// Execute all queued effects in reducer-emitted order. Async effects
	// (load, peaks) return immediately; their completions arrive later as
	// ordinary actions on the channel.
	flushEffects := func() {
		for len(effectQueue) > 0 {
			e := effectQueue[0]
			effectQueue = effectQueue[1:]
			runner.Run(e)
		}
	}

	// wrap stamps externally-originated actions; engine/runner actions carry
	// their own timestamps.
	wrap := func(a Action) Action {
		switch a.(type) {
		case PositionTicked, PlaybackFinished, ImportSucceeded, ImportFailed,
			ClearToastIfExpired, RequestStateSnapshot, TimedAction:
			return a
		default:
			return TimedAction{Action: a, At: time.Now()}
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("core stopping (context canceled)")
			return

		case a, ok := <-actions:
			if !ok {
				logger.Info("core stopping (actions channel closed)")
				return
			}
			enqueueAction(wrap(a))
			flushActions()
			flushEffects()

		case now := <-sweep.C:
			if state.Toast == nil {
				continue
			}
			enqueueAction(ClearToastIfExpired{Now: now})
			flushActions()
			flushEffects()
		}
	}
}
