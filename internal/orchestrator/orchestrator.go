// Package orchestrator runs the per-turn state machine: resolve the
// session, load bounded memory, route with the supervisor, invoke the
// responder, persist the turn. Every failure degrades to a reply; a turn
// never surfaces an infrastructure error to the user.
package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"fitcoach/internal/config"
	"fitcoach/internal/memory"
	"fitcoach/internal/responder"
	"fitcoach/internal/router"
	"fitcoach/internal/session"
	"fitcoach/internal/store"
)

// turn states. A turn always starts at stateStart and ends at stateFinish.
type state int

const (
	stateStart state = iota
	stateSupervisor
	stateRespond
	stateWelcome
	stateFinish
)

// apologyText is the degraded reply when a responder failed.
const apologyText = `Lo siento, ahora mismo no puedo responderte. Inténtalo de nuevo en un momento.`

// closingText is the reply for a forced finish: hop cap exhausted or an
// empty turn.
const closingText = `Aquí lo dejamos por ahora. Escríbeme cuando quieras seguir con tu entrenamiento o tu alimentación.`

// Orchestrator drives conversation turns. Safe for concurrent use across
// subjects; turns for one session serialize on its memory manager's queue.
type Orchestrator struct {
	cfg      *config.Config
	st       store.Store
	sessions *session.Manager
	sup      *router.Supervisor
	registry *responder.Registry
	logger   *zap.Logger

	mu       sync.Mutex
	managers map[string]memory.Manager
}

// New wires an orchestrator. st may be nil; memory then runs ephemeral.
func New(cfg *config.Config, st store.Store, sessions *session.Manager, sup *router.Supervisor, registry *responder.Registry, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		st:       st,
		sessions: sessions,
		sup:      sup,
		registry: registry,
		logger:   logger,
		managers: make(map[string]memory.Manager),
	}
}

// HandleTurn processes one inbound message and returns the reply. The
// error return covers context cancellation only; every other failure is
// absorbed into a degraded reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, subjectID, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sessionID := o.resolveSession(ctx, subjectID)
	mgr := o.managerFor(ctx, sessionID, subjectID)
	memCtx := mgr.Load(ctx)

	reply, persist := o.run(ctx, text, memCtx)

	if persist {
		mgr.Save(ctx, text, reply)
	}
	return reply, nil
}

// run executes the state machine for one turn. The second return reports
// whether the exchange should be remembered: apologies and greeting
// boilerplate are not worth a memory slot.
func (o *Orchestrator) run(ctx context.Context, text string, memCtx memory.BoundedContext) (string, bool) {
	st := stateStart
	hops := 0
	var target string

	for {
		switch st {
		case stateStart:
			st = stateSupervisor

		case stateSupervisor:
			verdict := o.sup.Decide(ctx, text, hops)
			hops++
			o.logger.Debug("routing verdict",
				zap.String("target", verdict.Target),
				zap.String("source", verdict.Source),
				zap.Int("hop", hops))

			switch verdict.Target {
			case router.TargetFinish:
				st = stateFinish
			case router.TargetWelcome:
				target = verdict.Target
				st = stateWelcome
			default:
				target = verdict.Target
				st = stateRespond
			}

		case stateWelcome, stateRespond:
			r, ok := o.registry.Lookup(target)
			if !ok {
				// Unroutable target; ask the supervisor again. The hop
				// cap turns a persistent mismatch into a finish.
				o.logger.Warn("no responder for target, re-routing",
					zap.String("target", target))
				st = stateSupervisor
				continue
			}
			reply, err := r.Respond(ctx, text, memCtx)
			if err != nil {
				o.logger.Warn("responder failed",
					zap.String("target", target),
					zap.Error(err))
				return apologyText, false
			}
			remember := st == stateRespond
			return reply, remember

		case stateFinish:
			return closingText, false
		}
	}
}

// resolveSession returns the active session ID for the subject, or "" for
// anonymous turns and for any session-layer failure.
func (o *Orchestrator) resolveSession(ctx context.Context, subjectID string) string {
	if subjectID == "" || o.sessions == nil {
		return ""
	}
	sess, err := o.sessions.GetOrCreateActive(ctx, subjectID)
	if err != nil {
		o.logger.Warn("session resolution failed, running ephemeral",
			zap.String("subject", subjectID),
			zap.Error(err))
		return ""
	}
	o.sessions.Touch(ctx, sess.ID)
	return sess.ID
}

// managerFor returns the memory manager for a session, creating and
// caching it on first use. Anonymous turns share one ephemeral manager
// keyed by the empty session ID.
func (o *Orchestrator) managerFor(ctx context.Context, sessionID, subjectID string) memory.Manager {
	o.mu.Lock()
	defer o.mu.Unlock()
	if mgr, ok := o.managers[sessionID]; ok {
		return mgr
	}
	effectiveSubject := subjectID
	if sessionID == "" {
		effectiveSubject = ""
	}
	mgr := memory.NewManager(ctx, o.st, sessionID, effectiveSubject, o.cfg.Memory, o.logger)
	o.managers[sessionID] = mgr
	return mgr
}

// EndSession clears a subject's conversation: memory wiped, session
// deactivated, manager evicted.
func (o *Orchestrator) EndSession(ctx context.Context, subjectID string) error {
	if subjectID == "" || o.sessions == nil {
		return nil
	}
	sess, err := o.sessions.GetOrCreateActive(ctx, subjectID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	mgr, ok := o.managers[sess.ID]
	delete(o.managers, sess.ID)
	o.mu.Unlock()

	if ok {
		if err := mgr.Clear(ctx); err != nil {
			return err
		}
		return mgr.Close()
	}
	return o.sessions.End(ctx, sess.ID)
}

// MemoryStats reports the projection stats of every cached manager.
func (o *Orchestrator) MemoryStats() map[string]memory.Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]memory.Stats, len(o.managers))
	for id, mgr := range o.managers {
		out[id] = mgr.Stats()
	}
	return out
}

// Close releases every cached memory manager, draining pending writes.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	managers := o.managers
	o.managers = make(map[string]memory.Manager)
	o.mu.Unlock()

	var firstErr error
	for id, mgr := range managers {
		if err := mgr.Close(); err != nil && firstErr == nil {
			o.logger.Warn("closing memory manager", zap.String("session", id), zap.Error(err))
			firstErr = err
		}
	}
	return firstErr
}
