package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"mafserver/mafia/game"

	"go.uber.org/zap"
)

// Notifier receives engine-side facts the voice room needs for its broadcast
// gating: the current phase, the mafia roster, deaths, and game end.
type Notifier interface {
	NotifyPhase(phase game.Phase)
	NotifyMafia(names []string)
	NotifyDead(name string)
	NotifyFinish()
}

// StatsSink records one finished session per player.
type StatsSink interface {
	RecordSession(ctx context.Context, login string, seconds int64, won bool) error
}

// Bus binds one game engine to per-role event queues and exposes it as a
// command-submission plus event-stream interface. The whole
// validate-apply-finish-fanout sequence runs under one mutex, so concurrent
// submissions from the same room never interleave inside it.
type Bus struct {
	mu       sync.Mutex
	engine   *game.Game
	notifier Notifier
	stats    StatsSink
	logger   *zap.Logger

	roster  []string
	started time.Time

	// Day traffic is shared; night traffic is split by role so a civilian
	// never sees mafia-only chatter.
	day            *Group
	nightCivilian  *Group
	nightMafia     *Group
	nightCommissar *Group
}

// New deals a fresh game for the given players and wires its fan-out groups.
func New(players []string, rng *rand.Rand, notifier Notifier, stats StatsSink, logger *zap.Logger) *Bus {
	engine := game.New(players, rng)
	b := &Bus{
		engine:         engine,
		notifier:       notifier,
		stats:          stats,
		logger:         logger,
		roster:         append([]string(nil), players...),
		started:        time.Now(),
		day:            NewGroup(players),
		nightCivilian:  NewGroup(engine.PlayersByRole(game.Civilian)),
		nightMafia:     NewGroup(engine.PlayersByRole(game.Mafia)),
		nightCommissar: NewGroup(engine.PlayersByRole(game.Commissar)),
	}
	notifier.NotifyMafia(engine.PlayersByRole(game.Mafia))
	return b
}

// StartSession returns the live player list and the caller's assigned role.
func (b *Bus) StartSession(name string) ([]string, game.Role, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	role, err := b.engine.Role(name)
	if err != nil {
		return nil, game.Civilian, err
	}
	return b.engine.Players(), role, nil
}

// SubmitDayCommand submits a command through the day channel. A failed
// legality check comes back as *game.RejectedError with the reason; nothing
// is mutated.
func (b *Bus) SubmitDayCommand(cmd game.Command) error {
	return b.submit(cmd, game.Day)
}

// SubmitNightCommand submits a command through the night channel.
func (b *Bus) SubmitNightCommand(cmd game.Command) error {
	return b.submit(cmd, game.Night)
}

func (b *Bus) submit(cmd game.Command, phase game.Phase) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok, reason := b.engine.IsAllowed(cmd.Actor, cmd, phase); !ok {
		return &game.RejectedError{Reason: reason}
	}

	ev, err := b.engine.Apply(cmd)
	if err != nil {
		return fmt.Errorf("apply %s from %s: %w", cmd.Kind, cmd.Actor, err)
	}
	b.fanOut(phase, cmd.Actor, ev)

	if b.engine.PhaseFinished() {
		for _, ev := range b.engine.FinishPhase() {
			b.handleTransition(ev)
			b.fanOutAll(phase, ev)
		}
	}
	return nil
}

// fanOut delivers a command's event: day events share one queue set, night
// events go only to the actor's role group.
func (b *Bus) fanOut(phase game.Phase, actor string, ev game.Event) {
	if phase == game.Day {
		b.day.Put(ev)
		return
	}
	b.nightGroupFor(actor).Put(ev)
}

// fanOutAll delivers a phase-transition event to every group listening on
// the phase that just completed.
func (b *Bus) fanOutAll(phase game.Phase, ev game.Event) {
	if phase == game.Day {
		b.day.Put(ev)
		return
	}
	b.nightCivilian.Put(ev)
	b.nightMafia.Put(ev)
	b.nightCommissar.Put(ev)
}

func (b *Bus) nightGroupFor(name string) *Group {
	role, err := b.engine.Role(name)
	if err != nil {
		b.logger.Error("night fan-out for unknown player", zap.String("name", name), zap.Error(err))
		return NewGroup(nil)
	}
	switch role {
	case game.Mafia:
		return b.nightMafia
	case game.Commissar:
		return b.nightCommissar
	default:
		return b.nightCivilian
	}
}

func (b *Bus) handleTransition(ev game.Event) {
	switch ev.Kind {
	case game.EvExecuted, game.EvMurdered:
		b.notifier.NotifyDead(ev.Name)
	case game.EvPhaseFinished:
		b.notifier.NotifyPhase(b.engine.Phase())
	case game.EvGameEnd:
		b.recordSessions(ev.Winner)
		b.notifier.NotifyFinish()
	}
}

func (b *Bus) recordSessions(winner game.Winner) {
	seconds := int64(time.Since(b.started).Seconds())
	for _, name := range b.roster {
		role, err := b.engine.Role(name)
		if err != nil {
			continue
		}
		won := (winner == game.WinnerMafia) == (role == game.Mafia)
		if err := b.stats.RecordSession(context.Background(), name, seconds, won); err != nil {
			b.logger.Error("failed to record session stats",
				zap.String("login", name), zap.Error(err))
		}
	}
}

// ListenDay streams the caller's day events. The stream always opens with a
// synthesized PHASE_START and ends after PHASE_FINISHED (reconnect for the
// next phase) or GAME_END.
func (b *Bus) ListenDay(ctx context.Context, name string) (<-chan game.Event, error) {
	q := b.day.Queue(name)
	if q == nil {
		return nil, ErrNoSubscriber
	}
	return b.listen(ctx, q), nil
}

// ListenNight streams the caller's night events from their role group.
func (b *Bus) ListenNight(ctx context.Context, name string) (<-chan game.Event, error) {
	b.mu.Lock()
	q := b.nightGroupFor(name).Queue(name)
	b.mu.Unlock()
	if q == nil {
		return nil, ErrNoSubscriber
	}
	return b.listen(ctx, q), nil
}

func (b *Bus) listen(ctx context.Context, q *Queue) <-chan game.Event {
	out := make(chan game.Event)
	go func() {
		defer close(out)
		select {
		case out <- game.Event{Kind: game.EvPhaseStart}:
		case <-ctx.Done():
			return
		}
		for {
			ev, err := q.Get(ctx)
			if err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Kind == game.EvPhaseFinished || ev.Kind == game.EvGameEnd {
				return
			}
		}
	}()
	return out
}

// Terminal reports whether the underlying game has ended.
func (b *Bus) Terminal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Terminal()
}

// Phase returns the engine's current phase.
func (b *Bus) Phase() game.Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Phase()
}

// Role returns the player's role for transport-side routing.
func (b *Bus) Role(name string) (game.Role, error) {
	return b.engine.Role(name)
}

// Players returns the current living roster.
func (b *Bus) Players() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Players()
}

// Close tears the bus down, waking every blocked listener.
func (b *Bus) Close() {
	b.day.Close()
	b.nightCivilian.Close()
	b.nightMafia.Close()
	b.nightCommissar.Close()
}
