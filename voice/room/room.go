package room

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"mafserver/mafia/game"
	"mafserver/mafia/session"
	"mafserver/voice/protocol"
	"mafserver/voice/registry"

	"go.uber.org/zap"
)

// MinPlayerCount is the membership threshold that launches a game.
const MinPlayerCount = 4

// DefaultStartGrace is how long a room waits for late joiners between the
// "game starting" notice and freezing the roster.
const DefaultStartGrace = time.Second

// Config carries the knobs a room needs to launch game sessions.
type Config struct {
	// GamePort is advertised in GAME_STARTED frames; the game RPC surface
	// listens there.
	GamePort   uint16
	MinPlayers int
	StartGrace time.Duration
	Rand       *rand.Rand
	Stats      session.StatsSink
}

// Room routes voice traffic among its members and owns the lifecycle of its
// game session. Broadcast gating reads the phase at delivery time: dead
// members reach nobody, day traffic reaches every live member, night traffic
// stays inside the mafia roster.
type Room struct {
	id     uint8
	cfg    Config
	reg    *registry.Registry
	logger *zap.Logger

	mu       sync.Mutex
	members  map[uint32]struct{}
	phase    game.Phase
	mafia    map[string]struct{}
	dead     map[string]struct{}
	bus      *session.Bus
	starting bool
}

// New creates an empty room.
func New(id uint8, reg *registry.Registry, cfg Config, logger *zap.Logger) *Room {
	if cfg.MinPlayers == 0 {
		cfg.MinPlayers = MinPlayerCount
	}
	return &Room{
		id:      id,
		cfg:     cfg,
		reg:     reg,
		logger:  logger.With(zap.Uint8("roomID", id)),
		members: make(map[uint32]struct{}),
		phase:   game.Day,
		mafia:   make(map[string]struct{}),
		dead:    make(map[string]struct{}),
	}
}

// ID returns the room id.
func (r *Room) ID() uint8 {
	return r.id
}

// Bus returns the live game session, or nil when no game is running.
func (r *Room) Bus() *session.Bus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bus
}

// AddMember joins a connection to the room, announces it, and launches the
// game once enough participants are present.
func (r *Room) AddMember(clientID uint32) {
	r.mu.Lock()
	r.members[clientID] = struct{}{}
	count := len(r.members)
	starting := r.starting
	hasGame := r.bus != nil
	r.mu.Unlock()

	name := ""
	if c, err := r.reg.Lookup(clientID); err == nil {
		name = c.Name
	}
	r.HandleMessage(clientID, protocol.Connected{Name: name})

	if starting {
		// Late joiner during the grace period still gets the notice.
		r.sendTo(clientID, protocol.GameStarted{Port: r.cfg.GamePort})
	}
	if count >= r.cfg.MinPlayers && !hasGame && !starting {
		r.launchGame()
	}
}

// RemoveMember drops a connection from delivery targets. Mid-game the player
// stays in the engine until eliminated or the game ends.
func (r *Room) RemoveMember(clientID uint32) {
	name := ""
	if c, err := r.reg.Lookup(clientID); err == nil {
		name = c.Name
	}

	r.mu.Lock()
	delete(r.members, clientID)
	r.mu.Unlock()

	r.HandleMessage(clientID, protocol.Disconnected{Name: name})
}

// HandleMessage routes one inbound non-game message from a member.
func (r *Room) HandleMessage(senderID uint32, msg protocol.Message) {
	sender, err := r.reg.Lookup(senderID)
	senderName := ""
	if err == nil {
		senderName = sender.Name
	}

	switch m := msg.(type) {
	case protocol.Voice:
		// The sender name is always overwritten server-side so clients
		// cannot impersonate each other.
		m.Name = senderName
		r.broadcast(senderID, senderName, m)
	case protocol.Connected:
		if senderName != "" {
			m.Name = senderName
		}
		r.broadcast(senderID, m.Name, m)
	case protocol.Disconnected:
		if senderName != "" {
			m.Name = senderName
		}
		r.broadcast(senderID, m.Name, m)
	case protocol.ListRequest:
		r.sendTo(senderID, protocol.ListResponse{Names: r.MemberNames()})
	default:
		r.logger.Warn("discarded message with unexpected type in room",
			zap.Uint8("messageType", msg.Type()), zap.Uint32("clientID", senderID))
	}
}

// MemberNames returns the current member names sorted alphabetically.
func (r *Room) MemberNames() []string {
	r.mu.Lock()
	ids := make([]uint32, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if c, err := r.reg.Lookup(id); err == nil {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// broadcast delivers one frame to every member the phase policy admits,
// never echoing back to the sender.
func (r *Room) broadcast(senderID uint32, senderName string, msg protocol.Message) {
	raw, err := protocol.Encode(msg)
	if err != nil {
		r.logger.Error("failed to encode broadcast", zap.Error(err))
		return
	}

	for _, id := range r.recipients(senderName) {
		if id == senderID {
			continue
		}
		c, err := r.reg.Lookup(id)
		if err != nil {
			continue
		}
		if _, err := c.Conn.Write(raw); err != nil {
			r.logger.Error("could not broadcast message to client",
				zap.Uint32("clientID", id), zap.Error(err))
		}
	}
}

// recipients evaluates the phase-gated policy fresh for every message.
func (r *Room) recipients(senderName string) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, isDead := r.dead[senderName]; isDead {
		return nil
	}

	var out []uint32
	switch r.phase {
	case game.Day:
		for id := range r.members {
			out = append(out, id)
		}
	case game.Night:
		if _, isMafia := r.mafia[senderName]; !isMafia {
			return nil
		}
		for id := range r.members {
			c, err := r.reg.Lookup(id)
			if err != nil {
				continue
			}
			if _, ok := r.mafia[c.Name]; ok {
				out = append(out, id)
			}
		}
	}
	return out
}

func (r *Room) sendTo(clientID uint32, msg protocol.Message) {
	c, err := r.reg.Lookup(clientID)
	if err != nil {
		return
	}
	raw, err := protocol.Encode(msg)
	if err != nil {
		r.logger.Error("failed to encode message", zap.Error(err))
		return
	}
	if _, err := c.Conn.Write(raw); err != nil {
		r.logger.Error("could not send message to client",
			zap.Uint32("clientID", clientID), zap.Error(err))
	}
}

// launchGame announces the game, waits the grace period for late joiners,
// then freezes the roster and builds the engine plus session bus.
func (r *Room) launchGame() {
	r.mu.Lock()
	if r.starting || r.bus != nil {
		r.mu.Unlock()
		return
	}
	r.starting = true
	ids := make([]uint32, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	r.logger.Info("game starting", zap.Int("members", len(ids)))
	for _, id := range ids {
		r.sendTo(id, protocol.GameStarted{Port: r.cfg.GamePort})
	}

	go func() {
		time.Sleep(r.cfg.StartGrace)

		r.mu.Lock()
		players := make([]string, 0, len(r.members))
		frozen := make([]uint32, 0, len(r.members))
		for id := range r.members {
			frozen = append(frozen, id)
		}
		r.mu.Unlock()

		sort.Slice(frozen, func(i, j int) bool { return frozen[i] < frozen[j] })
		for _, id := range frozen {
			if c, err := r.reg.Lookup(id); err == nil {
				players = append(players, c.Name)
			}
		}

		bus := session.New(players, r.cfg.Rand, r, r.cfg.Stats, r.logger)

		r.mu.Lock()
		r.phase = game.Day
		r.dead = make(map[string]struct{})
		r.bus = bus
		r.starting = false
		r.mu.Unlock()

		r.logger.Info("game launched", zap.Strings("players", players))
	}()
}

// NotifyPhase implements session.Notifier.
func (r *Room) NotifyPhase(phase game.Phase) {
	r.mu.Lock()
	r.phase = phase
	r.mu.Unlock()
}

// NotifyMafia implements session.Notifier.
func (r *Room) NotifyMafia(names []string) {
	r.mu.Lock()
	r.mafia = make(map[string]struct{}, len(names))
	for _, n := range names {
		r.mafia[n] = struct{}{}
	}
	r.mu.Unlock()
}

// NotifyDead implements session.Notifier.
func (r *Room) NotifyDead(name string) {
	r.mu.Lock()
	r.dead[name] = struct{}{}
	r.mu.Unlock()
}

// NotifyFinish implements session.Notifier. The bus is retired once its
// terminal events are drained; the room itself persists for future games.
func (r *Room) NotifyFinish() {
	r.mu.Lock()
	bus := r.bus
	r.bus = nil
	r.phase = game.Day
	r.mafia = make(map[string]struct{})
	r.dead = make(map[string]struct{})
	r.mu.Unlock()

	if bus != nil {
		go bus.Close()
	}
	r.logger.Info("game finished, room reset")
}
