package registry

import (
	"errors"
	"math/rand"
	"net"
	"sync"

	"go.uber.org/zap"
)

// ErrDuplicateName is returned when a live connection already uses the name.
var ErrDuplicateName = errors.New("registry: name already connected")

// ErrNotFound is returned when no live connection has the given id.
var ErrNotFound = errors.New("registry: connection not found")

// Connection is one live client. The transport is owned by the registry for
// the lifetime of the connection and closed on Unregister.
type Connection struct {
	ID   uint32
	Name string
	Conn net.Conn
	Room uint8
}

// Registry is the shared table of live connections, guarded by one mutex.
type Registry struct {
	mu     sync.Mutex
	byID   map[uint32]*Connection
	byName map[string]uint32
	rng    *rand.Rand
	logger *zap.Logger
}

// New builds a registry. The random source is injectable so tests can pin
// deterministic connection ids.
func New(rng *rand.Rand, logger *zap.Logger) *Registry {
	return &Registry{
		byID:   make(map[uint32]*Connection),
		byName: make(map[string]uint32),
		rng:    rng,
		logger: logger,
	}
}

// Register inserts a new connection under a random 32-bit id, retrying on
// collision. No two live connections may share an id or a name.
func (r *Registry) Register(name string, conn net.Conn) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[name]; taken {
		return 0, ErrDuplicateName
	}

	id := r.rng.Uint32()
	for _, taken := r.byID[id]; taken; _, taken = r.byID[id] {
		id = r.rng.Uint32()
	}

	r.byID[id] = &Connection{ID: id, Name: name, Conn: conn}
	r.byName[name] = id
	r.logger.Info("client registered", zap.Uint32("clientID", id), zap.String("name", name))
	return id, nil
}

// Unregister removes the connection and closes its transport.
func (r *Registry) Unregister(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return
	}
	c.Conn.Close()
	delete(r.byName, c.Name)
	delete(r.byID, id)
	r.logger.Info("client unregistered", zap.Uint32("clientID", id), zap.String("name", c.Name))
}

// Lookup returns the connection with the given id.
func (r *Registry) Lookup(id uint32) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// LookupByName returns the connection registered under name.
func (r *Registry) LookupByName(name string) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id], nil
}

// SetRoom records the connection's current room assignment.
func (r *Registry) SetRoom(id uint32, room uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.byID[id]; ok {
		c.Room = room
	}
}
