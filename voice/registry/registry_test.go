package registry_test

import (
	"math/rand"
	"net"
	"testing"
	"time"

	"mafserver/voice/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	closed bool
}

func (c *fakeConn) Read(p []byte) (int, error)       { return 0, nil }
func (c *fakeConn) Write(p []byte) (int, error)      { return len(p), nil }
func (c *fakeConn) Close() error                     { c.closed = true; return nil }
func (c *fakeConn) LocalAddr() net.Addr              { return nil }
func (c *fakeConn) RemoteAddr() net.Addr             { return nil }
func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func newRegistry() *registry.Registry {
	return registry.New(rand.New(rand.NewSource(1)), zap.NewNop())
}

func TestRegisterAndLookup(t *testing.T) {
	reg := newRegistry()
	conn := &fakeConn{}

	id, err := reg.Register("alice", conn)
	require.NoError(t, err)

	got, err := reg.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, id, got.ID)

	byName, err := reg.LookupByName("alice")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)
}

func TestRegisterDuplicateName(t *testing.T) {
	reg := newRegistry()

	_, err := reg.Register("alice", &fakeConn{})
	require.NoError(t, err)

	_, err = reg.Register("alice", &fakeConn{})
	assert.ErrorIs(t, err, registry.ErrDuplicateName)
}

func TestUniqueIDs(t *testing.T) {
	reg := newRegistry()
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	seen := make(map[uint32]bool)
	for _, name := range names {
		id, err := reg.Register(name, &fakeConn{})
		require.NoError(t, err)
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
}

func TestUnregisterClosesTransport(t *testing.T) {
	reg := newRegistry()
	conn := &fakeConn{}

	id, err := reg.Register("alice", conn)
	require.NoError(t, err)

	reg.Unregister(id)
	assert.True(t, conn.closed)

	_, err = reg.Lookup(id)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	_, err = reg.LookupByName("alice")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	// The freed name may be registered again.
	_, err = reg.Register("alice", &fakeConn{})
	assert.NoError(t, err)
}

func TestSetRoom(t *testing.T) {
	reg := newRegistry()

	id, err := reg.Register("alice", &fakeConn{})
	require.NoError(t, err)

	reg.SetRoom(id, 7)
	got, err := reg.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), got.Room)
}
