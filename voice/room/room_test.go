package room_test

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"mafserver/mafia/game"
	"mafserver/voice/protocol"
	"mafserver/voice/registry"
	"mafserver/voice/room"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *fakeConn) Read(p []byte) (int, error) { return 0, io.EOF }
func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}
func (c *fakeConn) Close() error                     { return nil }
func (c *fakeConn) LocalAddr() net.Addr              { return nil }
func (c *fakeConn) RemoteAddr() net.Addr             { return nil }
func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// frames decodes everything written to the connection so far and resets it.
func (c *fakeConn) frames(t *testing.T) []protocol.Message {
	t.Helper()
	c.mu.Lock()
	raw := c.buf.Bytes()
	c.buf = bytes.Buffer{}
	c.mu.Unlock()

	var out []protocol.Message
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		msg, err := protocol.Decode(r)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

type fakeStats struct{}

func (fakeStats) RecordSession(context.Context, string, int64, bool) error { return nil }

type fixture struct {
	reg   *registry.Registry
	room  *room.Room
	ids   map[string]uint32
	conns map[string]*fakeConn
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	reg := registry.New(rand.New(rand.NewSource(1)), zap.NewNop())
	f := &fixture{
		reg: reg,
		room: room.New(0, reg, room.Config{
			GamePort:   8080,
			StartGrace: time.Millisecond,
			Rand:       rand.New(rand.NewSource(1)),
			Stats:      fakeStats{},
		}, zap.NewNop()),
		ids:   make(map[string]uint32),
		conns: make(map[string]*fakeConn),
	}
	for _, name := range names {
		f.join(t, name)
	}
	return f
}

func (f *fixture) join(t *testing.T, name string) {
	t.Helper()
	conn := &fakeConn{}
	id, err := f.reg.Register(name, conn)
	require.NoError(t, err)
	f.ids[name] = id
	f.conns[name] = conn
	f.room.AddMember(id)
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	for _, conn := range f.conns {
		conn.frames(t)
	}
}

func voiceFrame(name string) protocol.Voice {
	return protocol.Voice{Name: name, Data: make([]byte, protocol.VoiceDataSize)}
}

func TestVoiceReachesEveryMemberByDay(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	f.drain(t)

	f.room.HandleMessage(f.ids["alice"], voiceFrame("alice"))

	for _, name := range []string{"bob", "carol"} {
		frames := f.conns[name].frames(t)
		require.Len(t, frames, 1, "member %s", name)
		voice := frames[0].(protocol.Voice)
		assert.Equal(t, "alice", voice.Name)
	}
	assert.Empty(t, f.conns["alice"].frames(t), "no echo to the sender")
}

func TestVoiceSenderNameOverwritten(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.drain(t)

	f.room.HandleMessage(f.ids["alice"], voiceFrame("mallory"))

	frames := f.conns["bob"].frames(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "alice", frames[0].(protocol.Voice).Name)
}

func TestJoinBroadcastsConnected(t *testing.T) {
	f := newFixture(t, "alice")
	f.drain(t)

	f.join(t, "bob")

	frames := f.conns["alice"].frames(t)
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.Connected{Name: "bob"}, frames[0])
	assert.Empty(t, f.conns["bob"].frames(t))
}

func TestLeaveBroadcastsDisconnected(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.drain(t)

	f.room.RemoveMember(f.ids["bob"])

	frames := f.conns["alice"].frames(t)
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.Disconnected{Name: "bob"}, frames[0])
}

func TestListResponseSorted(t *testing.T) {
	f := newFixture(t, "carol", "alice", "bob")
	f.drain(t)

	f.room.HandleMessage(f.ids["bob"], protocol.ListRequest{})

	frames := f.conns["bob"].frames(t)
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.ListResponse{Names: []string{"alice", "bob", "carol"}}, frames[0])
}

func TestDeadMemberReachesNobody(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	f.room.NotifyDead("alice")
	f.drain(t)

	f.room.HandleMessage(f.ids["alice"], voiceFrame("alice"))

	for name, conn := range f.conns {
		assert.Empty(t, conn.frames(t), "member %s", name)
	}
}

func TestNightVoiceStaysInsideMafia(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	f.room.NotifyMafia([]string{"alice", "bob"})
	f.room.NotifyPhase(game.Night)
	f.drain(t)

	f.room.HandleMessage(f.ids["alice"], voiceFrame("alice"))

	frames := f.conns["bob"].frames(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "alice", frames[0].(protocol.Voice).Name)
	assert.Empty(t, f.conns["carol"].frames(t), "civilians hear nothing at night")
}

func TestNightCivilianVoiceDropped(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	f.room.NotifyMafia([]string{"alice"})
	f.room.NotifyPhase(game.Night)
	f.drain(t)

	f.room.HandleMessage(f.ids["carol"], voiceFrame("carol"))

	for name, conn := range f.conns {
		assert.Empty(t, conn.frames(t), "member %s", name)
	}
}

func TestGameLaunchesAtThreshold(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	f.drain(t)
	assert.Nil(t, f.room.Bus())

	f.join(t, "dave")

	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		conn := f.conns[name]
		require.Eventually(t, func() bool {
			conn.mu.Lock()
			defer conn.mu.Unlock()
			return conn.buf.Len() > 0
		}, time.Second, time.Millisecond, "member %s", name)

		var started bool
		for _, frame := range conn.frames(t) {
			if gs, ok := frame.(protocol.GameStarted); ok {
				assert.Equal(t, uint16(8080), gs.Port)
				started = true
			}
		}
		assert.True(t, started, "member %s missed the game notice", name)
	}

	require.Eventually(t, func() bool { return f.room.Bus() != nil },
		time.Second, time.Millisecond)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol", "dave"}, f.room.Bus().Players())
}

func TestNotifyFinishRetiresBus(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol", "dave")
	require.Eventually(t, func() bool { return f.room.Bus() != nil },
		time.Second, time.Millisecond)
	f.room.NotifyPhase(game.Night)
	f.room.NotifyDead("alice")

	f.room.NotifyFinish()

	assert.Nil(t, f.room.Bus())
	f.drain(t)

	// Gating state resets so everybody can talk again.
	f.room.HandleMessage(f.ids["alice"], voiceFrame("alice"))
	frames := f.conns["bob"].frames(t)
	require.Len(t, frames, 1)
}
