package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"mafserver/auth"
	"mafserver/voice/protocol"
	"mafserver/voice/registry"
	"mafserver/voice/room"

	"go.uber.org/zap"
)

// DefaultRoom is where every freshly authenticated connection lands.
const DefaultRoom uint8 = 0

// maxReadRetries bounds how many consecutive transient read errors a
// connection survives before it is dropped.
const maxReadRetries = 3

// Server accepts voice clients over TCP, authenticates them, and runs one
// read loop per connection.
type Server struct {
	reg     *registry.Registry
	authn   auth.Provider
	roomCfg room.Config
	logger  *zap.Logger

	mu       sync.Mutex
	rooms    map[uint8]*room.Room
	conns    map[uint32]net.Conn
	listener net.Listener
	closing  bool

	wg sync.WaitGroup
}

// New creates a server. roomCfg is shared by every room the server opens.
func New(reg *registry.Registry, authn auth.Provider, roomCfg room.Config, logger *zap.Logger) *Server {
	return &Server{
		reg:     reg,
		authn:   authn,
		roomCfg: roomCfg,
		logger:  logger,
		rooms:   make(map[uint8]*room.Room),
		conns:   make(map[uint32]net.Conn),
	}
}

// Room returns the room with the given id, opening it on first use.
func (s *Server) Room(id uint8) *room.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomLocked(id)
}

func (s *Server) roomLocked(id uint8) *room.Room {
	r, ok := s.rooms[id]
	if !ok {
		r = room.New(id, s.reg, s.roomCfg, s.logger)
		s.rooms[id] = r
	}
	return r
}

// Serve runs the accept loop until the listener closes.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info("voice server listening", zap.String("address", lis.Addr().String()))
	for {
		conn, err := lis.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept failed", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Shutdown closes the listener and every live connection, then waits for the
// read loops to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	lis := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if lis != nil {
		lis.Close()
	}
	if raw, err := protocol.Encode(protocol.Shutdown{}); err == nil {
		for _, c := range conns {
			c.Write(raw)
		}
	}
	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serveConn performs the handshake and then pumps frames until the
// connection dies.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	client, err := s.handshake(ctx, conn)
	if err != nil {
		s.logger.Info("handshake failed",
			zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		conn.Close()
		return
	}

	logger := s.logger.With(zap.Uint32("clientID", client.ID), zap.String("login", client.Name))
	logger.Info("client connected")

	s.mu.Lock()
	s.conns[client.ID] = conn
	s.roomLocked(DefaultRoom).AddMember(client.ID)
	s.mu.Unlock()

	defer func() {
		s.disconnect(client.ID)
		logger.Info("client disconnected")
	}()

	retries := 0
	for {
		msg, err := protocol.Decode(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			var perr *protocol.Error
			if errors.As(err, &perr) {
				logger.Warn("malformed frame, dropping client", zap.Error(err))
				return
			}
			retries++
			if retries > maxReadRetries {
				logger.Error("read failed repeatedly, dropping client", zap.Error(err))
				return
			}
			logger.Warn("read failed, retrying", zap.Error(err), zap.Int("attempt", retries))
			continue
		}
		retries = 0

		switch m := msg.(type) {
		case protocol.RoomChange:
			s.moveClient(client.ID, m.Room)
		case protocol.ConnectedResponse, protocol.GameStarted, protocol.ListResponse, protocol.Shutdown:
			logger.Warn("discarded server-bound frame from client",
				zap.Uint8("messageType", msg.Type()))
		default:
			s.currentRoom(client.ID).HandleMessage(client.ID, msg)
		}
	}
}

// handshake reads the first frame, which must be a Connected message whose
// name field carries the session token.
func (s *Server) handshake(ctx context.Context, conn net.Conn) (*registry.Connection, error) {
	msg, err := protocol.Decode(conn)
	if err != nil {
		return nil, err
	}
	hello, ok := msg.(protocol.Connected)
	if !ok {
		s.respond(conn, "expected a connect frame first")
		return nil, errors.New("handshake: first frame was not a connect")
	}

	login, err := s.authn.Verify(ctx, hello.Name)
	if err != nil {
		s.respond(conn, "authentication failed")
		return nil, err
	}

	id, err := s.reg.Register(login, conn)
	if err != nil {
		if errors.Is(err, registry.ErrDuplicateName) {
			s.respond(conn, "this login is already connected")
		} else {
			s.respond(conn, "could not register connection")
		}
		return nil, err
	}

	s.respond(conn, "")
	client, err := s.reg.Lookup(id)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Server) respond(conn net.Conn, errText string) {
	raw, err := protocol.Encode(protocol.ConnectedResponse{Error: errText})
	if err != nil {
		s.logger.Error("failed to encode handshake response", zap.Error(err))
		return
	}
	if _, err := conn.Write(raw); err != nil {
		s.logger.Error("failed to write handshake response", zap.Error(err))
	}
}

// moveClient relocates a connection into another room. Only the connection's
// own read loop drives a move, and the removal always precedes the insertion,
// so concurrent broadcasts never see the client in two rooms.
func (s *Server) moveClient(clientID uint32, roomID uint8) {
	client, err := s.reg.Lookup(clientID)
	if err != nil {
		return
	}
	if client.Room == roomID {
		return
	}

	s.mu.Lock()
	oldRoom := s.roomLocked(client.Room)
	newRoom := s.roomLocked(roomID)
	s.mu.Unlock()

	oldRoom.RemoveMember(clientID)
	s.reg.SetRoom(clientID, roomID)
	newRoom.AddMember(clientID)
	s.logger.Info("client changed room",
		zap.Uint32("clientID", clientID),
		zap.Uint8("from", client.Room), zap.Uint8("to", roomID))
}

func (s *Server) currentRoom(clientID uint32) *room.Room {
	roomID := DefaultRoom
	if client, err := s.reg.Lookup(clientID); err == nil {
		roomID = client.Room
	}
	return s.Room(roomID)
}

func (s *Server) disconnect(clientID uint32) {
	s.currentRoom(clientID).RemoveMember(clientID)
	s.reg.Unregister(clientID)

	s.mu.Lock()
	delete(s.conns, clientID)
	s.mu.Unlock()
}
