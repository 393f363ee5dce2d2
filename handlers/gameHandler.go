package handlers

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"sync"

	"mafserver/auth"
	"mafserver/mafia/game"
	"mafserver/mafia/session"
	"mafserver/voice/server"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// gameFrame is what the client sends over the game socket.
type gameFrame struct {
	Phase string `json:"phase"` // "day" or "night"
	Text  string `json:"text"`
}

// gameReply is what the server pushes back.
type gameReply struct {
	Type    string      `json:"type"` // session, event, ack, rejected, error
	Players []string    `json:"players,omitempty"`
	Role    string      `json:"role,omitempty"`
	Event   *game.Event `json:"event,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// GameWebSocket attaches an authenticated client to its room's running game
// session. Commands arrive as JSON frames; engine events are pushed back on
// the same socket.
func GameWebSocket(srv *server.Server, authn auth.Provider, rng *rand.Rand, upgrader websocket.Upgrader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := c.Query("token")
		login, err := authn.Verify(c.Request.Context(), credential)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		roomID, err := strconv.ParseUint(c.DefaultQuery("room", "0"), 10, 8)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Bad room id"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("Error upgrading WebSocket", zap.Error(err))
			return
		}
		defer conn.Close()

		gc := &gameClient{
			conn:   conn,
			login:  login,
			rng:    rng,
			logger: logger.With(zap.String("login", login), zap.Uint64("roomID", roomID)),
		}

		bus := srv.Room(uint8(roomID)).Bus()
		if bus == nil {
			gc.write(gameReply{Type: "error", Error: "No game is running in this room"})
			return
		}
		gc.run(c.Request.Context(), bus)
	}
}

type gameClient struct {
	conn   *websocket.Conn
	login  string
	rng    *rand.Rand
	logger *zap.Logger

	writeMu sync.Mutex
}

func (gc *gameClient) write(reply gameReply) {
	gc.writeMu.Lock()
	defer gc.writeMu.Unlock()
	if err := gc.conn.WriteJSON(reply); err != nil {
		gc.logger.Debug("game socket write failed", zap.Error(err))
	}
}

func (gc *gameClient) run(ctx context.Context, bus *session.Bus) {
	players, role, err := bus.StartSession(gc.login)
	if err != nil {
		gc.write(gameReply{Type: "error", Error: err.Error()})
		return
	}
	gc.write(gameReply{Type: "session", Players: players, Role: role.String()})
	gc.logger.Info("game session attached", zap.String("role", role.String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gc.pushEvents(ctx, bus)
	}()

	gc.readCommands(bus, role, players)
	cancel()
	wg.Wait()
}

// readCommands pumps client frames into the engine until the socket closes.
func (gc *gameClient) readCommands(bus *session.Bus, role game.Role, players []string) {
	for {
		var frame gameFrame
		if err := gc.conn.ReadJSON(&frame); err != nil {
			return
		}

		var cmd game.Command
		var err error
		var submit func(game.Command) error
		switch frame.Phase {
		case "day":
			cmd, err = game.ParseDay(gc.login, frame.Text, players, gc.rng)
			submit = bus.SubmitDayCommand
		case "night":
			cmd, err = game.ParseNight(gc.login, frame.Text, role, players, gc.rng)
			submit = bus.SubmitNightCommand
		default:
			gc.write(gameReply{Type: "rejected", Reason: "Unknown phase"})
			continue
		}
		if err != nil {
			gc.write(gameReply{Type: "rejected", Reason: err.Error()})
			continue
		}

		if err := submit(cmd); err != nil {
			var rejected *game.RejectedError
			if errors.As(err, &rejected) {
				gc.write(gameReply{Type: "rejected", Reason: rejected.Reason})
				continue
			}
			gc.write(gameReply{Type: "error", Error: err.Error()})
			continue
		}
		gc.write(gameReply{Type: "ack"})
	}
}

// pushEvents forwards engine events, re-subscribing as phases alternate.
func (gc *gameClient) pushEvents(ctx context.Context, bus *session.Bus) {
	for {
		var stream <-chan game.Event
		var err error
		if bus.Phase() == game.Day {
			stream, err = bus.ListenDay(ctx, gc.login)
		} else {
			stream, err = bus.ListenNight(ctx, gc.login)
		}
		if err != nil {
			gc.logger.Debug("event subscription ended", zap.Error(err))
			return
		}

		for ev := range stream {
			ev := ev
			gc.write(gameReply{Type: "event", Event: &ev})
		}

		if ctx.Err() != nil || bus.Terminal() {
			return
		}
	}
}
