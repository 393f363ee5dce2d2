package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mafserver/auth"
	"mafserver/database"
	"mafserver/handlers"
	"mafserver/profiles"
	"mafserver/report"
	"mafserver/utils"
	"mafserver/voice/registry"
	"mafserver/voice/room"
	"mafserver/voice/server"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

func main() {
	logger, err := utils.InitLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// PostgreSQL and Redis come up in parallel.
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		var err error
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("failed to initialize PostgreSQL", zap.Error(err))
		}
		if err = database.Migrate(db); err != nil {
			logger.Fatal("failed to migrate schema", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		var err error
		rdb, err = database.InitRedis(logger)
		if err != nil {
			logger.Fatal("failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	<-done
	<-done

	go utils.CronCleaner(db, logger)

	store := profiles.NewStore(db, logger)
	tokens := auth.New(db, config.JWTSecret, time.Duration(config.TokenTTLHours)*time.Hour, logger)
	reports := report.NewClient(rdb, 30*time.Second, logger)

	go report.NewWorker(rdb, report.TextGenerator{}, logger).Run(context.Background())

	// Voice server over raw TCP.
	reg := registry.New(rand.New(rand.NewSource(time.Now().UnixNano())), logger)
	voice := server.New(reg, tokens, room.Config{
		GamePort:   uint16(config.HTTPPort),
		MinPlayers: room.MinPlayerCount,
		StartGrace: room.DefaultStartGrace,
		Rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		Stats:      store,
	}, logger)

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", config.VoicePort))
		if err != nil {
			logger.Fatal("failed to listen for voice clients", zap.Error(err))
		}
		if err := voice.Serve(context.Background(), lis); err != nil {
			logger.Fatal("voice server failed", zap.Error(err))
		}
	}()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.POST("/register", handlers.RegisterProfile(store, logger))
	router.POST("/authorize", handlers.Authorize(db, store, tokens, logger))
	router.GET("/profiles", handlers.AllProfiles(store, logger))
	router.GET("/profile/:login", handlers.GetProfile(store, logger))
	router.PUT("/profile/:login", handlers.ModifyProfile(store, tokens, logger))
	router.GET("/profile/:login/report", handlers.ProfileReport(store, reports, logger))
	router.GET("/game/ws", handlers.GameWebSocket(voice, tokens,
		rand.New(rand.NewSource(time.Now().UnixNano())), upgrader, logger))

	if err := router.Run(fmt.Sprintf(":%d", config.HTTPPort)); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
}
