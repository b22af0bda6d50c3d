package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apows "github.com/ryanroundhouse/punk-mud-sub000/api/ws"
	"github.com/ryanroundhouse/punk-mud-sub000/audit"
	"github.com/ryanroundhouse/punk-mud-sub000/cache"
	"github.com/ryanroundhouse/punk-mud-sub000/config"
	dbadapter "github.com/ryanroundhouse/punk-mud-sub000/db"
	"github.com/ryanroundhouse/punk-mud-sub000/game/character"
	"github.com/ryanroundhouse/punk-mud-sub000/game/chat"
	"github.com/ryanroundhouse/punk-mud-sub000/game/combat"
	"github.com/ryanroundhouse/punk-mud-sub000/game/commands"
	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/game/event"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/game/quest"
	mw "github.com/ryanroundhouse/punk-mud-sub000/middleware"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/resource"
	"github.com/ryanroundhouse/punk-mud-sub000/scheduler"
	"github.com/ryanroundhouse/punk-mud-sub000/store"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")
	st := store.New(db)

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Content ----
	content := resource.NewLoader(cfg.Game.ContentPath)
	if err := content.Load(); err != nil {
		log.Fatalf("content: %v", err)
	}
	if err := content.Seed(context.Background(), st, logger); err != nil {
		log.Fatalf("content seed: %v", err)
	}

	// ---- Game Systems ----
	presence := player.NewPresence(c)
	sm := player.NewSessionManager(presence, logger)
	roller := dice.New()

	chars := character.NewService(st.Players, st.Classes, logger)
	quests := quest.NewEngine(quest.Deps{
		Players:    st.Players,
		Quests:     st.Quests,
		Experience: chars,
		Classes:    chars,
		Messenger:  sm,
		Audit:      auditSvc,
	}, logger)
	fights := combat.NewService(combat.Deps{
		Players:   st.Players,
		Moves:     st.Moves,
		Locations: st.Locations,
		Factory:   combat.NewMobFactory(st.Mobs, st.Moves, logger),
		Roller:    roller,
		Messenger: sm,
		Audit:     auditSvc,
	}, combat.Options{
		FleeChance:      cfg.Game.FleeChance,
		StartLocationID: cfg.Game.StartLocationID,
	}, logger)
	events := event.NewMachine(event.Deps{
		Events:   st.Events,
		Players:  st.Players,
		Quests:   quests,
		Combat:   fights,
		Sessions: event.NewSessionStore(c, cfg.Game.SessionIdleTTL),
		Roller:   roller,
	}, logger)

	chatH := chat.NewHandler(c, pubsub, presence, sm, cfg.Game.ChatHistory, logger)
	locationIDs := make([]string, len(content.Locations))
	for i, loc := range content.Locations {
		locationIDs[i] = loc.ID
	}
	stopChat, err := chatH.Subscribe(context.Background(), locationIDs...)
	if err != nil {
		log.Fatalf("chat subscribe: %v", err)
	}
	defer stopChat()

	dispatcher := commands.NewDispatcher(commands.Deps{
		Players:    st.Players,
		Locations:  st.Locations,
		Actors:     st.Actors,
		QuestDefs:  st.Quests,
		Events:     events,
		Combat:     fights,
		Quests:     quests,
		Characters: chars,
		Chat:       chatH,
		Presence:   presence,
		Messenger:  sm,
		Roller:     roller,
		Records:    auditSvc,
	}, commands.Options{
		StartLocationID: cfg.Game.StartLocationID,
		IdleTTL:         cfg.Game.SessionIdleTTL,
		ChatHistory:     cfg.Game.ChatHistory,
	}, logger)

	cmdLimiter := mw.NewKeyedLimiter(rate.Limit(cfg.Security.CommandRPS), cfg.Security.CommandBurst)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.AddTicker("idle_combat_sweep", cfg.Game.IdleSweepInterval, func(ctx context.Context) {
		if n := dispatcher.SweepIdle(ctx); n > 0 {
			logger.Info("idle fights expired", zap.Int("count", n))
		}
	})
	sched.AddTicker("command_limiter_sweep", 5*time.Minute, func(context.Context) {
		cmdLimiter.Sweep(time.Now().Add(-10 * time.Minute))
	})

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	apows.NewGameHandlers(dispatcher, cmdLimiter, logger).RegisterHandlers(wsRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{
			"status":          "ok",
			"players":         sm.Count(),
			"scheduler_tasks": sched.ListTickers(),
		})
	})

	// ---- WebSocket ----
	wsH := apows.NewHandler(dispatcher, cfg.Security, sm, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	<-sigCtx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
