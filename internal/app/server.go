package app

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ansocialov1337/my-crash-game/internal/audit"
	"github.com/Ansocialov1337/my-crash-game/internal/cache"
	"github.com/Ansocialov1337/my-crash-game/internal/casino"
	"github.com/Ansocialov1337/my-crash-game/internal/config"
	"github.com/Ansocialov1337/my-crash-game/internal/db"
	"github.com/Ansocialov1337/my-crash-game/internal/event"
	"github.com/Ansocialov1337/my-crash-game/internal/jobs"
	"github.com/Ansocialov1337/my-crash-game/internal/ledger"
	"github.com/Ansocialov1337/my-crash-game/internal/logger"
	"github.com/Ansocialov1337/my-crash-game/internal/monitoring"
	"github.com/Ansocialov1337/my-crash-game/internal/security"
	"github.com/Ansocialov1337/my-crash-game/internal/wallet"
	"github.com/Ansocialov1337/my-crash-game/internal/ws"
)

type keyStore interface {
	casino.KeyStore
	Close() error
}

type Server struct {
	app  *fiber.App
	cfg  *config.Config
	log  *zap.Logger
	db   *sql.DB
	bus  *event.Bus
	jobs *jobs.Manager
	keys keyStore

	Casino *casino.Service
	Wallet *wallet.Service
}

func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = logger.Log
	}

	database, err := db.Init(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	tiers, err := casino.LoadTiers(cfg.TiersFile)
	if err != nil {
		database.Close()
		return nil, err
	}
	dist, err := casino.NewDistribution(tiers)
	if err != nil {
		database.Close()
		return nil, err
	}

	journal := ledger.New(database)
	walletService := wallet.New(database, journal, cfg.DailyBonus, cfg.BonusCooldown)
	auditService := audit.New(database, log)

	bus := event.NewBus()
	hub := ws.NewHub(log)
	board := casino.NewLeaderboard()
	rtp := casino.NewRTP()
	casino.RegisterConsumers(bus, auditService, hub, board, rtp)

	casinoService := casino.NewService(walletService, dist, casino.Options{
		Risk:         casino.NewRisk(cfg.MinBet, cfg.MaxBet),
		Logger:       log,
		Events:       bus,
		Audit:        auditService,
		MultiSession: cfg.AllowMultiSession,
	})

	var keys keyStore = cache.NewMemory()
	if cfg.RedisAddr != "" {
		keys = cache.NewRedis(cfg.RedisAddr)
	}

	manager := jobs.New()
	if cfg.SessionMaxAge > 0 {
		manager.Register(casino.NewExpiryJob(casinoService, cfg.SessionMaxAge, cfg.SweepInterval))
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestMetrics)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "crash-game"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(hub.Handler))

	api := app.Group("/api", security.TelegramGuard(cfg.BotToken, cfg.DevUserID, log))
	wallet.RegisterRoutes(api, walletService)
	casino.RegisterRoutes(api, casinoService, board, keys, cfg.IdempotencyTTL)

	admin := app.Group("/admin", security.AdminGuard(cfg.AdminToken))
	casino.RegisterAdminRoutes(admin, casinoService, rtp)
	admin.Get("/reconcile", func(c *fiber.Ctx) error {
		records, err := auditService.ByAction("reconcile_required", c.QueryInt("limit", 50))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "internal error"})
		}
		return c.JSON(records)
	})
	admin.Get("/ledger/:uid", func(c *fiber.Ctx) error {
		uid, err := strconv.ParseInt(c.Params("uid"), 10, 64)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid uid"})
		}
		account := ledger.PlayerAccount(uid)
		entries, err := journal.Entries(c.UserContext(), account)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "internal error"})
		}
		net, err := journal.Net(c.UserContext(), account)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "internal error"})
		}
		return c.JSON(fiber.Map{"account": account, "net": net, "entries": entries})
	})
	admin.Get("/feed", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"clients": hub.Clients()})
	})

	return &Server{
		app:    app,
		cfg:    cfg,
		log:    log,
		db:     database,
		bus:    bus,
		jobs:   manager,
		keys:   keys,
		Casino: casinoService,
		Wallet: walletService,
	}, nil
}

func (s *Server) App() *fiber.App { return s.app }

// Run serves HTTP and background jobs until ctx is cancelled, then drains.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr()))
		return s.app.Listen(s.cfg.Addr())
	})

	g.Go(func() error {
		s.jobs.Start(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return s.app.ShutdownWithTimeout(10 * time.Second)
	})

	err := g.Wait()
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close waits for in-flight event handlers and releases storage.
func (s *Server) Close() error {
	s.bus.Close()
	s.bus.Wait()
	if err := s.keys.Close(); err != nil {
		s.log.Warn("close key store", zap.Error(err))
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

func requestMetrics(c *fiber.Ctx) error {
	err := c.Next()
	monitoring.HttpRequests.WithLabelValues(
		c.Method(),
		c.Route().Path,
		strconv.Itoa(c.Response().StatusCode()),
	).Inc()
	return err
}
