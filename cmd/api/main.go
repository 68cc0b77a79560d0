package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/findesk/findesk/internal/api/http"
	"github.com/findesk/findesk/internal/api/http/handlers"
	"github.com/findesk/findesk/internal/auth"
	"github.com/findesk/findesk/internal/config"
	"github.com/findesk/findesk/internal/domain"
	"github.com/findesk/findesk/internal/events"
	"github.com/findesk/findesk/internal/feed"
	"github.com/findesk/findesk/internal/identity"
	"github.com/findesk/findesk/internal/notify"
	"github.com/findesk/findesk/internal/observability"
	"github.com/findesk/findesk/internal/persistence"
	"github.com/findesk/findesk/internal/repository"
	"github.com/findesk/findesk/internal/service"
	"github.com/findesk/findesk/internal/sla"
	"github.com/findesk/findesk/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisConn := persistence.NewRedis(cfg.Redis, logger)
	defer redisConn.Close()

	var ticketRepo repository.TicketRepository
	var lookupRepo repository.LookupRepository
	if pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		lookupRepo = repository.NewLookupRepository(pool)
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
		lookupRepo = repository.NewMemoryLookupRepository(defaultLookupSeed())
	}

	dispatcher := events.NewInMemoryDispatcher()

	directory := identity.NewDirectory(cfg.Auth.AdminDirectory)
	var resolver identity.RoleResolver
	if cfg.Auth.IdPSecret != "" {
		resolver = identity.NewClaimsResolver(cfg.Auth.IdPSecret)
	} else {
		resolver = identity.NewAllowlistResolver(cfg.Auth.AdminEmails, cfg.Auth.AdminPassphraseHash)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	if cfg.Mail.RelayURL != "" {
		relay := notify.NewHTTPRelay(cfg.Mail.RelayURL, cfg.Mail.Timeout())
		notify.NewService(relay, logger, cfg.Mail).RegisterHandlers(dispatcher)
	} else {
		logger.Warn("MAIL_RELAY_URL not provided; ticket mail disabled")
	}

	liveFeed := feed.New(redisConn.Client, logger)
	liveFeed.RegisterHandlers(dispatcher)

	blobs, closeBucket, err := storage.OpenBucket(ctx, cfg.Blob)
	if err != nil {
		logger.Warn("blob bucket unavailable; storing attachments in memory", zap.Error(err))
		blobs = storage.NewMemoryStore()
	} else {
		defer closeBucket()
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Directory:  directory,
		Formatter:  sla.Formatter{Format: sla.ParseFormat(cfg.SLA.Format)},
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	lookupService := service.NewLookupService(lookupRepo)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisConn, metrics),
		Auth:           handlers.NewAuthHandler(resolver, tokens, directory),
		Tickets:        handlers.NewTicketsHandler(ticketService, blobs),
		AdminTickets:   handlers.NewAdminTicketsHandler(ticketService),
		Lookups:        handlers.NewLookupsHandler(lookupService),
		Feed:           handlers.NewFeedHandler(liveFeed),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// defaultLookupSeed mirrors the seed migration for memory-backed boots.
func defaultLookupSeed() map[domain.LookupKind][]string {
	return map[domain.LookupKind][]string{
		domain.LookupKindCategory: {
			"Clientes",
			"Comissões e/ou SplitC",
			"Basement",
		},
		domain.LookupKindDepartment: {
			"Aquisição",
			"Backoffice",
			"Consultoria",
			"Diretoria",
			"Finanças & Compliance",
			"Pessoas & Cultura",
			"Securitário",
			"Sucesso do Cliente",
			"Tecnologia",
		},
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
