package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aryan0dhankhar/doorgate/internal/directory"
	"github.com/aryan0dhankhar/doorgate/internal/handler"
	"github.com/aryan0dhankhar/doorgate/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/doorgate/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/doorgate/internal/observability/tracing"
	"github.com/aryan0dhankhar/doorgate/internal/repository"
	"github.com/aryan0dhankhar/doorgate/internal/security"
	"github.com/aryan0dhankhar/doorgate/internal/security/audit"
	"github.com/aryan0dhankhar/doorgate/internal/security/auth"
	"github.com/aryan0dhankhar/doorgate/internal/security/ratelimit"
	"github.com/aryan0dhankhar/doorgate/internal/service"
	"github.com/aryan0dhankhar/doorgate/internal/worker"
	"github.com/aryan0dhankhar/doorgate/pkg/config"
	"github.com/aryan0dhankhar/doorgate/pkg/database"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doorgate",
		Short:         "Door access decision server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Apply migrations, start directory sync and serve HTTP",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Run one directory reconciliation and print the report",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSync(cmd.Context(), cmd)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context())
			},
		},
	)
	return cmd
}

// app holds the components shared by every subcommand
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	pool   *database.ConnectionPool
	users  *repository.UserRepository
	groups *repository.GroupRepository
	doors  *repository.DoorRepository
	audit  *repository.AuditRepository
}

func setup(ctx context.Context) (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)

	// 3. Open the cache store and apply migrations
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
	}, log)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	db := pool.GetDB()
	return &app{
		cfg:    cfg,
		log:    log,
		pool:   pool,
		users:  repository.NewUserRepository(db, log),
		groups: repository.NewGroupRepository(db, log),
		doors:  repository.NewDoorRepository(db, log),
		audit:  repository.NewAuditRepository(db, log),
	}, nil
}

func (a *app) reconciler() *service.ReconcileService {
	l := a.cfg.LDAP
	dir := directory.NewLDAPDirectory(directory.Config{
		URL:                l.URL,
		BindDN:             l.BindDN,
		BindPassword:       l.BindPassword,
		Timeout:            l.Timeout,
		InsecureSkipVerify: l.InsecureSkipVerify,
	}, a.log)

	rc := service.DefaultReconcileConfig()
	rc.UsersDN = l.UsersDN
	rc.GroupsDN = l.GroupsDN
	if l.PrincipalAttribute != "" {
		rc.PrincipalAttr = l.PrincipalAttribute
	}
	if l.TagAttribute != "" {
		rc.TagAttr = l.TagAttribute
	}
	return service.NewReconcileService(dir, a.users, a.groups, rc, a.log)
}

func runMigrate(ctx context.Context) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Close()
	a.log.Info("migrations applied", slog.String("driver", a.pool.Driver()))
	return nil
}

func runSync(ctx context.Context, cmd *cobra.Command) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.SyncTimeout)
	defer cancel()
	report, err := a.reconciler().Reconcile(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Close()
	cfg, log := a.cfg, a.log
	log.Info("starting doorgate server", slog.String("environment", cfg.Environment))

	// 4. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// 5. Optional Redis for the cross-replica sync lock
	var (
		locker     worker.Locker
		redisCheck handler.Pinger
	)
	if cfg.RedisURL != "" {
		rc, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer rc.Close()
		locker, redisCheck = rc, rc
	}

	// 6. Services
	syncWorker := worker.NewReconcileWorker(a.reconciler(), locker, cfg.SyncInterval, cfg.SyncTimeout, log)
	feed := service.NewAuditFeed()
	accessService := service.NewAccessService(a.users, a.doors, a.audit, feed, cfg.DecisionTimeout, log)
	adminService := service.NewAdminService(a.users, a.groups, a.doors, a.audit, syncWorker, log)

	accounts, err := auth.ParseAccounts(cfg.AdminUsers)
	if err != nil {
		return fmt.Errorf("invalid ADMIN_USERS: %w", err)
	}
	if accounts.Len() == 0 {
		log.Warn("no admin accounts configured; admin API logins will fail")
	}
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "doorgate")
	auditLogger := audit.NewLogger(log)
	authService := service.NewAuthService(accounts, tokenManager, cfg.AdminTokenTTL, auditLogger, log)
	loginLimiter := ratelimit.NewLimiter(cfg.LoginRatePerMinute, time.Minute)
	defer loginLimiter.Stop()

	// 7. HTTP surface
	router := handler.NewRouter(handler.RouterDeps{
		Access:       handler.NewAccessHandler(accessService, log),
		Health:       handler.NewHealthHandler(handler.PingFunc(a.pool.Health), redisCheck, log),
		Auth:         handler.NewAuthHandler(authService, log),
		Admin:        handler.NewAdminHandler(adminService, log),
		Logs:         handler.NewLogsHandler(feed, log, cfg.CORSAllowedOrigins),
		Tokens:       tokenManager,
		Authz:        security.NewAuthorizationService(log),
		Audit:        auditLogger,
		LoginLimiter: loginLimiter,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		Logger:       log,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           otelhttp.NewHandler(router, tracing.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 8. Run the server and the sync worker until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", slog.Int("port", cfg.ServerPort), slog.String("db_driver", cfg.DBDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return syncWorker.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
