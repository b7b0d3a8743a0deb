package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ngshijun/clinic-inventory-manager/internal/app"
	"github.com/ngshijun/clinic-inventory-manager/internal/auth"
	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
	"github.com/ngshijun/clinic-inventory-manager/internal/inventory"
	"github.com/ngshijun/clinic-inventory-manager/internal/liveness"
	"github.com/ngshijun/clinic-inventory-manager/internal/payroll"
	"github.com/ngshijun/clinic-inventory-manager/internal/platform/cache"
	"github.com/ngshijun/clinic-inventory-manager/internal/platform/db"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
	"github.com/ngshijun/clinic-inventory-manager/internal/stockmove"
	"github.com/ngshijun/clinic-inventory-manager/internal/stockreq"
	"github.com/ngshijun/clinic-inventory-manager/internal/unitcache"
	"github.com/ngshijun/clinic-inventory-manager/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "clinic_session", cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)

	listener := gateway.NewListener(pool, logger,
		inventory.TableName, stockmove.TableName, stockreq.TableName, payroll.TableName)

	itemTable := gateway.NewPGTable[inventory.Item](pool, inventory.TableName, listener, logger)
	movementTable := gateway.NewPGTable[stockmove.Movement](pool, stockmove.TableName, listener, logger)
	requestTable := gateway.NewPGTable[stockreq.Request](pool, stockreq.TableName, listener, logger)
	employeeTable := gateway.NewPGTable[payroll.Employee](pool, payroll.TableName, listener, logger)
	unitTable := gateway.NewPGTable[unitcache.ItemUnit](pool, inventory.TableName, listener, logger)

	units := unitcache.New(unitTable)
	movementStore := stockmove.NewStore(logger, movementTable, units)
	inventoryStore := inventory.NewStore(logger, itemTable, movementStore, units, auditLogger)
	requestStore := stockreq.NewStore(logger, requestTable, units, inventoryStore, auditLogger)
	payrollStore := payroll.NewStore(logger, employeeTable, auditLogger)

	monitor := liveness.NewMonitor(logger, func(ctx context.Context) error {
		_, err := itemTable.Select(ctx, gateway.Query{Columns: []string{"id"}, Limit: 1})
		return err
	}, liveness.Config{
		ProbeInterval: cfg.ProbeInterval,
		CheckInterval: cfg.CheckInterval,
		StaleAfter:    cfg.StaleAfter,
		OnStale: func(ctx context.Context) {
			resyncAll(ctx, logger, inventoryStore, movementStore, requestStore, payrollStore)
		},
	})

	gate := auth.NewGate(map[auth.Role]string{
		auth.RoleAdmin: cfg.AdminPasswordHash,
		auth.RoleStaff: cfg.StaffPasswordHash,
	})
	authHandler := auth.NewHandler(logger, gate, sessionManager)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		Inventory:      inventory.NewHandler(logger, inventoryStore),
		Movements:      stockmove.NewHandler(logger, movementStore),
		Requests:       stockreq.NewHandler(logger, requestStore),
		Payroll:        payroll.NewHandler(logger, payrollStore),
		Monitor:        monitor,
	})

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{
				Type: jobs.TaskStoresResync,
				Handler: jobs.NewStoresResyncHandler(logger, map[string]jobs.Resyncer{
					"inventory":       inventoryStore,
					"stock_movements": movementStore,
					"stock_requests":  requestStore,
					"payroll":         payrollStore,
				}),
			},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ResyncCron, Task: jobs.NewStoresResyncTask()},
		},
	})
	if err != nil {
		logger.Error("configure worker", slog.Any("error", err))
		os.Exit(1)
	}

	// Mirrors must be primed before the server accepts traffic.
	resyncAll(ctx, logger, inventoryStore, movementStore, requestStore, payrollStore)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return inventoryStore.Run(gctx) })
	g.Go(func() error { return movementStore.Run(gctx) })
	g.Go(func() error { return requestStore.Run(gctx) })
	g.Go(func() error { return payrollStore.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run", slog.Any("error", err))
		os.Exit(1)
	}
}

func resyncAll(ctx context.Context, logger *slog.Logger, stores ...jobs.Resyncer) {
	for _, store := range stores {
		if err := store.FetchAll(ctx); err != nil {
			logger.Error("fetch store", slog.Any("error", err))
		}
	}
}
