// Command unlock-notify runs the unlock notification dispatcher.
//
// With -serve it exposes the HTTP trigger for an external scheduler; with -once it performs a
// single dispatch run and prints the summary as JSON.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/velmie/unlocknotify"
	"github.com/velmie/unlocknotify/email"
	"github.com/velmie/unlocknotify/internal/config"
	"github.com/velmie/unlocknotify/internal/zaplog"
	"github.com/velmie/unlocknotify/memory"
	"github.com/velmie/unlocknotify/mysql"
	"github.com/velmie/unlocknotify/otelmetrics"
	"github.com/velmie/unlocknotify/roster"
	"github.com/velmie/unlocknotify/runlease"
	"github.com/velmie/unlocknotify/schedule"
	"github.com/velmie/unlocknotify/trigger"
)

const (
	exitUsage       = 2
	shutdownTimeout = 10 * time.Second
	serviceName     = "unlock-notify"
)

type flags struct {
	serve       bool
	once        bool
	inMemory    bool
	demoAddress string
	printSchema bool
	verbose     bool
}

type stores struct {
	tasks unlocknotify.TaskStore
	subs  unlocknotify.SubscriptionStore
	close func() error
}

func main() {
	var f flags
	flag.BoolVar(&f.serve, "serve", false, "Serve the HTTP trigger")
	flag.BoolVar(&f.once, "once", false, "Run one dispatch cycle and exit")
	flag.BoolVar(&f.inMemory, "memory", false, "Use the in-memory store instead of MySQL")
	flag.StringVar(&f.demoAddress, "demo-address", "", "With -memory, subscribe this address to every region")
	flag.BoolVar(&f.printSchema, "print-schema", false, "Print the MySQL schema and exit")
	flag.BoolVar(&f.verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	if f.serve == f.once && !f.printSchema {
		fmt.Fprintln(os.Stderr, "exactly one of -serve or -once is required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	if err := run(f); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if f.printSchema {
		schema, err := mysql.Schema(cfg.OutboxTable, cfg.SubscriptionTable)
		if err != nil {
			return err
		}
		fmt.Println(schema)

		return nil
	}

	logger, err := zaplog.New(f.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	season, err := schedule.NewRoster(roster.Calendar(cfg.GlobalUnlock), roster.Teams())
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	st, err := openStores(ctx, cfg, f, season, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	notifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}

	renderer, err := unlocknotify.NewTemplateRenderer(cfg.SiteURL)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	provider, err := otelmetrics.NewProvider(ctx, otelmetrics.ProviderConfig{
		ServiceName:  serviceName,
		Environment:  cfg.AppEnv,
		Exporter:     cfg.MetricsExporter,
		Interval:     cfg.MetricsInterval,
		Writer:       os.Stderr,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("init metrics provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown metrics provider", "err", err)
		}
	}()
	metrics, err := otelmetrics.New(provider)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	dispatcher, err := unlocknotify.NewDispatcher(st.tasks, st.subs, notifier, season,
		unlocknotify.WithMaxAttempts(cfg.MaxAttempts),
		unlocknotify.WithBatchSize(cfg.BatchSize),
		unlocknotify.WithLogger(logger.With("component", "dispatcher")),
		unlocknotify.WithMetrics(metrics),
		unlocknotify.WithRenderer(renderer),
	)
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}

	lease, closeLease, err := newLease(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeLease() }()

	if f.once {
		return runOnce(ctx, dispatcher, lease, logger)
	}

	opts := []trigger.Option{
		trigger.WithSecret(cfg.CronSecret),
		trigger.WithProduction(cfg.Production()),
		trigger.WithLogger(logger.With("component", "trigger")),
	}
	if lease != nil {
		opts = append(opts, trigger.WithLease(lease))
	}
	handler, err := trigger.New(dispatcher, opts...)
	if err != nil {
		return fmt.Errorf("init trigger: %w", err)
	}

	return serve(ctx, cfg.HTTPAddr, handler, logger)
}

func openStores(ctx context.Context, cfg config.Config, f flags, season *schedule.Roster, logger unlocknotify.Logger) (stores, error) {
	if f.inMemory {
		store := memory.New()
		if f.demoAddress != "" {
			for _, region := range season.Regions() {
				target := unlocknotify.Target{Kind: unlocknotify.TargetRegion, ID: string(region)}
				if _, err := store.Subscribe(ctx, f.demoAddress, f.demoAddress, target); err != nil {
					return stores{}, fmt.Errorf("seed subscription: %w", err)
				}
			}
		}

		return stores{tasks: store, subs: store, close: func() error { return nil }}, nil
	}

	if err := cfg.RequireDSN(); err != nil {
		return stores{}, err
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return stores{}, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return stores{}, fmt.Errorf("ping db: %w", err)
	}
	store, err := mysql.NewStore(db,
		mysql.WithOutboxTable(cfg.OutboxTable),
		mysql.WithSubscriptionTable(cfg.SubscriptionTable),
		mysql.WithLogger(logger.With("component", "mysql")),
	)
	if err != nil {
		_ = db.Close()
		return stores{}, fmt.Errorf("init store: %w", err)
	}

	return stores{tasks: store, subs: store, close: db.Close}, nil
}

func newNotifier(ctx context.Context, cfg config.Config, logger unlocknotify.Logger) (unlocknotify.Notifier, error) {
	var sender unlocknotify.Notifier
	switch cfg.EmailProvider {
	case config.ProviderSES:
		ses, err := email.NewSESSenderFromEnv(ctx, cfg.EmailFrom)
		if err != nil {
			return nil, fmt.Errorf("init ses: %w", err)
		}
		sender = ses
	default:
		sender = email.NewLogSender(logger.With("component", "email"))
	}

	limited, err := email.NewLimited(sender,
		email.WithRate(cfg.SendRate, cfg.SendBurst),
		email.WithTimeout(cfg.SendTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	return limited, nil
}

// newLease returns a nil lease when REDIS_ADDR is unset.
func newLease(cfg config.Config) (*runlease.Lease, func() error, error) {
	if cfg.RedisAddr == "" {
		return nil, func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	lease, err := runlease.New(client, runlease.WithTTL(cfg.LeaseTTL))
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("init run lease: %w", err)
	}

	return lease, client.Close, nil
}

func runOnce(ctx context.Context, dispatcher *unlocknotify.Dispatcher, lease *runlease.Lease, logger unlocknotify.Logger) error {
	if lease != nil {
		release, acquired, err := lease.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire run lease: %w", err)
		}
		if !acquired {
			logger.Info("another run holds the lease, skipping")
			return nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release run lease", "err", err)
			}
		}()
	}

	summary, err := dispatcher.Run(ctx)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(summary)
}

func serve(ctx context.Context, addr string, handler http.Handler, logger unlocknotify.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("trigger listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("trigger stopped")

	return nil
}
