package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/instance"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/migrate"
	"github.com/angelmondragon/commerce-core/pkg/redis"
)

// Runtime is the process setup shared by the binaries.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []func() error
}

type RuntimeOptions struct {
	Service string
	// Redis opens the redis client; binaries that never lock or dedupe skip it.
	Redis bool
}

// Start loads .env and config, builds the service logger, opens the database
// (running dev migrations when enabled) and optionally redis. On error the
// returned Runtime still carries a usable Logger.
func Start(ctx context.Context, opts RuntimeOptions) (*Runtime, error) {
	rt := &Runtime{Logger: logger.New(logger.Options{ServiceName: opts.Service})}
	if err := godotenv.Load(); err != nil {
		rt.Logger.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return rt, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = opts.Service
	rt.Config = cfg
	rt.Logger = logger.New(logger.Options{
		ServiceName: opts.Service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if rt.DB, err = db.New(ctx, cfg.DB, rt.Logger); err != nil {
		return rt, fmt.Errorf("bootstrap database: %w", err)
	}
	rt.Defer(rt.DB.Close)
	if err := migrate.MaybeRunDev(ctx, cfg, rt.Logger, rt.DB); err != nil {
		return rt, fmt.Errorf("dev migrations: %w", err)
	}

	if opts.Redis {
		if rt.Redis, err = redis.New(ctx, cfg.Redis, rt.Logger); err != nil {
			return rt, fmt.Errorf("bootstrap redis: %w", err)
		}
		rt.Defer(rt.Redis.Close)
	}
	return rt, nil
}

// Defer registers fn to run on Close, in reverse order of registration.
func (r *Runtime) Defer(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *Runtime) Close() error {
	var errs error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, r.closers[i]())
	}
	r.closers = nil
	return errs
}

// Context decorates ctx with the fields every log line of the process carries.
func (r *Runtime) Context(ctx context.Context) context.Context {
	fields := map[string]any{"instance": instance.GetID()}
	if r.Config != nil {
		fields["env"] = r.Config.App.Env
		fields["serviceKind"] = r.Config.Service.Kind
	}
	return r.Logger.WithFields(ctx, fields)
}

// Exit logs err, releases everything opened so far and exits non-zero.
func (r *Runtime) Exit(ctx context.Context, msg string, err error) {
	r.Logger.Error(ctx, msg, err)
	if cerr := r.Close(); cerr != nil {
		r.Logger.Error(ctx, "shutdown cleanup failed", cerr)
	}
	os.Exit(1)
}
