package bootstrap

import (
	"context"
	"fmt"
	"net"
	"os"

	"jobboard/api"
	"jobboard/config"
	"jobboard/core"

	"go.uber.org/zap"
)

// Options controls how NewApp builds the application. Zero values mean
// "load from disk" and "use the real process".
type Options struct {
	// ConfigPath is the dotenv settings file; empty uses config.DefaultConfigFile
	ConfigPath string
	// Config replaces loading from ConfigPath
	Config *config.Config
	// Logger replaces the logger built by InitLogger
	Logger *zap.Logger
	// Exit ends the process; defaults to os.Exit
	Exit func(int)
}

// App represents the job board service with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Storage    *StorageComponents
	Redis      *core.RedisCache
	API        *api.API
	Supervisor *Supervisor
}

// NewApp loads configuration, builds the logger, starts connecting to the
// database and assembles the API. It does not listen yet.
func NewApp(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := InitConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := opts.Logger
	if logger == nil {
		built, _, err := InitLogger(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = built
	}
	sugar := logger.Sugar()

	app := &App{Config: cfg, Logger: logger, Sugar: sugar}
	logConfig(cfg, sugar)

	if err := EnsureDataDirectories(cfg, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}
	app.Supervisor = NewSupervisor(sugar, cfg.Server.ShutdownTimeout, exit)

	storageComponents, err := InitDatabase(ctx, cfg, sugar, app.Supervisor.Crash)
	if err != nil {
		return nil, err
	}
	app.Storage = storageComponents
	app.Redis = InitRedis(ctx, cfg, sugar)

	apiServer, err := api.NewAPI(cfg, api.Options{
		Jobs:   storageComponents.Jobs,
		Users:  storageComponents.Users,
		DB:     storageComponents.DB,
		Redis:  app.Redis,
		Faults: app.Supervisor,
	}, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to build API: %w", err)
	}
	app.API = apiServer

	app.Supervisor.OnShutdown(func(ctx context.Context) {
		closeStorage(ctx, app.Storage, app.Redis, sugar)
		_ = logger.Sync()
	})

	sugar.Infow("Request pipeline ready", "stages", apiServer.Stages())
	return app, nil
}

// Listen binds the configured port
func (a *App) Listen() error {
	if err := a.Supervisor.Listen(a.API.NewServer()); err != nil {
		return err
	}

	port := a.Config.Server.Port
	if tcp, ok := a.Supervisor.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	a.Sugar.Infof("Server started on port %d in %s mode", port, a.Config.Server.Env)
	return nil
}

// Run listens and serves until ctx ends or a fault stops the process.
// It returns the exit code that was passed to Options.Exit.
func (a *App) Run(ctx context.Context) (int, error) {
	if err := a.Listen(); err != nil {
		return ExitFault, err
	}
	return a.Supervisor.Run(ctx), nil
}
