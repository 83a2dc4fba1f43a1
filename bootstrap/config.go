package bootstrap

import (
	"fmt"
	"os"

	"jobboard/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds the process logger. Development and test use a colored
// console encoder; production writes JSON at info level.
func InitLogger(cfg *config.Config) (*zap.Logger, *zap.SugaredLogger, error) {
	if cfg.IsProduction() {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			zapcore.InfoLevel,
		)
		logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		return logger, logger.Sugar(), nil
	}

	// Create a colored console encoder config
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // Colored levels
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // Readable timestamps
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder      // Short file paths

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		zapcore.DebugLevel,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the application configuration. There is no logger yet,
// so failures go to stderr as well as being returned.
func InitConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// logConfig reports the effective settings once the logger exists
func logConfig(cfg *config.Config, sugar *zap.SugaredLogger) {
	redacted := cfg.Redacted()
	sugar.Infow("Config loaded",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"db_uri", redacted.Database.URI,
		"db_name", cfg.Database.Name,
		"rate_limit_window", cfg.RateLimit.Window,
		"rate_limit_max", cfg.RateLimit.Max,
		"rate_limit_store", rateLimitStoreName(cfg))

	if cfg.Auth.GeneratedSecret {
		sugar.Warn("JWT_SECRET is not set, using a generated secret; issued tokens will not survive a restart")
	}
}

func rateLimitStoreName(cfg *config.Config) string {
	if cfg.RateLimit.RedisAddr != "" {
		return "redis"
	}
	return "memory"
}
