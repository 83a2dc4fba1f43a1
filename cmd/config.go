package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"jobboard/config"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var outputJSON bool

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration the server would run with, after defaults,
the settings file and environment variables are applied. Credentials are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			if cfg.Auth.GeneratedSecret {
				printWarning(cmd, "JWT_SECRET is not set; a random secret is generated on every start")
			}

			redacted := cfg.Redacted()
			if outputJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(redacted)
			}
			printConfig(cmd.OutOrStdout(), &redacted)
			return nil
		},
	}

	configCmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return configCmd
}

type setting struct {
	key   string
	value interface{}
}

func printConfig(w io.Writer, cfg *config.Config) {
	sections := []struct {
		title    string
		settings []setting
	}{
		{"Server", []setting{
			{"PORT", cfg.Server.Port},
			{"NODE_ENV", cfg.Server.Env},
			{"PUBLIC_DIR", cfg.Server.PublicDir},
			{"TRUST_PROXY", cfg.Server.TrustProxy},
			{"CORS_ORIGIN", cfg.Server.CORSOrigin},
			{"JSON_BODY_LIMIT", cfg.Server.JSONBodyLimit},
			{"REQUEST_TIMEOUT", cfg.Server.RequestTimeout},
			{"SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout},
		}},
		{"Database", []setting{
			{"DB_URI", cfg.Database.URI},
			{"DB_NAME", cfg.Database.Name},
			{"DB_MAX_POOL_SIZE", cfg.Database.MaxPoolSize},
			{"DB_CONNECT_TIMEOUT", cfg.Database.ConnectTimeout},
			{"DB_RETRY_MAX_ELAPSED", cfg.Database.RetryMaxElapsed},
		}},
		{"Auth", []setting{
			{"JWT_SECRET", cfg.Auth.JWTSecret},
			{"JWT_EXPIRES_TIME", cfg.Auth.JWTExpiry},
			{"COOKIE_EXPIRES_TIME", cfg.Auth.CookieExpiryDays},
			{"BCRYPT_COST", cfg.Auth.BcryptCost},
		}},
		{"Uploads", []setting{
			{"UPLOAD_PATH", cfg.Uploads.Path},
			{"MAX_FILE_SIZE", cfg.Uploads.MaxFileSize},
		}},
		{"Rate limiting", []setting{
			{"RATE_LIMIT_WINDOW", cfg.RateLimit.Window},
			{"RATE_LIMIT_MAX", cfg.RateLimit.Max},
			{"RATE_LIMIT_MAX_CLIENTS", cfg.RateLimit.MaxClients},
			{"GLOBAL_RATE_LIMIT", cfg.RateLimit.GlobalPerSecond},
			{"RATE_LIMIT_REDIS_ADDR", cfg.RateLimit.RedisAddr},
			{"RATE_LIMIT_REDIS_PASSWORD", cfg.RateLimit.RedisPassword},
			{"RATE_LIMIT_REDIS_DB", cfg.RateLimit.RedisDB},
		}},
	}

	for i, section := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		headerColor.Fprintln(w, section.title)
		for _, s := range section.settings {
			fmt.Fprintf(w, "  %-26s %s\n", s.key, infoColor.Sprint(s.value))
		}
	}
}
