package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"jobboard/config"

	"go.uber.org/zap"
)

// EnsureDataDirectories creates the public and upload directories and checks
// they are writable. This is a pre-flight check that runs before the API is built.
func EnsureDataDirectories(cfg *config.Config, sugar *zap.SugaredLogger) error {
	for _, dir := range []string{cfg.Server.PublicDir, cfg.Uploads.Path} {
		if dir == "" {
			continue
		}
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for %s: %w", dir, err)
		}

		if err := os.MkdirAll(absPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w\n"+
				"  Remediation: Ensure the parent directory exists and is writable\n"+
				"  For Docker: Check volume mount permissions", dir, err)
		}

		// Verify write permissions
		testFile := filepath.Join(absPath, ".jobboard_write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			return fmt.Errorf("directory %s is not writable: %w\n"+
				"  Remediation: Check file system permissions\n"+
				"  For bare metal: Run 'chmod -R u+w %s'", dir, err, absPath)
		}
		os.Remove(testFile)

		sugar.Debugw("Data directory ready", "path", absPath)
	}
	return nil
}

// ClassifyConnectionError turns a MongoDB connection failure into a hint
// an operator can act on. uri must already be redacted.
func ClassifyConnectionError(err error, uri string) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || strings.Contains(errStr, "server selection timeout") {
		return fmt.Sprintf("Connection to MongoDB at %s timed out.\n"+
			"  Possible causes:\n"+
			"  - MongoDB is starting up (wait and retry)\n"+
			"  - Network latency or firewall blocking the connection\n"+
			"  Remediation:\n"+
			"  - Check if MongoDB is running: docker ps | grep mongo\n"+
			"  - Raise DB_CONNECT_TIMEOUT if the server is remote", uri)
	}

	var opErr *net.OpError
	if (errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED)) ||
		strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused") {
		return fmt.Sprintf("Connection refused by MongoDB at %s.\n"+
			"  This usually means MongoDB is not running.\n"+
			"  Remediation:\n"+
			"  - Start MongoDB: docker compose up -d mongo\n"+
			"  - Verify DB_URI in config/config.env", uri)
	}

	if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "lookup") {
		return fmt.Sprintf("Cannot resolve hostname in MongoDB address %s.\n"+
			"  Remediation:\n"+
			"  - Verify the hostname is correct\n"+
			"  - Check DNS configuration", uri)
	}

	if strings.Contains(errStr, "authentication") || strings.Contains(errStr, "auth error") {
		return fmt.Sprintf("Authentication failed for MongoDB at %s.\n"+
			"  Remediation:\n"+
			"  - Verify the user and password in DB_URI\n"+
			"  - Check the authSource option", uri)
	}

	return fmt.Sprintf("Failed to connect to MongoDB at %s.\n"+
		"  Remediation:\n"+
		"  - Ensure MongoDB is running and accessible\n"+
		"  - Verify network connectivity", uri)
}
