package app

import (
	"log/slog"
	"os"
	"os/user"
	"strings"
)

// Unknown stands in for a user or host name that cannot be resolved.
const Unknown = "unknown"

// CurrentHost resolves the user and machine running the process.
// Lookups that fail or come back empty yield Unknown.
func CurrentHost(logger *slog.Logger) Host {
	return resolveHost(logger, currentUsername, os.Hostname)
}

func currentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

func resolveHost(logger *slog.Logger, username, hostname func() (string, error)) Host {
	if logger == nil {
		logger = slog.Default()
	}
	return Host{
		User: lookupOrUnknown(logger, "user", username),
		Name: lookupOrUnknown(logger, "hostname", hostname),
	}
}

func lookupOrUnknown(logger *slog.Logger, what string, lookup func() (string, error)) string {
	value, err := lookup()
	if err != nil {
		logger.Warn("failed to resolve "+what, "err", err)
		return Unknown
	}
	if value = strings.TrimSpace(value); value == "" {
		return Unknown
	}
	return value
}
