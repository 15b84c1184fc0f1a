package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// projectCacheFolder returns the per-project folder below the user config dir that
// holds the index stores, creating it when missing.
func projectCacheFolder(projectRoot string) (string, error) {
	configDir, err := getUserConfigDir()
	if err != nil {
		return "", err
	}

	projectSlug := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(projectRoot)
	expectedDir := filepath.Join(configDir, "phptype", projectSlug)

	if err := os.MkdirAll(expectedDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	return expectedDir, nil
}

func getUserConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		usr, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("failed to get current user: %w", err)
		}
		return filepath.Join(usr.HomeDir, ".config"), nil
	}
	return configDir, nil
}
