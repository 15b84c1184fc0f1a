// Command phptype inspects what the inference engine derives for a PHP project:
// it maintains the persistent class index, dumps inferred types as JSON and prints
// syntax trees.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "phptype",
		Short:         "Static type inference for PHP endpoint handlers",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	registerSettingsFlags(root.PersistentFlags())

	root.AddCommand(newIndexCommand(), newResolveCommand(), newASTCommand())
	return root
}

// project is a PHP project root with its loaded settings.
type project struct {
	root     string
	settings Settings
	logger   *zap.Logger
}

func openProject(cmd *cobra.Command, root string) (*project, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	settings, err := loadSettings(root, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(settings.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &project{root: root, settings: settings, logger: logger}, nil
}

func (p *project) close() {
	_ = p.logger.Sync()
}

// isDir reports whether path names an existing directory.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
