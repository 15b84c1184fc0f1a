package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shopware/php-typeinfer/internal/indexer"
	"github.com/shopware/php-typeinfer/internal/php"
)

const fileStateDB = "files.db"

func newIndexCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "index [root]",
		Short: "Record where the classes and functions of a project are declared",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close()

			scanner, classes, err := p.openScanner()
			if err != nil {
				return err
			}
			defer func() { _ = scanner.Close() }()

			if err := scanner.IndexAll(cmd.Context()); err != nil {
				return err
			}
			locations, err := classes.Locations()
			if err != nil {
				return fmt.Errorf("failed to read class index: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d declarations\n", len(locations))

			if !watch {
				return nil
			}
			scanner.SetOnUpdate(func() {
				p.logger.Info("Index updated")
			})
			if err := scanner.StartWatcher(); err != nil {
				return err
			}
			p.logger.Info("Watching for changes", zap.String("root", p.root))
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-index changed files")
	return cmd
}

// openScanner opens the persistent stores of the project. Closing the scanner closes
// the class indexer as well.
func (p *project) openScanner() (*indexer.FileScanner, *php.ClassIndexer, error) {
	cacheDir := p.settings.CacheDir
	if cacheDir == "" {
		dir, err := projectCacheFolder(p.root)
		if err != nil {
			return nil, nil, err
		}
		cacheDir = dir
	}

	rebuilt, err := indexer.PrepareCache(cacheDir)
	if err != nil {
		return nil, nil, err
	}
	if rebuilt {
		p.logger.Info("Building index from scratch", zap.String("cache", cacheDir))
	}

	classes, err := php.NewClassIndexer(cacheDir)
	if err != nil {
		return nil, nil, err
	}
	scanner, err := indexer.NewFileScanner(p.root, filepath.Join(cacheDir, fileStateDB), p.logger)
	if err != nil {
		_ = classes.Close()
		return nil, nil, err
	}
	scanner.AddIndexer(classes)
	return scanner, classes, nil
}
