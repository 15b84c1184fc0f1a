package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shopware/php-typeinfer/internal/php"
)

func newASTCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ast <file>",
		Short: "Print the syntax tree of a PHP file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			f, err := php.ParseSource(args[0], content)
			if err != nil {
				return err
			}
			defer f.Close()

			return php.DebugAST(cmd.OutOrStdout(), f)
		},
	}
}
