package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/bib/internal/config"
	"github.com/pbaille/bib/internal/store"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "summary [file]",
		Short: "Export the annotated entries without content previews",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.documentPath(firstArg(args))
			if err != nil {
				return err
			}
			s, err := ctx.openStore(cmd, path)
			if err != nil {
				return err
			}
			text, err := s.Summary()
			if err != nil {
				return err
			}

			if strings.TrimSpace(outputPath) == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), text)
				return err
			}
			target, err := config.ExpandPath(strings.TrimSpace(outputPath))
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			if err := store.WriteFileAtomic(target, []byte(text)); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Summary written to: %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the summary to a file instead of stdout")
	return cmd
}
