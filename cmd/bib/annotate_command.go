package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newAnnotateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "annotate [file] <url-pattern> <annotation>",
		Short: "Set the key findings of the first entry whose URL contains a pattern",
		Long: `Set the key findings of the first entry, in document order, whose URL
contains url-pattern (case-sensitive). An annotation of "-" is read from stdin.
Running the same annotation twice leaves the document untouched.`,
		Args: rangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var file string
			if len(args) == 3 {
				file, args = args[0], args[1:]
			}
			pattern, text := args[0], args[1]
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read annotation: %w", err)
				}
				text = string(data)
			}

			path, err := ctx.documentPath(file)
			if err != nil {
				return err
			}
			s, err := ctx.openStore(cmd, path)
			if err != nil {
				return err
			}
			entry, err := s.Annotate(pattern, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated annotation for: %s\n", entry.URL)
			return nil
		},
	}
}
