package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/bib/internal/config"
	"github.com/pbaille/bib/internal/store"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var dbPath string
	var listRuns bool
	var showID string

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Snapshot the parsed entries into a SQLite database",
		Long: `Snapshot the parsed entries into a SQLite database. With --runs the
snapshots already taken of the document are listed instead; with --show the
entries of one snapshot are printed.`,
		Args: rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(dbPath) == "" {
				return usageErrorf("--db is required")
			}
			if listRuns && showID != "" {
				return usageErrorf("--runs and --show are mutually exclusive")
			}
			target, err := config.ExpandPath(strings.TrimSpace(dbPath))
			if err != nil {
				return fmt.Errorf("resolve database path: %w", err)
			}
			path, err := ctx.documentPath(firstArg(args))
			if err != nil {
				return err
			}
			s, err := ctx.openStore(cmd, path)
			if err != nil {
				return err
			}

			x, err := store.OpenExporter(target)
			if err != nil {
				return err
			}
			defer x.Close()

			out := cmd.OutOrStdout()
			switch {
			case listRuns:
				runs, err := x.Runs(s.Path())
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No exports.")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{r.ID, r.ExportedAt.Format("2006-01-02 15:04"), strconv.Itoa(r.EntryCount), strconv.Itoa(r.Skipped)})
				}
				headers := []string{"Export", "Exported", "Entries", "Skipped"}
				fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
				return nil

			case showID != "":
				items, err := x.Entries(strings.TrimSpace(showID))
				if err != nil {
					return err
				}
				fmt.Fprint(out, listPlain(items))
				return nil
			}

			run, err := s.Export(x)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Exported %d %s to %s (export %s)\n",
				run.EntryCount, plural(run.EntryCount, "entry", "entries"), target, run.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file to write")
	cmd.Flags().BoolVar(&listRuns, "runs", false, "List previous exports of the document")
	cmd.Flags().StringVar(&showID, "show", "", "Print the entries of one export")
	return cmd
}
