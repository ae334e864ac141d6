package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/bib/internal/codec"
	"github.com/pbaille/bib/internal/domain"
	"github.com/pbaille/bib/internal/logging"
)

const (
	listTitleWidth = 70
	listURLWidth   = 80
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var unannotated bool
	var format string

	cmd := &cobra.Command{
		Use:   "list [file]",
		Short: "List entries with their annotation status",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := resolveListFormat(cmd, format)
			switch mode {
			case "table", "plain", "json", "yaml":
			default:
				return usageErrorf("unsupported output format %q (use table, plain, json or yaml)", format)
			}

			path, err := ctx.documentPath(firstArg(args))
			if err != nil {
				return err
			}
			s, err := ctx.openStore(cmd, path)
			if err != nil {
				return err
			}
			result, err := s.List(unannotated)
			if err != nil {
				return err
			}
			if result.Items == nil {
				result.Items = []domain.Listing{}
			}

			switch mode {
			case "json":
				return writeJSON(cmd, result)
			case "yaml":
				return writeYAML(cmd, result)
			case "table":
				fmt.Fprint(cmd.OutOrStdout(), listTable(result.Items))
			default:
				fmt.Fprint(cmd.OutOrStdout(), listPlain(result.Items))
			}
			if result.Skipped > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d malformed %s skipped\n", result.Skipped, plural(result.Skipped, "block", "blocks"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&unannotated, "unannotated", "u", false, "Show only entries without key findings")
	cmd.Flags().StringVar(&format, "output", "", "Output format: table, plain, json or yaml (default table on a terminal, plain otherwise)")
	return cmd
}

func resolveListFormat(cmd *cobra.Command, format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" {
		return format
	}
	if logging.IsTerminal(cmd.OutOrStdout()) {
		return "table"
	}
	return "plain"
}

func listPlain(items []domain.Listing) string {
	if len(items) == 0 {
		return "No entries.\n"
	}
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "%d. [%s] %s\n", item.Index, statusMark(item.Annotated), truncate(codec.Heading(item.Entry), listTitleWidth))
		fmt.Fprintf(&b, "   %s\n", clip(item.Entry.URL, listURLWidth))
	}
	return b.String()
}

func listTable(items []domain.Listing) string {
	if len(items) == 0 {
		return "No entries.\n"
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(item.Index),
			statusMark(item.Annotated),
			item.Topic,
			truncate(item.Entry.Title, listTitleWidth),
			item.Entry.Year,
			item.Entry.Domain,
		})
	}
	headers := []string{"#", "", "Topic", "Title", "Year", "Source"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	return renderTable(headers, rows, aligns) + "\n"
}

func statusMark(annotated bool) string {
	if annotated {
		return "✓"
	}
	return "○"
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
