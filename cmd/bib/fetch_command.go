package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbaille/bib/internal/domain"
	"github.com/pbaille/bib/internal/fetcher"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Download pages and print them as payloads for format",
		Long: `Download each URL, extract readable text and citation metadata, and print
the result as payloads that "bib format" accepts.`,
		Args: rangeArgs(1, 64),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cmd).With("component", "fetcher")
			f := fetcher.New(fetcher.Options{
				Timeout:      time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
				UserAgent:    cfg.Fetch.UserAgent,
				MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			})

			payloads := make([]domain.Payload, 0, len(args))
			for _, rawURL := range args {
				if !fetcher.IsURL(rawURL) {
					return usageErrorf("not a URL: %q", rawURL)
				}
				p, err := f.Fetch(cmd.Context(), rawURL)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", rawURL, err)
				}
				logger.Info("fetched page", "url", p.URL, "chars", len(p.Content))
				payloads = append(payloads, p)
			}

			var out any = payloads
			if len(payloads) == 1 {
				out = payloads[0]
			}
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "", "json":
				return writeJSON(cmd, out)
			case "yaml":
				return writeYAML(cmd, out)
			default:
				return usageErrorf("unsupported output format %q (use json or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "output", "json", "Output format: json or yaml")
	return cmd
}
