package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbaille/bib/internal/codec"
	"github.com/pbaille/bib/internal/config"
	"github.com/pbaille/bib/internal/domain"
	"github.com/pbaille/bib/internal/payload"
	"github.com/pbaille/bib/internal/store"
)

func newFormatCommand(ctx *commandContext) *cobra.Command {
	var (
		inputPath  string
		outputPath string
		appendMode bool
		create     bool
		topic      string
		annotation string
		title      string
		authors    string
		date       string
	)

	cmd := &cobra.Command{
		Use:   "format",
		Short: "Format fetched payloads into bibliography entries",
		Long: `Read one payload or a list of payloads (JSON or YAML with url and content
keys) and render them as bibliography entries. Without --output the entries
are printed; with --output a new document is created, or with --append the
entries are added after the existing ones.`,
		Args: rangeArgs(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if create && !appendMode {
				return usageErrorf("--create only applies with --append")
			}
			if appendMode && strings.TrimSpace(outputPath) == "" {
				return usageErrorf("--append requires --output")
			}

			payloads, err := readPayloads(cmd, inputPath)
			if err != nil {
				return err
			}

			overrides := domain.Overrides{
				Title:      title,
				Authors:    codec.SplitAuthors(authors),
				Date:       date,
				Annotation: annotation,
			}
			opts := ctx.encodeOptions()
			entries := make([]domain.Entry, 0, len(payloads))
			for _, p := range payloads {
				entry, err := codec.Encode(p, overrides, opts)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
			}

			out := cmd.OutOrStdout()
			if strings.TrimSpace(outputPath) == "" {
				rendered := codec.RenderEntries(entries)
				if t := strings.TrimSpace(topic); t != "" {
					doc := &codec.Document{}
					doc.Append(t, codec.ProcessedStamp(time.Now()), entries...)
					rendered = codec.RenderDocument(doc)
				}
				_, err := io.WriteString(out, rendered)
				return err
			}

			target, err := config.ExpandPath(strings.TrimSpace(outputPath))
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			s, err := ctx.openStore(cmd, target)
			if err != nil {
				return err
			}

			var result *store.WriteResult
			if appendMode {
				result, err = s.Append(entries, store.AppendOptions{Topic: topic, CreateIfMissing: create})
			} else {
				result, err = s.Create(entries, topic)
			}
			if err != nil {
				return err
			}

			verb := "Appended"
			if result.Created {
				verb = "Created"
			}
			fmt.Fprintf(out, "%s %d %s in %s (section %q, %d total)\n",
				verb, result.Added, plural(result.Added, "entry", "entries"), result.Path, result.Topic, result.Total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Payload file (JSON or YAML); reads stdin when empty or -")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Bibliography document to write")
	cmd.Flags().BoolVarP(&appendMode, "append", "a", false, "Append to an existing document")
	cmd.Flags().BoolVar(&create, "create", false, "With --append, create the document when missing")
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic section header")
	cmd.Flags().StringVar(&annotation, "annotation", "", "Key findings for the entries")
	cmd.Flags().StringVar(&title, "title", "", "Override title")
	cmd.Flags().StringVar(&authors, "authors", "", "Override authors (comma-separated)")
	cmd.Flags().StringVar(&date, "date", "", "Override publication date")
	return cmd
}

func readPayloads(cmd *cobra.Command, path string) ([]domain.Payload, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return payload.Read(cmd.InOrStdin())
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return payload.Read(f)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
