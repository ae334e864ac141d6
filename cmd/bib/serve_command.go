package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/bib/internal/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve the bibliography over a JSON HTTP API",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := ctx.documentPath(firstArg(args))
			if err != nil {
				return err
			}
			s, err := ctx.openStore(cmd, path)
			if err != nil {
				return err
			}
			bind := strings.TrimSpace(addr)
			if bind == "" {
				bind = cfg.API.Bind
			}
			server := api.New(s, bind, ctx.encodeOptions(), ctx.logger(cmd).With("component", "api"))
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (defaults to api.bind)")
	return cmd
}
