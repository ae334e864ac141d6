package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pbaille/bib/internal/codec"
	"github.com/pbaille/bib/internal/config"
	"github.com/pbaille/bib/internal/logging"
	"github.com/pbaille/bib/internal/store"
)

type commandContext struct {
	configFlag   *string
	fileFlag     *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, fileFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		fileFlag:     fileFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
			if err := cfg.Validate(); err != nil {
				c.configErr = &usageError{err: err}
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.NewFromConfig(cfg, cmd.ErrOrStderr())
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// documentPath picks the bibliography document: an explicit positional
// argument, then --file, then bibliography.path from config.
func (c *commandContext) documentPath(explicit string) (string, error) {
	path := strings.TrimSpace(explicit)
	if path == "" && c.fileFlag != nil {
		path = strings.TrimSpace(*c.fileFlag)
	}
	if path == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return "", err
		}
		path = cfg.Bibliography.Path
	}
	if path == "" {
		return "", usageErrorf("no bibliography document given")
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve document path: %w", err)
	}
	return expanded, nil
}

func (c *commandContext) openStore(cmd *cobra.Command, path string) (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.New(path, store.Options{
		Title:        cfg.Bibliography.Title,
		DefaultTopic: cfg.Bibliography.DefaultTopic,
		Logger:       c.logger(cmd).With("component", "store"),
	}), nil
}

func (c *commandContext) encodeOptions() codec.Options {
	cfg, err := c.ensureConfig()
	if err != nil {
		return codec.Options{}
	}
	return codec.Options{PreviewLimit: cfg.Bibliography.PreviewChars}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
