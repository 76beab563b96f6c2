package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bioreader/internal/api"
	"bioreader/internal/app"
	"bioreader/internal/config"
	"bioreader/internal/device"
	"bioreader/internal/logging"
	"bioreader/internal/notifications"
)

type commandContext struct {
	configFlag  *string
	jsonFlag    *bool
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		jsonFlag:    jsonFlag,
		verboseFlag: verboseFlag,
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
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) verbose() bool {
	return c.verboseFlag != nil && *c.verboseFlag
}

// logger writes warnings to stderr, or everything at the configured level
// with --verbose.
func (c *commandContext) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level := "warn"
	if c.verbose() {
		level = cfg.Logging.Level
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
}

// openReader runs the device in-process. When another process holds the
// reader lock it talks to the daemon instead; follow relays the daemon's
// operator instructions to stderr.
func (c *commandContext) openReader(cmd *cobra.Command, follow bool) (reader, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	rt, err := c.buildRuntime(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if err := rt.Start(); err != nil {
		_ = rt.Close()
		if errors.Is(err, device.ErrDeviceLocked) {
			return c.openRemote(cmd, cfg, follow)
		}
		return nil, err
	}
	return &localReader{rt: rt}, nil
}

// openStatusReader prefers a running daemon and otherwise inspects the host
// without opening the device.
func (c *commandContext) openStatusReader(cmd *cobra.Command) (reader, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client := c.newClient(cfg)
	if err := client.Health(cmd.Context()); err == nil {
		return &remoteReader{client: client}, nil
	}
	rt, err := c.buildRuntime(cmd, cfg)
	if err != nil {
		return nil, err
	}
	return &localReader{rt: rt}, nil
}

func (c *commandContext) buildRuntime(cmd *cobra.Command, cfg *config.Config) (*app.Runtime, error) {
	logger, err := c.logger(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.Build(cmd.Context(), cfg, logger, app.Options{Sink: instructionPrinter(cmd)})
}

func (c *commandContext) openRemote(cmd *cobra.Command, cfg *config.Config, follow bool) (reader, error) {
	client := c.newClient(cfg)
	if err := client.Health(cmd.Context()); err != nil {
		return nil, fmt.Errorf("reader is in use by another process and no daemon answers at %s: %w", cfg.API.Bind, err)
	}
	r := &remoteReader{client: client}
	if follow {
		r.follow(cmd.Context(), cmd.ErrOrStderr())
	}
	return r, nil
}

func (c *commandContext) newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.API.Bind, cfg.API.Token, nil)
}

func instructionPrinter(cmd *cobra.Command) notifications.Sink {
	out := cmd.ErrOrStderr()
	colorize := shouldColorize(out)
	return notifications.Func(func(_ context.Context, message string) {
		fmt.Fprintln(out, renderInstruction(message, colorize))
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func remediation(err error) string {
	var remote *api.RemoteError
	if errors.As(err, &remote) {
		return remote.Remediation()
	}
	return device.Remediation(err)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
