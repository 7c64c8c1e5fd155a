package main

import (
	"errors"
	"os"

	"glimpse/internal/command"
	"glimpse/internal/config"
)

// tokenEnv lets callers supply the auth token without putting it on the
// command line.
const tokenEnv = "GLIMPSE_AUTH_TOKEN"

// commandContext resolves shared flags lazily so commands that never talk
// to the daemon (config init) do not require one.
type commandContext struct {
	socketFlag *string
	tokenFlag  *string
	configFlag *string
	jsonFlag   *bool

	cfg *config.Config
}

func newCommandContext(socketFlag, tokenFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		tokenFlag:  tokenFlag,
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, _, _, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// client resolves the socket path and token from flags, environment, and
// configuration, in that order.
func (c *commandContext) client() (*controlClient, error) {
	socket := *c.socketFlag
	if socket == "" {
		socket = os.Getenv(command.SocketEnv)
	}
	token := *c.tokenFlag
	if token == "" {
		token = os.Getenv(tokenEnv)
	}

	if socket == "" || token == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		if socket == "" {
			socket = cfg.Paths.ControlSocket
		}
		if token == "" {
			token = cfg.Control.AuthToken
		}
	}
	if socket == "" {
		return nil, errors.New("control socket not configured; pass --socket or set paths.control_socket")
	}
	return newControlClient(socket, token), nil
}
