package main

import (
	"strings"
	"sync"

	"sift/internal/api"
	"sift/internal/config"
)

type commandContext struct {
	addrFlag   *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addrFlag, configFlag *string) *commandContext {
	return &commandContext{
		addrFlag:   addrFlag,
		configFlag: configFlag,
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
		c.config = cfg
	})
	return c.config, c.configErr
}

// client builds an API client from the --addr flag, falling back to the
// configured bind address and token.
func (c *commandContext) client() (*api.Client, error) {
	addr := ""
	if c.addrFlag != nil {
		addr = strings.TrimSpace(*c.addrFlag)
	}
	token := ""
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		if addr == "" {
			addr = cfg.Paths.APIBind
		}
		token = cfg.Paths.APIToken
	}
	return api.NewClient(addr, token), nil
}
