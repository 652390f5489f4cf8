package main

import (
	"fmt"
	"strings"
	"sync"

	"reelsmith/internal/apiclient"
	"reelsmith/internal/config"
)

// commandContext resolves shared flag state for subcommands. Config is
// loaded lazily so commands that only need --addr work without a config
// file on disk.
type commandContext struct {
	addrFlag   *string
	configFlag *string
	jsonFlag   *bool

	mu        sync.Mutex
	cfg       *config.Config
	cfgPath   string
	cfgExists bool
	cfgLoaded bool
}

func newCommandContext(addrFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{addrFlag: addrFlag, configFlag: configFlag, jsonFlag: jsonFlag}
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) configPathFlag() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureConfig loads and caches the configuration file.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfgLoaded {
		return c.cfg, nil
	}
	cfg, path, exists, err := config.Load(c.configPathFlag())
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = path
	c.cfgExists = exists
	c.cfgLoaded = true
	return cfg, nil
}

// client builds an API client from --addr, falling back to the configured
// bind address.
func (c *commandContext) client() (*apiclient.Client, error) {
	if c.addrFlag != nil {
		if addr := strings.TrimSpace(*c.addrFlag); addr != "" {
			return apiclient.New(addr)
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	addr := strings.TrimSpace(cfg.Paths.APIBind)
	if addr == "" {
		return nil, fmt.Errorf("no daemon address: set paths.api_bind in config or pass --addr")
	}
	return apiclient.New(addr)
}
