package config

import "github.com/go-ini/ini"

type DatabaseConfig struct {
	Connection  string `json:"connection"`
	Debug       bool   `json:"debug"`
	PoolSize    int    `json:"pool_size"`
	IdleTimeout int    `json:"idle_timeout"`
}

func NewDefaultDatabaseConfig(c *ini.Section) DatabaseConfig {
	connection := envOr("DATABASE_URL", c.Key("connection").String())
	if connection == "" {
		connection = "sqlite:///var/lib/workbench/workbench.db"
	}
	debug, _ := c.Key("debug").Bool()
	poolSize, _ := c.Key("pool_size").Int()
	idleTimeout, _ := c.Key("idle_timeout").Int()
	return DatabaseConfig{
		Connection:  connection,
		Debug:       debug,
		PoolSize:    poolSize,
		IdleTimeout: idleTimeout,
	}
}
