package config

import "github.com/go-ini/ini"

type LogConfig struct {
	Level           string `json:"level"`
	Format          string `json:"format"`
	TimestampFormat string `json:"timestamp_format"`
	DirPath         string `json:"dir_path"`
}

func NewDefaultLogConfig(c *ini.Section) LogConfig {
	level := envOr("LOG_LEVEL", c.Key("level").String())
	if level == "" {
		level = "info"
	}
	return LogConfig{
		Level:           level,
		Format:          "{{.timestamp}} {{.pid}} [{{.name}}] [{{.levelname}}] [{{.requestId}} {{.session}}] {{.message}}",
		TimestampFormat: "2006-01-02 15:04:05.000",
		DirPath:         c.Key("dir_path").String(),
	}
}
