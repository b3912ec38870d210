package config

import "github.com/go-ini/ini"

type MessagingConfig struct {
	Connection string `json:"connection"`
	QueueName  string `json:"queue_name"`
}

func NewMessagingConfig(c *ini.Section) MessagingConfig {
	connection := envOr("WORK_QUEUE_URL", c.Key("connection").String())
	if connection == "" {
		connection = "memory://"
	}
	queueName := c.Key("queue_name").String()
	if queueName == "" {
		queueName = "workbench-subtasks"
	}
	return MessagingConfig{
		Connection: connection,
		QueueName:  queueName,
	}
}
