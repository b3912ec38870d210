package config

import (
	"os"

	"github.com/go-ini/ini"
)

var (
	LoadFile = loadFile()
	Config   = Configuration{
		API:       NewDefaultAPIConfig(LoadFile.Section("api")),
		Database:  NewDefaultDatabaseConfig(LoadFile.Section("db")),
		Messaging: NewMessagingConfig(LoadFile.Section("mq")),
		LLM:       NewLLMConfig(LoadFile.Section("llm")),
		Scheduler: NewDefaultSchedulerConfig(LoadFile.Section("scheduler")),
		Workflow:  NewDefaultWorkflowConfig(LoadFile.Section("workflow")),
		Retrieval: NewRetrievalConfig(LoadFile.Section("retrieval")),
		Agents:    NewAgentsConfig(LoadFile.Section("agents")),
		LOG:       NewDefaultLogConfig(LoadFile.Section("log")),
	}
)

type Configuration struct {
	API       APIConfig       `json:"api"`
	Database  DatabaseConfig  `json:"database"`
	Messaging MessagingConfig `json:"messaging"`
	LLM       LLMConfig       `json:"llm"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Workflow  WorkflowConfig  `json:"workflow"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Agents    AgentsConfig    `json:"agents"`
	LOG       LogConfig       `json:"log"`
}

func loadFile() *ini.File {
	path := os.Getenv("WORKBENCH_CONFIG")
	if path == "" {
		path = "config/config.ini"
	}
	f, err := ini.Load(path)
	if err != nil {
		return ini.Empty()
	}
	return f
}

// envOr returns the environment value when set, the ini value otherwise.
func envOr(envKey string, iniValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return iniValue
}
