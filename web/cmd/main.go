package main

import (
	"fmt"
	"net/http"

	"workbench/app/config"
	"workbench/app/db"
	"workbench/app/engine"
	"workbench/app/llm"
	"workbench/app/mq"
	"workbench/app/retrieval"
	"workbench/app/tools"
	"workbench/app/workflow"
	"workbench/pkg/log"
	"workbench/web/handles"

	"github.com/joho/godotenv"
	"github.com/julienschmidt/httprouter"
)

func init() {
	_ = godotenv.Load()

	log.Initialize(log.Options{
		Level:           config.Config.LOG.Level,
		Format:          config.Config.LOG.Format,
		TimestampFormat: config.Config.LOG.TimestampFormat,
		DirPath:         config.Config.LOG.DirPath,
	})

	cfg := &db.Config{
		Connection:  config.Config.Database.Connection,
		Debug:       config.Config.Database.Debug,
		PoolSize:    config.Config.Database.PoolSize,
		IdleTimeout: config.Config.Database.IdleTimeout,
	}
	if err := db.Init(cfg); err != nil {
		log.Error(nil, err)
		panic(err)
	}
}

func main() {
	queue, err := mq.New(config.Config.Messaging.Connection, config.Config.Messaging.QueueName)
	if err != nil {
		log.Error(nil, err)
		panic(err)
	}
	defer queue.Close()

	provider, err := retrieval.New(config.Config.Retrieval)
	if err != nil {
		log.Error(nil, err)
		panic(err)
	}

	agents, err := workflow.LoadAgentDefinitions(config.Config.Agents.DefinitionsDir)
	if err != nil {
		log.Error(nil, err)
		panic(err)
	}

	client := llm.NewClient(config.Config.LLM)
	planner := llm.NewPlannerClient(config.Config.LLM)

	splitter := engine.NewSplitter(planner)
	scheduler := engine.NewScheduler(queue, config.Config.Scheduler.MaxRetries)
	taskEngine := engine.NewEngine(splitter, scheduler)

	registry := tools.NewStandardRegistry()
	wfEngine := workflow.NewEngine(client, planner, provider, registry, config.Config.Workflow)

	h := handles.NewHandlers(taskEngine, wfEngine, agents)

	router := httprouter.New()
	router.POST("/v1/tasks", h.SubmitTask)
	router.GET("/v1/tasks/:id", h.GetTask)
	router.POST("/v1/sessions", h.CreateSession)
	router.GET("/v1/sessions", h.ListSessions)
	router.GET("/v1/sessions/:id", h.GetSession)
	router.DELETE("/v1/sessions/:id", h.DeleteSession)
	router.POST("/v1/sessions/:id/chat", h.Chat)

	addr := fmt.Sprintf("%s:%d", config.Config.API.Host, config.Config.API.Port)
	log.Infof(nil, "api server listening on %s", addr)
	log.Error(nil, http.ListenAndServe(addr, router))
}
