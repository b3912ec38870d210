package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"workbench/app/config"
	"workbench/app/db"
	"workbench/app/engine"
	"workbench/app/executor"
	"workbench/app/llm"
	"workbench/app/mq"
	"workbench/app/retrieval"
	"workbench/pkg/contextx"
	"workbench/pkg/log"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
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

	client := llm.NewClient(config.Config.LLM)
	scheduler := engine.NewScheduler(queue, config.Config.Scheduler.MaxRetries)
	runners := executor.NewRunnerSet(client, provider, config.Config.Agents.SandboxURL, config.Config.Scheduler.TaskTimeout)

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(baseCtx)
	for i := 0; i < config.Config.Scheduler.WorkerCount; i++ {
		worker := executor.NewWorker(queue, runners, scheduler,
			config.Config.Scheduler.MaxRetries, config.Config.Scheduler.PopTimeout)
		group.Go(func() error {
			return worker.Run(contextx.WithParent(groupCtx))
		})
	}

	log.Infof(nil, "worker pool started with %d workers", config.Config.Scheduler.WorkerCount)
	if err := group.Wait(); err != nil {
		log.Error(nil, err)
	}
}
