package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"workbench/app/config"
	"workbench/app/db"
	"workbench/app/engine"
	"workbench/app/mq"
	"workbench/pkg/contextx"
	"workbench/pkg/log"

	"github.com/joho/godotenv"
)

// The coordinator process owns background maintenance: the periodic liveness
// sweep that reclaims sub-tasks whose worker died.
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

	scheduler := engine.NewScheduler(queue, config.Config.Scheduler.MaxRetries)
	sweeper := engine.NewSweeper(scheduler,
		config.Config.Scheduler.MaxRetries,
		config.Config.Scheduler.LivenessThreshold,
		config.Config.Scheduler.SweepInterval)

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx := contextx.WithParent(baseCtx)
	if err := scheduler.RecoverReadyTasks(ctx); err != nil {
		log.Errorf(ctx, "boot recovery scan failed: %s", err.Error())
	}

	log.Info(nil, "coordinator started")
	sweeper.Run(ctx)
}
