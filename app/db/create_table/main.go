package main

import (
	"workbench/app/config"
	"workbench/app/db"
	"workbench/pkg/log"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := &db.Config{
		Connection:  config.Config.Database.Connection,
		Debug:       config.Config.Database.Debug,
		PoolSize:    config.Config.Database.PoolSize,
		IdleTimeout: config.Config.Database.IdleTimeout,
	}
	if err := db.Init(cfg); err != nil {
		panic(err)
	}
	if err := db.Migrate(); err != nil {
		panic(err)
	}
	log.Info(nil, "tables created")
}
