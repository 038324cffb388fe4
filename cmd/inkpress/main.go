package main

import (
	"log"
	"os"

	"github.com/ejneale/inkpress/internal/api"
	"github.com/ejneale/inkpress/internal/config"
	"github.com/ejneale/inkpress/internal/pool"
	"github.com/ejneale/inkpress/internal/service"
	"github.com/ejneale/inkpress/internal/store"
	"github.com/ejneale/inkpress/internal/watermark"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("inkpress: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"pool_size", cfg.PoolSize,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	p, err := pool.New(cfg.PoolSize, func() (pool.Executor, error) {
		return watermark.NewEngine(), nil
	}, logger)
	if err != nil {
		log.Fatalf("failed to initialize pool: %v", err)
	}
	defer p.Terminate()

	svc := service.New(p, db, logger)
	srv := api.NewServer(cfg.ListenAddr, db, svc, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
