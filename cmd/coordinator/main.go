package main

import (
	"os"
	"strconv"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/config"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/event"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/fanout"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/journal"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/logger"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/metrics"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/server"
)

func main() {
	cfg, err := config.ReadConfig()
	if err != nil {
		logger.FatalF("Error occured while reading config %v", err)
		return
	}
	loggerCallback := logger.Init()
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)

	port := cfg.AppPort
	if len(os.Args) > 1 {
		port, err = strconv.Atoi(os.Args[1])
		if err != nil {
			logger.FatalF("Invalid port argument %q", os.Args[1])
			return
		}
	}

	var deliveryJournal fanout.Journal
	if cfg.Journal.Enabled {
		if err := journal.Connect(); err != nil {
			logger.FatalF("Error occured while initializing journal database, details: %v", err)
			return
		}
		deliveryJournal = journal.NewRecorder()
	}

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	if err := server.NewCoordinator(cfg, deliveryJournal).Start(port); err != nil {
		logger.FatalF("Coordinator stopped, details: %v", err)
	}
}
