package main

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/netlog/internal/announce"
	"github.com/zulandar/netlog/internal/broadcast"
	"github.com/zulandar/netlog/internal/config"
	"github.com/zulandar/netlog/internal/db"
	"github.com/zulandar/netlog/internal/logging"
	"github.com/zulandar/netlog/internal/netlog"
	"github.com/zulandar/netlog/internal/schedule"
	"github.com/zulandar/netlog/internal/store"
	"gorm.io/gorm"
)

// app is the wired object graph shared by serve and the session commands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	db      *gorm.DB
	hub     *broadcast.Hub
	manager *netlog.Manager
}

// connectFromConfig loads the config, builds the logger, and opens the
// configured database.
func connectFromConfig(configPath string) (*config.Config, *logrus.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	gormDB, err := db.Connect(cfg.Database, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, gormDB, nil
}

// newApp connects, migrates, and wires the manager to a fresh hub.
func newApp(configPath string) (*app, error) {
	cfg, log, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}

	var sched cron.Schedule
	if cfg.Net.Schedule != "" {
		sched, err = schedule.Parse(cfg.Net.Schedule)
		if err != nil {
			return nil, err
		}
	}

	ann, err := announce.FromConfig(cfg.Announce, cfg.Net.Name)
	if err != nil {
		return nil, err
	}

	hub := broadcast.NewHub(broadcast.HubOpts{
		Buffer: cfg.Server.SubscriberBuffer,
		Logger: log,
	})
	manager, err := netlog.New(netlog.Opts{
		Store:           store.NewGorm(gormDB, cfg.Database.Timeout),
		Publisher:       hub,
		Logger:          log,
		Announcer:       ann,
		AnnounceTimeout: cfg.Announce.Timeout,
		Schedule:        sched,
		Location:        cfg.Location(),
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, db: gormDB, hub: hub, manager: manager}, nil
}

// close waits for pending announcements and releases the database.
func (a *app) close() {
	a.manager.Wait()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
