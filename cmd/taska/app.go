package main

import (
	"fmt"

	"gorm.io/gorm"

	"taska/internal/config"
	"taska/internal/logging"
	"taska/internal/repository"
	"taska/internal/service"
)

// app holds what every subcommand needs: config, store and the task service.
type app struct {
	cfg     config.Config
	db      *gorm.DB
	tasks   *repository.TaskRepository
	members *repository.MemberRepository
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logging.Init(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	db, err := repository.NewDB(cfg.DatabaseURL, logging.Component("db"))
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return &app{
		cfg:     cfg,
		db:      db,
		tasks:   repository.NewTaskRepository(db),
		members: repository.NewMemberRepository(db),
	}, nil
}

func (a *app) taskService(sink service.NotificationSink) *service.TaskService {
	return service.NewTaskService(a.tasks, a.members, sink, logging.Component("tasks"))
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
