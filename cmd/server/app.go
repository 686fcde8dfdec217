package main

import (
	"fmt"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/config"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/sender"
	"github.com/beontime/internal/service"
	"github.com/beontime/internal/store"
)

// app 汇总各子命令共享的运行时依赖
type app struct {
	cfg      config.AppConfig
	clock    clock.Clock
	services *service.Services
}

// bootstrap 读取配置、初始化数据库并装配服务
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if err := db.Init(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	if err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword, cfg.SuperRootEmail); err != nil {
		return nil, fmt.Errorf("ensure super root user: %w", err)
	}

	msgSender, err := sender.New(cfg, store.NewUserStore(db.DB))
	if err != nil {
		return nil, err
	}

	clk := clock.Real(loc)
	return &app{
		cfg:      cfg,
		clock:    clk,
		services: service.NewServices(db.DB, cfg, clk, msgSender),
	}, nil
}
