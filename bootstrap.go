package main

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/file-hub/file-hub/internal/cache"
	"github.com/file-hub/file-hub/internal/config"
	"github.com/file-hub/file-hub/internal/filecache"
	"github.com/file-hub/file-hub/internal/remote"
	"github.com/file-hub/file-hub/internal/repository"
	"github.com/file-hub/file-hub/internal/server"
	"github.com/file-hub/file-hub/internal/server/routes"
)

// services 持有进程内所有长生命周期组件。
type services struct {
	db      *repository.DB
	manager *filecache.Manager
	app     *fiber.App
}

func buildServices(cfg *config.Config, logger *logrus.Logger) (*services, error) {
	db, err := repository.Open(cfg.Global.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("打开元数据库失败: %w", err)
	}

	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	remoteStore, err := remote.New(cfg.Remote)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化远端存储失败: %w", err)
	}

	manager, err := filecache.NewManager(filecache.Options{
		Disk:    store,
		Remote:  remoteStore,
		Index:   db.CacheIndex(),
		Catalog: db.Files(),
		Limits: filecache.Limits{
			CountThreshold: cfg.Cache.FileCountThreshold,
			CountTarget:    cfg.Cache.FileCountTarget,
			SizeThreshold:  cfg.Cache.FileSizeThreshold,
			SizeTarget:     cfg.Cache.FileSizeTarget,
		},
		SweepConcurrency: cfg.Cache.SweepConcurrency,
		Logger:           logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:        logger,
		Cache:         manager,
		Catalog:       db.Files(),
		MaxUploadSize: cfg.Global.MaxUploadSize,
	})
	if err != nil {
		_ = manager.Close()
		_ = db.Close()
		return nil, err
	}
	routes.RegisterDiagnosticsRoutes(app, manager, db.Files())

	return &services{db: db, manager: manager, app: app}, nil
}

// Close 先等待后台下载与淘汰退出，再关闭数据库。
func (s *services) Close() error {
	var result *multierror.Error
	if err := s.manager.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
