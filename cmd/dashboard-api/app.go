package main

import (
	"errors"
	"io"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/cache"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/config"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/database"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/hook"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/logging"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app holds the storage stack shared by the server and the maintenance commands.
type app struct {
	logger     *zap.Logger
	hook       *hook.Hook
	dispatcher *server.RealtimeDispatcher
	registry   *prometheus.Registry
	closers    []io.Closer
}

func openApp(appConfig config.AppConfig) (*app, error) {
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{
		logger:     logger,
		dispatcher: server.NewRealtimeDispatcher(),
		registry:   prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var client remote.Client
	if appConfig.RemoteDatabasePath != "" {
		db, err := database.OpenSQLite(appConfig.RemoteDatabasePath, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, sqlDB)
		gormClient, err := remote.NewGormClient(db)
		if err != nil {
			a.Close()
			return nil, err
		}
		client = gormClient
	}
	gate := remote.NewSwitch(client)
	gate.SetOffline(appConfig.RemoteOffline)

	store, err := cache.NewStoreFromConfig(appConfig.CacheType, appConfig.CachePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closer, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	a.hook, err = hook.New(hook.Config{
		Remote:     gate,
		Cache:      cache.New(cache.Config{Store: store, Prefix: appConfig.CachePrefix}),
		IDProvider: hook.NewUUIDProvider(),
		Logger:     logger,
		Registerer: a.registry,
		Publisher:  a.dispatcher,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the stores in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
