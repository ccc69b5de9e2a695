package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/app/handler"
	"github.com/atinyakov/linkcore/internal/app/server"
	"github.com/atinyakov/linkcore/internal/app/service"
	"github.com/atinyakov/linkcore/internal/blobstore"
	"github.com/atinyakov/linkcore/internal/config"
	"github.com/atinyakov/linkcore/internal/repository"
	"github.com/atinyakov/linkcore/internal/storage"
	"github.com/atinyakov/linkcore/internal/worker"
)

const (
	activityBatchSize = 25
	activityInterval  = 5 * time.Second
)

// app is the wired server with the resources that need closing.
type app struct {
	router   http.Handler
	activity *worker.ActivityWorker
	closers  []func() error
	logger   *zap.Logger
}

func newApp(ctx context.Context, options *config.Options, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}

	var store storage.Store
	if options.DatabaseDSN != "" {
		logger.Info("using db")
		db, err := repository.InitDB(options.DatabaseDSN, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		store = repository.CreateRepository(db, logger)
	} else {
		logger.Info("using in memory storage")
		mem, err := storage.CreateMemoryStorage()
		if err != nil {
			return nil, err
		}
		store = mem
	}

	disk, err := blobstore.NewDisk(options.MediaDir, logger.Named("blobstore"))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.activity = worker.NewActivityWorker(logger.Named("activity"), store.Activities(), activityBatchSize, activityInterval)
	go a.activity.Run()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-a.activity.Errors():
				logger.Warn("activity batch lost", zap.Error(err))
			}
		}
	}()

	codes := service.NewCodeResolver(store, options.ShortCodeLength)
	gs1 := service.NewDigitalLinkFormatter(store)
	namespace := service.NewNamespace(store, disk, logger.Named("namespace"))

	h := handler.New(handler.Services{
		Links:     service.NewLinks(store, codes, gs1, a.activity, logger.Named("links")),
		Namespace: namespace,
		Media:     service.NewMediaCatalog(store, disk, namespace, logger.Named("media")),
		Analytics: service.NewAnalytics(store, codes, gs1, logger.Named("analytics")),
		Pinger:    store,
	}, options.ResultHostname, logger.Named("http"))

	a.router = server.Init(h, server.Options{
		Auth:          service.NewAuth(options.JWTSecret),
		TrustedSubnet: options.TrustedSubnet,
		UploadsDir:    disk.Root(),
	}, logger)

	return a, nil
}

// Close flushes pending activity and releases the store.
func (a *app) Close() {
	if a.activity != nil {
		a.activity.Close()
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Error("cannot close resource", zap.Error(err))
		}
	}
}
