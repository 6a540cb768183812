package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/radeeyate/comicplate/internal/compose"
	"github.com/radeeyate/comicplate/internal/feed"
	"github.com/radeeyate/comicplate/internal/logging"
	"github.com/radeeyate/comicplate/internal/quantize"
	"github.com/radeeyate/comicplate/internal/server"
	"github.com/radeeyate/comicplate/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve composed comics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			base := logrus.NewEntry(logger)
			log := logging.Component(logger, "serve")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			codec, err := cfg.Codec()
			if err != nil {
				return err
			}
			st := store.New(codec, base)

			var sources []feed.Source
			if cfg.ComicsDir != "" {
				if info, err := os.Stat(cfg.ComicsDir); err == nil && info.IsDir() {
					sources = append(sources, feed.NewDirSource(cfg.ComicsDir, st, log))
				} else {
					log.WithField("dir", cfg.ComicsDir).Warn("comics directory not found, skipping")
				}
			}
			if cfg.Mongo.URI != "" {
				connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				mongoSource, err := feed.NewMongoSource(connectCtx, feed.MongoConfig{
					URI:        cfg.Mongo.URI,
					Database:   cfg.Mongo.Database,
					Collection: cfg.Mongo.Collection,
					Limit:      cfg.Mongo.Limit,
				}, st, log)
				cancel()
				if err != nil {
					return err
				}
				defer func() {
					closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					if err := mongoSource.Close(closeCtx); err != nil {
						log.WithError(err).Warn("mongodb disconnect failed")
					}
				}()
				sources = append(sources, mongoSource)
			}
			if len(sources) == 0 {
				return errors.New("no comic sources configured: set comics_dir or mongo.uri")
			}

			pool := feed.NewPool(cfg.MaxEntries, base, sources...)
			if cfg.Classifier.URL != "" {
				pool.SetFilter(feed.NewClassifier(feed.ClassifierConfig{
					URL:     cfg.Classifier.URL,
					Label:   cfg.Classifier.Label,
					Timeout: cfg.Classifier.Timeout,
				}, log))
			}
			go pool.Run(ctx, cfg.RefreshInterval)

			composeCfg, err := cfg.Compose()
			if err != nil {
				return err
			}
			grayKernel, packedKernel, err := cfg.Kernels()
			if err != nil {
				return err
			}

			srv := server.New(server.Options{
				Pool:        pool,
				Composer:    compose.New(composeCfg, compose.WithLogger(base)),
				Encoder:     quantize.NewEncoder(grayKernel, packedKernel),
				Order:       cfg.Order,
				CORSOrigins: cfg.CORSOrigins,
				Log:         base,
			})

			errc := make(chan error, 1)
			go func() { errc <- srv.Listen(cfg.Addr) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				log.Info("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
