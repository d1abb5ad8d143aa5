package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postboard/internal/blobstore"
	"postboard/internal/config"
	"postboard/internal/server"
	"postboard/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the postboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, slog.Default().With("component", "server"))
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	addr, err := server.ListenAddr(cfg.APIURL)
	if err != nil {
		return err
	}

	st, err := openPostStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	bs, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(addr, st, bs, logger, server.Options{
		BlobBackend:        cfg.Blobs.Backend,
		MaxUploadBytes:     cfg.Images.MaxUploadBytes,
		MultipartMaxMemory: cfg.Images.MultipartMaxMemory,
		AllowedMediaTypes:  cfg.Images.AllowedMediaTypes,
	})
	return srv.ListenAndServe(ctx)
}

func openPostStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.PostStore, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		logger.Info("connecting to postgres")
		return store.OpenPostgres(ctx, cfg.Database.URL, store.PGOptions{MaxConns: int32(cfg.Database.MaxConns)})
	default:
		logger.Info("opening database", "path", cfg.Database.Path)
		return store.Open(cfg.Database.Path)
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blobstore.BlobStore, error) {
	switch cfg.Blobs.Backend {
	case config.BlobBackendS3:
		s3cfg := cfg.Blobs.S3
		logger.Info("using s3 blob store", "endpoint", s3cfg.Endpoint, "bucket", s3cfg.Bucket, "prefix", s3cfg.Prefix)
		bs, err := blobstore.NewS3CAS(blobstore.S3Config{
			Endpoint:       s3cfg.Endpoint,
			Region:         s3cfg.Region,
			Bucket:         s3cfg.Bucket,
			Prefix:         s3cfg.Prefix,
			AccessKey:      s3cfg.AccessKey,
			SecretKey:      s3cfg.SecretKey,
			ForcePathStyle: s3cfg.ForcePathStyle,
			DisableSSL:     s3cfg.DisableSSL,
			MaxObjectBytes: cfg.Images.MaxUploadBytes,
		})
		if err != nil {
			return nil, err
		}
		if err := bs.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return bs, nil
	default:
		logger.Info("using local blob store", "root", cfg.Blobs.Root)
		return blobstore.NewLocalCAS(cfg.Blobs.Root)
	}
}
