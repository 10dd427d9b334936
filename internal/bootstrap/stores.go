// Package bootstrap opens the stores selected by configuration. It is shared
// by the API server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"

	"campushub/server/internal/config"
	"campushub/server/internal/database"
	"campushub/server/internal/files"
	"campushub/server/internal/membership"
	"campushub/server/internal/messages"
	"campushub/server/internal/users"

	"go.uber.org/zap"
)

// Stores bundles every persistence component
type Stores struct {
	Users    users.Directory
	Members  membership.Store
	Messages messages.Store
	Catalog  files.Catalog
	Blobs    files.BlobStore

	closers []func()
}

// Close releases database connections
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Open connects the configured store driver and blob backend, applies the
// schema where needed and makes sure the default group exists.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Stores, error) {
	s := &Stores{}

	var err error
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		err = s.openPostgres(ctx, cfg, log)
	case config.DriverMongo:
		err = s.openMongo(ctx, cfg, log)
	default:
		s.Users = users.NewMemory()
		s.Members = membership.NewMemory()
		s.Messages = messages.NewMemory(nil)
		s.Catalog = files.NewMemoryCatalog()
		log.Warn("using in-memory stores, data is lost on restart")
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	if s.Blobs, err = openBlobs(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}

	if _, err := s.Members.EnsureDefault(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create default group: %w", err)
	}
	return s, nil
}

func (s *Stores) openPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	pool, err := database.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, pool.Close)

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	s.Users = users.NewPostgres(pool)
	s.Members = membership.NewPostgres(pool)
	s.Messages = messages.NewPostgres(pool)
	s.Catalog = files.NewPostgresCatalog(pool)
	return nil
}

func (s *Stores) openMongo(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	client, db, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Warn("failed to disconnect mongo", zap.Error(err))
		}
	})

	if s.Users, err = users.NewMongo(ctx, db); err != nil {
		return err
	}
	if s.Members, err = membership.NewMongo(ctx, db); err != nil {
		return err
	}
	if s.Messages, err = messages.NewMongo(ctx, db, nil); err != nil {
		return err
	}
	if s.Catalog, err = files.NewMongoCatalog(ctx, db); err != nil {
		return err
	}
	return nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (files.BlobStore, error) {
	policy := files.Policy{MaxBytes: cfg.MaxUploadBytes}
	if cfg.BlobDriver == config.BlobS3 {
		return files.NewS3Store(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix, policy)
	}
	return files.NewLocalStore(cfg.UploadDir, policy)
}
