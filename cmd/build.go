package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"post-archivist/internal/config"
	"post-archivist/internal/linkresolve"
	"post-archivist/internal/media"
	"post-archivist/internal/output"
	"post-archivist/internal/redisclient"
	"post-archivist/internal/render"
	"post-archivist/internal/snapshot"
	"post-archivist/internal/storage"
	"post-archivist/internal/xapi"
	"post-archivist/worker"

	"github.com/redis/go-redis/v9"
)

// backend bundles the stores selected by cache.backend.
type backend struct {
	Snapshots snapshot.Store
	Titles    linkresolve.TitleStore
	Ledger    storage.Ledger
	rdb       *redis.Client
}

func (b backend) Close() {
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
}

func openBackend(cfg config.Config) backend {
	if strings.ToLower(cfg.Cache.Backend) == "redis" {
		rdb := redisclient.New(cfg.Redis)
		ttl := config.Duration(cfg.Cache.TTL, 0)
		return backend{
			Snapshots: snapshot.NewRedisStore(rdb, ttl),
			Titles:    linkresolve.NewRedisTitles(rdb),
			Ledger:    storage.NewRedisStore(rdb, ttl),
			rdb:       rdb,
		}
	}
	return backend{
		Snapshots: snapshot.NewFileStore(cfg.Cache.Dir),
		Titles:    linkresolve.NewFileTitles(cfg.Cache.Dir),
		Ledger:    storage.NewFileStore(cfg.Cache.Dir),
	}
}

// buildArchiver wires the pipeline from configuration. It asks the API for
// the account when the user id or username is not configured.
func buildArchiver(ctx context.Context, cfg config.Config, be backend) (*worker.Archiver, error) {
	client := xapi.NewClient(cfg.X.BaseURL, cfg.X.BearerToken, cfg.X.UserID, cfg.X.PageSize, config.Duration(cfg.X.Timeout, 20*time.Second))
	userID, username := cfg.X.UserID, cfg.X.Username
	if userID == "" || username == "" {
		me, err := client.Me(ctx)
		if err != nil {
			return nil, fmt.Errorf("look up account: %w", err)
		}
		if userID == "" {
			userID = me.ID
			client.SetUserID(userID)
		}
		if username == "" {
			username = me.Username
		}
		slog.Info("archive: resolved account", "user_id", userID, "username", username)
	}

	resolver := linkresolve.New(linkresolve.Options{
		Timeout:      config.Duration(cfg.Links.Timeout, 5*time.Second),
		MaxRedirects: cfg.Links.MaxRedirects,
		SkipHosts:    cfg.Links.SkipHosts,
		Store:        be.Titles,
	})

	var dl *media.Downloader
	if !cfg.Media.Disabled {
		dl = media.New(media.Options{
			Dir:         filepath.Join(cfg.Output.Dir, cfg.Media.Dir),
			RelDir:      filepath.ToSlash(cfg.Media.Dir),
			WebPQuality: cfg.Media.WebPQuality,
			Timeout:     config.Duration(cfg.Media.Timeout, 30*time.Second),
		})
	}

	return &worker.Archiver{
		Source:      client,
		Snapshots:   be.Snapshots,
		Resolver:    resolver,
		LinkWorkers: cfg.Links.Workers,
		Media:       dl,
		Renderer: render.Renderer{
			Username:      username,
			WebBaseURL:    cfg.X.WebBaseURL,
			DocType:       cfg.Output.DocType,
			HeadingFormat: cfg.Output.HeadingFormat,
		},
		Writer:      output.Writer{Dir: cfg.Output.Dir, FilenameFormat: cfg.Output.FilenameFormat},
		OwnerID:     userID,
		CostPerPost: cfg.CostPerPost,
	}, nil
}
