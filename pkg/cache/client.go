package cache

import (
	"context"
	"io"
	"log"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/packfinderz-mobile/pkg/cache/models"
	"github.com/angelmondragon/packfinderz-mobile/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-mobile/pkg/errors"
	"github.com/angelmondragon/packfinderz-mobile/pkg/logger"
)

// Client wraps the sqlite-backed local cache. Mutations serialize behind a
// single write lock; reads bind straight to the shared connection.
type Client struct {
	conn *gorm.DB
	mu   sync.Mutex
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens (and optionally migrates) the cache file.
func New(ctx context.Context, cfg config.CacheConfig, logg *logger.Logger) (*Client, error) {
	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(sqlite.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "opening cache")
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "getting sql handle")
	}
	// sqlite has a single writer; keep the pool honest about it.
	sqlDB.SetMaxOpenConns(1)

	if cfg.AutoMigrate {
		if err := conn.AutoMigrate(&models.CartLine{}, &models.StoreRecord{}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "migrating cache schema")
		}
	}

	if logg != nil {
		logg.Info(ctx, "local cache opened")
	}

	return &Client{conn: conn}, nil
}

// NewWithConn binds a client to an existing GORM connection. Used by tests
// that run against an in-memory database.
func NewWithConn(conn *gorm.DB) (*Client, error) {
	if conn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeCacheUnavailable, "nil cache connection")
	}
	if err := conn.AutoMigrate(&models.CartLine{}, &models.StoreRecord{}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCacheUnavailable, err, "migrating cache schema")
	}
	return &Client{conn: conn}, nil
}

// DB returns the underlying GORM connection for reads.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Ping verifies the cache file is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the cache connection.
func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx executes fn inside a transaction while holding the write lock, so
// concurrent mutations to the cache serialize. Rolls back on error/panic.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
