package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3run4/stampcard/config"
	"github.com/3run4/stampcard/member"
	"github.com/3run4/stampcard/models"
	"github.com/3run4/stampcard/utils"
)

// Store caches member snapshots between requests and restarts. It is only a cache:
// every snapshot read back is revalidated against the gateway before use.
type Store interface {
	Load(ctx context.Context, id string) (member.Snapshot, bool, error)
	Save(ctx context.Context, id string, snap member.Snapshot) error
	Clear(ctx context.Context, id string) error
}

// NewStore builds the store selected by cfg.SessionBackend. When Redis or MySQL cannot be
// reached it logs and falls back to memory, so the service keeps working on one instance.
func NewStore(cfg config.AppConfig, logger *zap.Logger) Store {
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		rc, err := utils.NewRedis(cfg)
		if err == nil {
			logger.Info("session store: redis", zap.String("host", cfg.RedisHost), zap.Int("port", cfg.RedisPort))
			return NewRedisStore(rc, ttl)
		}
		_ = rc.Close()
		logger.Warn("session store: redis unavailable, using memory", zap.Error(err))
	case config.SessionBackendMySQL:
		db, err := config.OpenDatabase(cfg, &models.SessionSnapshot{})
		if err == nil {
			logger.Info("session store: mysql", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
			return NewSQLStore(db, ttl)
		}
		logger.Warn("session store: mysql unavailable, using memory", zap.Error(err))
	}
	return NewMemoryStore(ttl)
}

func storeKey(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("session store: empty session id")
	}
	return id, nil
}
