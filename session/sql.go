package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/3run4/stampcard/member"
	"github.com/3run4/stampcard/models"
)

// SQLStore keeps snapshots in the session_snapshots table.
type SQLStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewSQLStore(db *gorm.DB, ttl time.Duration) *SQLStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SQLStore{db: db, ttl: ttl}
}

func (s *SQLStore) Load(ctx context.Context, id string) (member.Snapshot, bool, error) {
	key, err := storeKey(id)
	if err != nil {
		return member.Snapshot{}, false, err
	}
	var row models.SessionSnapshot
	err = s.db.WithContext(ctx).
		Where("session_id = ? AND expires_at > ?", key, time.Now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return member.Snapshot{}, false, nil
	}
	if err != nil {
		return member.Snapshot{}, false, err
	}
	return rowToSnapshot(row), true, nil
}

func (s *SQLStore) Save(ctx context.Context, id string, snap member.Snapshot) error {
	key, err := storeKey(id)
	if err != nil {
		return err
	}
	row, err := snapshotToRow(key, snap, time.Now().Add(s.ttl))
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *SQLStore) Clear(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("session_id = ?", id).Delete(&models.SessionSnapshot{}).Error
}

// Purge removes expired rows.
func (s *SQLStore) Purge(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&models.SessionSnapshot{})
	return int(res.RowsAffected), res.Error
}

func snapshotToRow(id string, snap member.Snapshot, expiresAt time.Time) (models.SessionSnapshot, error) {
	claims, err := json.Marshal(snap.PrizesClaimed)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	return models.SessionSnapshot{
		SessionID:     id,
		Email:         snap.Email,
		DisplayName:   snap.DisplayName,
		StampCount:    snap.StampCount,
		PrizesClaimed: string(claims),
		SavedAt:       snap.SavedAt,
		ExpiresAt:     expiresAt,
	}, nil
}

func rowToSnapshot(row models.SessionSnapshot) member.Snapshot {
	var claims models.PrizeClaims
	if row.PrizesClaimed != "" {
		_ = json.Unmarshal([]byte(row.PrizesClaimed), &claims)
	}
	return member.Snapshot{
		Email:         row.Email,
		DisplayName:   row.DisplayName,
		StampCount:    row.StampCount,
		PrizesClaimed: claims,
		SavedAt:       row.SavedAt,
	}
}
