package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/vacancywatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")

// Open opens a sqlite database at dsn and migrates the schema. Access is
// funnelled through a single connection so concurrent jobs never observe
// SQLITE_BUSY.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Sighting{},
	)
}

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(lc fx.Lifecycle, log *zap.Logger, db *gorm.DB) *Store {
	return &Store{db, log}
}

func (s *Store) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	tx := s.db.WithContext(ctx).Where("id = ?", userID).First(user)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	return user, nil
}

// SaveUser inserts or fully overwrites the user row.
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

// ListTrackable returns active users. Callers still check Filter.IsEmpty,
// since emptiness is not expressible as a single column predicate.
func (s *Store) ListTrackable(ctx context.Context) (models.Users, error) {
	var users models.Users
	tx := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&users)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) FindSightings(ctx context.Context, userID int64) (models.Sightings, error) {
	var sightings models.Sightings
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&sightings)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return sightings, nil
}

// FindUndelivered returns undelivered sightings in discovery order.
func (s *Store) FindUndelivered(ctx context.Context, userID int64) (models.Sightings, error) {
	var sightings models.Sightings
	tx := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("undelivered = ?", true).
		Order("discovered_at, id").
		Find(&sightings)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return sightings, nil
}

func (s *Store) CountUndelivered(ctx context.Context, userID int64) (int64, error) {
	var count int64
	tx := s.db.WithContext(ctx).
		Model(&models.Sighting{}).
		Where("user_id = ?", userID).
		Where("undelivered = ?", true).
		Count(&count)
	return count, tx.Error
}

// SaveSighting inserts the sighting unless one already exists for the same
// (user, catalog id). The existing row, including its delivery state, is
// left untouched. created reports whether a row was inserted.
func (s *Store) SaveSighting(ctx context.Context, sighting *models.Sighting) (created bool, err error) {
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "catalog_id"}},
			DoNothing: true,
		}).
		Create(sighting)
	if err := tx.Error; err != nil {
		return false, err
	}
	return tx.RowsAffected > 0, nil
}

// MarkDelivered stamps the delivery time once. Already delivered sightings
// keep their original timestamp.
func (s *Store) MarkDelivered(ctx context.Context, sightingID uint, at time.Time) error {
	tx := s.db.WithContext(ctx).
		Model(&models.Sighting{}).
		Where("id = ?", sightingID).
		Where("delivered_at IS NULL").
		Updates(map[string]any{
			"delivered_at": at,
			"undelivered":  false,
		})
	return tx.Error
}

func (s *Store) DeleteSightings(ctx context.Context, userID int64) (int64, error) {
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Sighting{})
	if err := tx.Error; err != nil {
		return 0, err
	}
	if tx.RowsAffected > 0 {
		s.log.Sugar().Infow("Evicted sightings", "user_id", userID, "count", tx.RowsAffected)
	}
	return tx.RowsAffected, nil
}
