// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/blockroom/models"
)

// GormDirectory stores the directory through GORM.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormPostgreSQL opens a PostgreSQL-backed directory and migrates the
// rooms table.
func NewGormPostgreSQL(dsn string) (*GormDirectory, error) {
	return NewGormDirectory(postgres.Open(dsn))
}

// NewGormDirectory opens a directory on any GORM dialector.
func NewGormDirectory(dialector gorm.Dialector) (*GormDirectory, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormRoom{}); err != nil {
		return nil, fmt.Errorf("migrate rooms: %w", err)
	}
	return &GormDirectory{db: db}, nil
}

func (g *GormDirectory) CreateRoom(ctx context.Context, roomID, mode string) (models.RoomInfo, error) {
	now := time.Now().UnixMilli()
	row := models.GormRoom{RoomID: roomID, Mode: mode, CreatedAt: now, LastSeenAt: now}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.RoomInfo{}, fmt.Errorf("create room %s: %w", roomID, ErrDuplicateRoom)
		}
		return models.RoomInfo{}, err
	}
	return row.Info(), nil
}

func (g *GormDirectory) FindRoom(ctx context.Context, roomID string) (models.RoomInfo, error) {
	var row models.GormRoom
	if err := g.db.WithContext(ctx).Where("room_id = ?", roomID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoomInfo{}, ErrRecordNotFound
		}
		return models.RoomInfo{}, err
	}
	return row.Info(), nil
}

func (g *GormDirectory) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	result := g.db.WithContext(ctx).
		Model(&models.GormRoom{}).
		Where("room_id = ?", roomID).
		Update("last_seen_at", at.UnixMilli())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (g *GormDirectory) ListRooms(ctx context.Context, limit int) ([]models.RoomInfo, error) {
	var rows []models.GormRoom
	err := g.db.WithContext(ctx).
		Order("last_seen_at DESC").
		Order("room_id").
		Limit(listLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := make([]models.RoomInfo, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.Info())
	}
	return list, nil
}

func (g *GormDirectory) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
