package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/internal/lobby"
)

// SessionRecord holds the latest full document of one league.
type SessionRecord struct {
	Code      string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	State     string    `gorm:"not null;index"`
	Version   int       `gorm:"not null"`
	Document  []byte    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (SessionRecord) TableName() string { return "auction_sessions" }

// PostgresStore keeps the latest snapshot per league for crash recovery.
type PostgresStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Save(ctx context.Context, snap lobby.Snapshot) error {
	rec := SessionRecord{
		Code:      snap.Code,
		Name:      snap.Name,
		State:     string(snap.State),
		Version:   snap.Version,
		Document:  snap.Document,
		UpdatedAt: snap.Taken,
	}
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "state", "version", "document", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", snap.Code, err)
	}
	return nil
}

func (p *PostgresStore) LoadAll(ctx context.Context) ([]lobby.Snapshot, error) {
	var recs []SessionRecord
	if err := p.db.WithContext(ctx).Order("code").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	out := make([]lobby.Snapshot, len(recs))
	for i, r := range recs {
		out[i] = recordToSnapshot(r)
	}
	return out, nil
}

func recordToSnapshot(r SessionRecord) lobby.Snapshot {
	return lobby.Snapshot{
		Code:     r.Code,
		Name:     r.Name,
		State:    engine.State(r.State),
		Version:  r.Version,
		Taken:    r.UpdatedAt,
		Document: r.Document,
	}
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
