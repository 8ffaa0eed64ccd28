package archive

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"latksync/internal/stroke"
)

// StrokeRecord is the durable row for one archived stroke.
type StrokeRecord struct {
	ID         uint           `gorm:"primaryKey"`
	Room       string         `gorm:"index:idx_room_frame;not null"`
	FrameIndex int            `gorm:"index:idx_room_frame;not null"`
	Color      stroke.Color   `gorm:"serializer:json"`
	Points     []stroke.Point `gorm:"serializer:json"`
	CreatedAt  time.Time
}

func (StrokeRecord) TableName() string {
	return "stroke_records"
}

func (r StrokeRecord) Stroke() stroke.Stroke {
	return stroke.Stroke{Index: r.FrameIndex, Color: r.Color, Points: r.Points}
}

func newRecord(room string, s stroke.Stroke) StrokeRecord {
	points := s.Points
	if points == nil {
		points = []stroke.Point{}
	}
	return StrokeRecord{Room: room, FrameIndex: s.Index, Color: s.Color, Points: points}
}

// PostgresStore archives strokes through gorm.
type PostgresStore struct {
	db        *gorm.DB
	batchSize int
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewPostgresStoreFromDB(db)
}

// NewPostgresStoreFromDB migrates the schema on db and wraps it.
func NewPostgresStoreFromDB(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&StrokeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate stroke_records: %w", err)
	}
	return &PostgresStore{db: db, batchSize: 500}, nil
}

func (p *PostgresStore) Append(ctx context.Context, room string, s stroke.Stroke) error {
	rec := newRecord(room, s)
	if err := p.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save stroke to postgres: %w", err)
	}
	return nil
}

// AppendBatch inserts all entries in one transaction.
func (p *PostgresStore) AppendBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	records := make([]StrokeRecord, len(entries))
	for i, e := range entries {
		records[i] = newRecord(e.Room, e.Stroke)
	}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&records, p.batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert strokes: %w", err)
	}
	return nil
}

func (p *PostgresStore) Frame(ctx context.Context, room string, index int) ([]stroke.Stroke, error) {
	var records []StrokeRecord
	err := p.db.WithContext(ctx).
		Where("room = ? AND frame_index = ?", room, index).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get frame: %w", err)
	}
	out := make([]stroke.Stroke, len(records))
	for i, r := range records {
		out[i] = r.Stroke()
	}
	return out, nil
}

func (p *PostgresStore) Indices(ctx context.Context, room string) ([]int, error) {
	var out []int
	err := p.db.WithContext(ctx).
		Model(&StrokeRecord{}).
		Where("room = ?", room).
		Distinct().
		Order("frame_index").
		Pluck("frame_index", &out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	return out, nil
}

// Close closes the database connection
func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
