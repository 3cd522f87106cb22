package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type drawingRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	ChartID   string `gorm:"size:128;index:idx_drawings_chart_id"`
	Type      string `gorm:"size:16"`
	Points    string `gorm:"type:text"`
	Color     string `gorm:"size:32"`
	Selected  bool
	Locked    bool
	Visible   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (drawingRow) TableName() string { return "drawings" }

type settingsRow struct {
	ChartID   string `gorm:"primaryKey;size:128"`
	Payload   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (settingsRow) TableName() string { return "chart_settings" }

func toRow(d models.Drawing) (drawingRow, error) {
	points, err := json.Marshal(d.Points)
	if err != nil {
		return drawingRow{}, err
	}
	return drawingRow{
		ID:        d.ID,
		ChartID:   d.ChartID,
		Type:      string(d.Type),
		Points:    string(points),
		Color:     d.Color,
		Selected:  d.Selected,
		Locked:    d.Locked,
		Visible:   d.Visible,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (r drawingRow) drawing() (models.Drawing, error) {
	d := models.Drawing{
		ID:        r.ID,
		ChartID:   r.ChartID,
		Type:      models.DrawingType(r.Type),
		Color:     r.Color,
		Selected:  r.Selected,
		Locked:    r.Locked,
		Visible:   r.Visible,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Points), &d.Points); err != nil {
		return d, err
	}
	return d, nil
}

// SQLStore persists to MySQL through gorm. The schema is managed by the
// embedded goose migrations.
type SQLStore struct {
	dsn         string
	autoMigrate bool
	logger      *logrus.Logger

	mu     sync.Mutex
	db     *gorm.DB
	closed bool
}

// NewSQLStore creates a store for dsn. The connection is opened on first
// use. The DSN must enable parseTime.
func NewSQLStore(dsn string, autoMigrate bool, logger *logrus.Logger) *SQLStore {
	return &SQLStore{dsn: dsn, autoMigrate: autoMigrate, logger: logger}
}

func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *SQLStore) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.db != nil {
		return s.db.WithContext(ctx), nil
	}

	db, err := gorm.Open(mysql.Open(s.dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to database: %v", ErrUnavailable, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", ErrUnavailable, err)
	}
	if s.autoMigrate {
		if err := Migrate(sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
		s.logger.Info("SQL store migrations applied")
	}
	s.db = db
	s.logger.Info("SQL store initialized")
	return db.WithContext(ctx), nil
}

func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) IsAvailable(ctx context.Context) bool {
	db, err := s.conn(ctx)
	if err != nil {
		return false
	}
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (s *SQLStore) SaveDrawing(ctx context.Context, d models.Drawing) error {
	return s.SaveDrawings(ctx, d.ChartID, []models.Drawing{d})
}

func (s *SQLStore) SaveDrawings(ctx context.Context, chartID string, ds []models.Drawing) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		return nil
	}
	rows := make([]drawingRow, 0, len(ds))
	for _, d := range scoped(chartID, ds) {
		row, err := toRow(d)
		if err != nil {
			return fmt.Errorf("failed to encode drawing %s: %w", d.ID, err)
		}
		rows = append(rows, row)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to save drawings: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) LoadDrawings(ctx context.Context, chartID string) ([]models.Drawing, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []drawingRow
	if err := db.Where("chart_id = ?", chartID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load drawings: %w", err)
	}
	out := make([]models.Drawing, 0, len(rows))
	for _, r := range rows {
		d, err := r.drawing()
		if err != nil {
			s.logger.WithError(err).WithField("drawing_id", r.ID).Warn("Skipping undecodable drawing")
			continue
		}
		out = append(out, d)
	}
	sortDrawings(out)
	return out, nil
}

func (s *SQLStore) DeleteDrawing(ctx context.Context, chartID, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := db.Where("chart_id = ? AND id = ?", chartID, id).Delete(&drawingRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete drawing: %w", err)
	}
	return nil
}

func (s *SQLStore) ClearDrawings(ctx context.Context, chartID string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := db.Where("chart_id = ?", chartID).Delete(&drawingRow{}).Error; err != nil {
		return fmt.Errorf("failed to clear drawings: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveSettings(ctx context.Context, snap models.ChartSnapshot) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	row := settingsRow{ChartID: snap.ChartID, Payload: string(payload)}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *SQLStore) LoadSettings(ctx context.Context, chartID string) (models.ChartSnapshot, error) {
	var snap models.ChartSnapshot
	db, err := s.conn(ctx)
	if err != nil {
		return snap, err
	}
	var row settingsRow
	err = db.Where("chart_id = ?", chartID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Payload), &snap); err != nil {
		return snap, fmt.Errorf("failed to decode settings: %w", err)
	}
	return snap, nil
}
