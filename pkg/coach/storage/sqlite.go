package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andywang514/violin-coach/pkg/models"
)

const DefaultDBFile = "violin-coach.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type practiceResult struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	ScoreName    string `gorm:"index:idx_score_name"`
	BaseBPM      int
	FinalBPM     int
	DynamicTempo bool
	Beats        int
	Correct      int
	Incorrect    int
	Missed       int
	DurationMs   int
	CreatedAt    time.Time
}

type beatRecord struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ResultID       string `gorm:"type:varchar(36);index:idx_result"`
	BeatIndex      int
	Classification string
	BPM            int
	MIDIPitch      int
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("COACH_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&practiceResult{}, &beatRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveResult stores a practice result and its per-beat records in one
// transaction. An empty result ID gets a fresh UUID; the assigned ID is
// returned.
func (c *DBClient) SaveResult(result models.PracticeResult, beats []models.BeatRecord) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	row := practiceResult{
		ID:           result.ID,
		ScoreName:    result.ScoreName,
		BaseBPM:      result.BaseBPM,
		FinalBPM:     result.FinalBPM,
		DynamicTempo: result.DynamicTempo,
		Beats:        result.Beats,
		Correct:      result.Correct,
		Incorrect:    result.Incorrect,
		Missed:       result.Missed,
		DurationMs:   result.DurationMs,
		CreatedAt:    result.CreatedAt,
	}

	entries := make([]beatRecord, 0, len(beats))
	for _, b := range beats {
		entries = append(entries, beatRecord{
			ResultID:       result.ID,
			BeatIndex:      b.BeatIndex,
			Classification: b.Classification,
			BPM:            b.BPM,
			MIDIPitch:      b.MIDIPitch,
		})
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("creating practice result: %w", err)
		}
		if len(entries) > 0 {
			if err := tx.CreateInBatches(entries, 500).Error; err != nil {
				return fmt.Errorf("batch insert beat records: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return result.ID, nil
}

func (c *DBClient) GetResult(id string) (*models.PracticeResult, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row practiceResult
	if err := c.DB.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("practice result %s not found", id)
		}
		return nil, fmt.Errorf("querying practice result: %w", err)
	}
	result := toDomain(row)
	return &result, nil
}

func (c *DBClient) GetBeatRecords(id string) ([]models.BeatRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []beatRecord
	if err := c.DB.Where("result_id = ?", id).Order("beat_index").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying beat records: %w", err)
	}
	out := make([]models.BeatRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.BeatRecord{
			ResultID:       r.ResultID,
			BeatIndex:      r.BeatIndex,
			Classification: r.Classification,
			BPM:            r.BPM,
			MIDIPitch:      r.MIDIPitch,
		})
	}
	return out, nil
}

func (c *DBClient) ListResults() ([]models.PracticeResult, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []practiceResult
	if err := c.DB.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing practice results: %w", err)
	}
	out := make([]models.PracticeResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, toDomain(r))
	}
	return out, nil
}

func (c *DBClient) DeleteResult(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("result_id = ?", id).Delete(&beatRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&practiceResult{}).Error; err != nil {
			return err
		}
		return nil
	})
}

func toDomain(r practiceResult) models.PracticeResult {
	return models.PracticeResult{
		ID:           r.ID,
		ScoreName:    r.ScoreName,
		BaseBPM:      r.BaseBPM,
		FinalBPM:     r.FinalBPM,
		DynamicTempo: r.DynamicTempo,
		Beats:        r.Beats,
		Correct:      r.Correct,
		Incorrect:    r.Incorrect,
		Missed:       r.Missed,
		DurationMs:   r.DurationMs,
		CreatedAt:    r.CreatedAt,
	}
}
