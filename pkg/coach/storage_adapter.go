package coach

import (
	"github.com/andywang514/violin-coach/pkg/coach/storage"
	"github.com/andywang514/violin-coach/pkg/models"
)

// storageAdapter adapts the storage.DBClient to implement the Storage
// interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveResult(result models.PracticeResult, beats []models.BeatRecord) (string, error) {
	return s.db.SaveResult(result, beats)
}

func (s *storageAdapter) GetResult(id string) (*models.PracticeResult, error) {
	return s.db.GetResult(id)
}

func (s *storageAdapter) GetBeatRecords(id string) ([]models.BeatRecord, error) {
	return s.db.GetBeatRecords(id)
}

func (s *storageAdapter) ListResults() ([]models.PracticeResult, error) {
	return s.db.ListResults()
}

func (s *storageAdapter) DeleteResult(id string) error {
	return s.db.DeleteResult(id)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}
