package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wricardo/bridge-it-together/game/service"
)

// SessionRecord is the sessions table row. The engine snapshot is stored as JSON.
type SessionRecord struct {
	ID             string `gorm:"primaryKey"`
	ScenarioID     string `gorm:"index"`
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Tick           int
	Snapshot       datatypes.JSON
}

// TableName overrides the gorm default.
func (SessionRecord) TableName() string {
	return "sessions"
}

// SQLitePersistence stores sessions in a SQLite database through gorm.
type SQLitePersistence struct {
	db        *gorm.DB
	rebuilder Rebuilder
}

// OpenSQLite opens (or creates) the database at path. An empty path uses a
// private in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if path == "" {
		// Every connection to :memory: is its own database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// NewSQLitePersistence migrates the sessions table on db.
func NewSQLitePersistence(db *gorm.DB, rebuilder Rebuilder) (*SQLitePersistence, error) {
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sessions table: %w", err)
	}
	return &SQLitePersistence{db: db, rebuilder: rebuilder}, nil
}

// Save upserts the session row.
func (sp *SQLitePersistence) Save(session *service.Session) error {
	data, err := newPersistedData(session)
	if err != nil {
		return err
	}
	snap, err := json.Marshal(data.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	rec := SessionRecord{
		ID:             strings.ToLower(data.ID),
		ScenarioID:     data.ScenarioID,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
		Tick:           data.Snapshot.Tick,
		Snapshot:       datatypes.JSON(snap),
	}
	if err := sp.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load reads a row and rebuilds its engine.
func (sp *SQLitePersistence) Load(id string) (*service.Session, error) {
	var rec SessionRecord
	err := sp.db.Where("id = ?", strings.ToLower(id)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	data := PersistedSessionData{
		ID:             rec.ID,
		ScenarioID:     rec.ScenarioID,
		CreatedAt:      rec.CreatedAt,
		LastAccessedAt: rec.LastAccessedAt,
	}
	if err := json.Unmarshal(rec.Snapshot, &data.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return sp.rebuilder.Rebuild(&data)
}

// Delete removes a row.
func (sp *SQLitePersistence) Delete(id string) error {
	res := sp.db.Where("id = ?", strings.ToLower(id)).Delete(&SessionRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all stored session IDs.
func (sp *SQLitePersistence) ListAll() ([]string, error) {
	var ids []string
	if err := sp.db.Model(&SessionRecord{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Exists reports whether a row exists.
func (sp *SQLitePersistence) Exists(id string) bool {
	var n int64
	if err := sp.db.Model(&SessionRecord{}).Where("id = ?", strings.ToLower(id)).Count(&n).Error; err != nil {
		return false
	}
	return n > 0
}

// PurgeBefore deletes rows not accessed since cutoff and returns how many went.
func (sp *SQLitePersistence) PurgeBefore(cutoff time.Time) (int64, error) {
	res := sp.db.Where("last_accessed_at < ?", cutoff).Delete(&SessionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the underlying database.
func (sp *SQLitePersistence) Close() error {
	sqlDB, err := sp.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
