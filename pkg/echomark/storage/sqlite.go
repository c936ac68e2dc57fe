package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rudrakapoor/EchoMark/pkg/models"
	"github.com/rudrakapoor/EchoMark/pkg/utils"
)

const DefaultDBFile = "echomark.sqlite3"

const fingerprintInsertBatch = 500

var errDBClientNil = errors.New("db client is nil")

// DBClient stores fingerprint rows keyed by track ID. Match-search queries
// against the rows belong to a different layer; this store only registers
// reference tracks and their fingerprints.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Track is the stored reference track row.
type Track struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Name       string `gorm:"uniqueIndex:idx_track_name"`
	DurationMs int
	CreatedAt  time.Time
}

// Fingerprint is one stored landmark record.
type Fingerprint struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_hash"`
	TrackID      string `gorm:"type:varchar(36);index:idx_track"`
	TimeOffsetMs int32
	AnchorFreqHz float32
	TargetFreqHz float32
	TimeDeltaMs  int32
}

// NewDBClient opens the store at ECHOMARK_DB_PATH or the default file.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("ECHOMARK_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

// NewDBClientWithPath opens (creating if needed) a sqlite store at dbPath
// and migrates the schema.
func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
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

	if err := db.AutoMigrate(&Track{}, &Fingerprint{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

// Close releases the underlying connection pool.
func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterTrack inserts a track row and returns its ID. A track with the
// same name returns the existing ID.
func (c *DBClient) RegisterTrack(name string, durationMs int) (string, error) {
	if c == nil || c.DB == nil {
		return "", errDBClientNil
	}

	var track Track
	err := c.DB.Where("name = ?", name).First(&track).Error
	if err == nil {
		return track.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing track: %w", err)
	}

	track = Track{ID: utils.GenerateUUID(), Name: name, DurationMs: durationMs}
	if err := c.DB.Create(&track).Error; err != nil {
		return "", fmt.Errorf("creating track: %w", err)
	}
	return track.ID, nil
}

// StoreFingerprints inserts the fingerprint rows for one track in batches
// inside a single transaction.
func (c *DBClient) StoreFingerprints(trackID string, fps []models.Fingerprint) error {
	if c == nil || c.DB == nil {
		return errDBClientNil
	}
	if len(fps) == 0 {
		return nil
	}

	rows := make([]Fingerprint, 0, len(fps))
	for _, fp := range fps {
		rows = append(rows, Fingerprint{
			Hash:         fp.Hash,
			TrackID:      trackID,
			TimeOffsetMs: fp.TimeOffsetMs,
			AnchorFreqHz: fp.AnchorFreqHz,
			TargetFreqHz: fp.TargetFreqHz,
			TimeDeltaMs:  fp.TimeDeltaMs,
		})
	}

	return c.DB.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, fingerprintInsertBatch).Error
	})
}

// FingerprintCount returns the number of stored rows for a track.
func (c *DBClient) FingerprintCount(trackID string) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errDBClientNil
	}
	var count int64
	if err := c.DB.Model(&Fingerprint{}).Where("track_id = ?", trackID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return int(count), nil
}

// GetTrack fetches one track by ID.
func (c *DBClient) GetTrack(trackID string) (*models.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errDBClientNil
	}
	var track Track
	if err := c.DB.First(&track, "id = ?", trackID).Error; err != nil {
		return nil, fmt.Errorf("fetching track %s: %w", trackID, err)
	}
	return &models.Track{ID: track.ID, Name: track.Name, DurationMs: track.DurationMs}, nil
}

// ListTracks returns all stored tracks ordered by creation time.
func (c *DBClient) ListTracks() ([]models.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errDBClientNil
	}
	var rows []Track
	if err := c.DB.Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	out := make([]models.Track, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Track{ID: r.ID, Name: r.Name, DurationMs: r.DurationMs})
	}
	return out, nil
}

// DeleteTrack removes a track and its fingerprint rows.
func (c *DBClient) DeleteTrack(trackID string) error {
	if c == nil || c.DB == nil {
		return errDBClientNil
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&Fingerprint{}).Error; err != nil {
			return fmt.Errorf("deleting fingerprints: %w", err)
		}
		if err := tx.Where("id = ?", trackID).Delete(&Track{}).Error; err != nil {
			return fmt.Errorf("deleting track: %w", err)
		}
		return nil
	})
}
