package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	tiney "github.com/xirelogy/go-tiney"
)

// Store is a SQLite backed compile cache.
type Store struct {
	db     *gorm.DB
	expiry time.Duration
	now    func() time.Time
}

var _ tiney.Cache = (*Store)(nil)

// Open opens (creating if needed) the cache database at path. Entries not
// accessed within expiry become eligible for pruning; zero keeps them forever.
func Open(path string, expiry time.Duration) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate cache %s: %w", path, err)
	}
	return &Store{db: db, expiry: expiry, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get looks up key and refreshes its last access time on a hit.
func (s *Store) Get(key string) ([]tiney.Instruction, bool, error) {
	var entries []*Entry
	if err := s.db.Model(&Entry{}).Where("`cache_key`=?", key).
		Limit(1).Find(&entries).Error; err != nil {
		return nil, false, err
	}
	if len(entries) == 0 {
		return nil, false, nil
	}
	entry := entries[0]
	var code []tiney.Instruction
	if err := json.Unmarshal([]byte(entry.Code), &code); err != nil {
		return nil, false, fmt.Errorf("decode entry %d: %w", entry.ID, err)
	}
	if err := s.db.Model(&Entry{}).Where("`id`=?", entry.ID).
		Update("last_access", s.now().Unix()).Error; err != nil {
		return nil, false, err
	}
	return code, true, nil
}

// Put stores code under key, replacing an existing entry.
func (s *Store) Put(key, name string, code []tiney.Instruction) error {
	data, err := json.Marshal(code)
	if err != nil {
		return err
	}
	now := s.now().Unix()
	entry := &Entry{
		CacheKey:        key,
		Name:            name,
		Code:            string(data),
		CreatedAt:       now,
		LastAccess:      now,
		ExpiredDuration: int64(s.expiry / time.Second),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "code", "created_at", "last_access", "expired_duration"}),
	}).Create(entry).Error
}

// Count returns the number of stored entries.
func (s *Store) Count() (int64, error) {
	var cnt int64
	if err := s.db.Model(&Entry{}).Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// FindExpired returns up to limit entries whose expiry has passed at now.
func (s *Store) FindExpired(now time.Time, limit int) ([]*Entry, error) {
	var expired []*Entry
	if err := s.db.Model(&Entry{}).
		Where("`expired_duration` > 0 and `last_access`+`expired_duration` < ?", now.Unix()).
		Limit(limit).Find(&expired).Error; err != nil {
		return nil, err
	}
	return expired, nil
}

// PruneExpired deletes up to limit expired entries and reports how many
// were removed.
func (s *Store) PruneExpired(now time.Time, limit int) (int, error) {
	expired, err := s.FindExpired(now, limit)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(expired))
	for i, e := range expired {
		ids[i] = e.ID
	}
	if err := s.db.Delete(&Entry{}, ids).Error; err != nil {
		return 0, err
	}
	return len(ids), nil
}
