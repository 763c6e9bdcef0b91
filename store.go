// store.go persists the content tree as a single keyed record in sqlite
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// contentKey is the fixed storage key for the serialized tree. Everything the
// site shows, plus the two secrets, lives under this one record.
const contentKey = "portfolio:content"

const contentCacheKey = "content"

// Store owns the persisted content record. Load never fails the caller:
// missing or unparsable data falls back to the built-in default tree. Save
// rewrites the record inside a transaction so an interrupted write leaves the
// previous state readable. A mutex serializes writers; the app assumes a
// single editing session but the HTTP server itself is concurrent.
type Store struct {
	db    *gorm.DB
	cache *cache.Cache
	mu    sync.Mutex
}

func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := db.AutoMigrate(&ContentRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{
		db:    db,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

// Load returns a private copy of the current tree. Callers mutate the copy
// and hand it back to Save; nothing shares state with the cache.
func (s *Store) Load() *ContentTree {
	if data, found := s.cache.Get(contentCacheKey); found {
		return data.(*ContentTree).Clone()
	}

	var rec ContentRecord
	err := s.db.Where("key = ?", contentKey).First(&rec).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error reading content record: %v", err)
		}
		return defaultTree()
	}

	var t ContentTree
	if err := json.Unmarshal(rec.Data, &t); err != nil {
		// Corrupt saved state is recovered, not surfaced.
		log.Printf("Saved content is unreadable, using defaults: %v", err)
		return defaultTree()
	}

	s.cache.Set(contentCacheKey, t.Clone(), cache.DefaultExpiration)
	return &t
}

// Save serializes the tree and upserts the record.
func (s *Store) Save(t *ContentTree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to serialize content: %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var rec ContentRecord
		if err := tx.Where("key = ?", contentKey).First(&rec).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			rec = ContentRecord{Key: contentKey}
		}
		rec.Data = data
		return tx.Save(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}

	s.cache.Set(contentCacheKey, t.Clone(), cache.DefaultExpiration)
	return nil
}

// Reset discards the persisted state, persists the default tree and returns
// a copy of it.
func (s *Store) Reset() (*ContentTree, error) {
	s.mu.Lock()
	s.cache.Delete(contentCacheKey)
	if err := s.db.Unscoped().Where("key = ?", contentKey).Delete(&ContentRecord{}).Error; err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to clear content record: %w", err)
	}
	s.mu.Unlock()

	t := defaultTree()
	if err := s.Save(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Clone deep-copies a tree through its JSON form. The tree is plain data, so
// the round trip is exact.
func (t *ContentTree) Clone() *ContentTree {
	data, err := json.Marshal(t)
	if err != nil {
		panic(fmt.Sprintf("content tree not serializable: %v", err))
	}
	var out ContentTree
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("content tree clone failed: %v", err))
	}
	return &out
}
