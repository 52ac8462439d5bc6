package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/datasethub/datasethub/internal/dataset"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// SourceChannel registers one scraped source, e.g. a blog slug.
type SourceChannel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:128;uniqueIndex" json:"code"` // dataset name / slug
	Name    string `gorm:"size:256" json:"name"`
	BaseURL string `gorm:"size:1024" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Record mirrors one written dataset entry. The jsonl/txt pair stays
// the source of truth; this table only backs the read API. The
// content hash is the primary key, so mirroring the same entry twice
// is a no-op.
type Record struct {
	ID            string            `gorm:"primaryKey;size:32" json:"id"`
	Source        string            `gorm:"size:128;index" json:"source"`
	Title         string            `gorm:"size:1024" json:"title"`
	URL           string            `gorm:"size:1024;index" json:"url"`
	DatePublished string            `gorm:"size:64" json:"datePublished"`
	Text          string            `gorm:"type:text" json:"text"`
	Extra         datatypes.JSONMap `gorm:"type:jsonb" json:"extra"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&SourceChannel{}, &Record{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// EnsureSource makes sure a source channel row exists.
func (s *Store) EnsureSource(code, name, baseURL string) (*SourceChannel, error) {
	ch := &SourceChannel{}
	if err := s.DB.Where("code = ?", code).First(ch).Error; err == nil {
		return ch, nil
	}

	ch = &SourceChannel{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(ch).Error; err != nil {
		return nil, err
	}
	return ch, nil
}

// toValidUTF8 normalizes strings before insert; scraped HTML can
// carry byte sequences PostgreSQL rejects.
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// SaveBatch mirrors a batch of written entries, idempotent on the
// content id.
func (s *Store) SaveBatch(entries []dataset.Entry) error {
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("save batch: %w", dataset.ErrMissingID)
		}
		r := &Record{
			ID:            e.ID,
			Source:        e.Source,
			Title:         toValidUTF8(e.Title),
			URL:           e.URL,
			DatePublished: e.DatePublished,
			Text:          toValidUTF8(e.Text),
			Extra:         datatypes.JSONMap(e.Extra),
		}
		if err := s.DB.Where("id = ?", e.ID).FirstOrCreate(r).Error; err != nil {
			return err
		}
	}
	// No cache invalidation here: list/stat caches use a short TTL
	// and are allowed to lag a collection pass.
	return nil
}

const listCacheTTL = 5 * time.Minute

// ListRecords returns the newest mirrored records, optionally for one
// source, with a short-TTL redis cache in front of the DB.
func (s *Store) ListRecords(source string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("records:list:%s:%d", source, limit)

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Record
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []Record
	db := s.DB.Model(&Record{})
	if source != "" {
		db = db.Where("source = ?", source)
	}
	if err := db.Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}
	return list, nil
}

// ListSources returns the registered source channels.
func (s *Store) ListSources() ([]SourceChannel, error) {
	var list []SourceChannel
	if err := s.DB.Order("code ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// SourceCount is one row of the per-source stats.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// CountBySource reports how many records each source has mirrored,
// cached like the list queries.
func (s *Store) CountBySource() ([]SourceCount, error) {
	ctx := context.Background()
	const cacheKey = "records:stats"

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []SourceCount
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var rows []SourceCount
	err := s.DB.Model(&Record{}).
		Select("source, COUNT(*) AS count").
		Group("source").
		Order("source ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	if s.Redis != nil && len(rows) > 0 {
		if bs, err := json.Marshal(rows); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}
	return rows, nil
}
