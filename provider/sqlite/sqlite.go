// Package sqlite is a durable provider that keeps entries in a single
// SQLite table through gorm. It needs no cgo.
package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	pr "github.com/unkn0wn-root/keyedcache/provider"
)

var ErrNilDB = errors.New("sqlite provider: nil db")

// entry is one row; ExpiresAt is unix nanos, 0 = no expiry.
type entry struct {
	Key       string `gorm:"column:cache_key;primaryKey"`
	Value     []byte `gorm:"column:value"`
	ExpiresAt int64  `gorm:"column:expires_at;index"`
}

func (entry) TableName() string { return "cache_entries" }

type Provider struct {
	db      *gorm.DB
	closeDB bool
	now     func() time.Time
}

var (
	_ pr.Provider    = (*Provider)(nil)
	_ pr.BatchGetter = (*Provider)(nil)
	_ pr.BatchSetter = (*Provider)(nil)
)

type Config struct {
	DB      *gorm.DB
	CloseDB bool // set true only if this provider exclusively owns the db
}

// New migrates the cache table on cfg.DB.
func New(cfg Config) (*Provider, error) {
	if cfg.DB == nil {
		return nil, ErrNilDB
	}
	if err := cfg.DB.AutoMigrate(&entry{}); err != nil {
		return nil, err
	}
	return &Provider{db: cfg.DB, closeDB: cfg.CloseDB, now: time.Now}, nil
}

// Open creates (or reuses) the database at path and owns it. Use ":memory:"
// for a throwaway store.
func Open(path string) (*Provider, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	sqlDB.SetMaxOpenConns(1)
	p, err := New(Config{DB: db, CloseDB: true})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return p, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e entry
	err := p.db.WithContext(ctx).Where("cache_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if p.expired(e) {
		// lazy expiry; only drop the row we looked at
		p.db.WithContext(ctx).Where("cache_key = ? AND expires_at = ?", key, e.ExpiresAt).Delete(&entry{})
		return nil, false, nil
	}
	return value(e), true, nil
}

func (p *Provider) Set(ctx context.Context, key string, v []byte, _ int64, ttl time.Duration) (bool, error) {
	e := p.row(key, v, ttl)
	if err := p.db.WithContext(ctx).Clauses(upsert()).Create(&e).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Add inserts only when no live row exists. Expired rows are replaced.
func (p *Provider) Add(ctx context.Context, key string, v []byte, _ int64, ttl time.Duration) (bool, error) {
	e := p.row(key, v, ttl)
	var added bool
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("cache_key = ? AND expires_at > 0 AND expires_at <= ?", key, p.now().UnixNano()).
			Delete(&entry{}).Error
		if err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&e)
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	return p.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&entry{}).Error
}

func (p *Provider) Flush(ctx context.Context) error {
	return p.db.WithContext(ctx).Where("1 = 1").Delete(&entry{}).Error
}

// GetMany reads all keys with one IN query.
func (p *Provider) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []entry
	if err := p.db.WithContext(ctx).Where("cache_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, e := range rows {
		if !p.expired(e) {
			out[e.Key] = value(e)
		}
	}
	return out, nil
}

// SetMany upserts every entry in one transaction; it either stores all of
// them or fails as a whole.
func (p *Provider) SetMany(ctx context.Context, entries []pr.Entry, ttl time.Duration) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	// last write wins for duplicate keys, as with repeated Set calls
	idx := make(map[string]int, len(entries))
	rows := make([]entry, 0, len(entries))
	for _, in := range entries {
		r := p.row(in.Key, in.Value, ttl)
		if i, dup := idx[in.Key]; dup {
			rows[i] = r
			continue
		}
		idx[in.Key] = len(rows)
		rows = append(rows, r)
	}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(upsert()).Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// PurgeExpired deletes every expired row and reports how many were removed.
func (p *Provider) PurgeExpired(ctx context.Context) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("expires_at > 0 AND expires_at <= ?", p.now().UnixNano()).
		Delete(&entry{})
	return res.RowsAffected, res.Error
}

func (p *Provider) Close(context.Context) error {
	if !p.closeDB {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *Provider) row(key string, v []byte, ttl time.Duration) entry {
	e := entry{Key: key, Value: v}
	if ttl > 0 {
		e.ExpiresAt = p.now().Add(ttl).UnixNano()
	}
	return e
}

func (p *Provider) expired(e entry) bool {
	return e.ExpiresAt > 0 && p.now().UnixNano() >= e.ExpiresAt
}

func upsert() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}
}

// sqlite hands back NULL for an empty blob
func value(e entry) []byte {
	if e.Value == nil {
		return []byte{}
	}
	return e.Value
}
