package database

import (
	"time"

	"gorm.io/gorm"
)

// CallRecordRepository stores the call log
type CallRecordRepository struct {
	db *gorm.DB
}

// NewCallRecordRepository creates a new call log repository
func NewCallRecordRepository(db *gorm.DB) *CallRecordRepository {
	return &CallRecordRepository{db: db}
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("start_time DESC").Order("id DESC")
}

func involving(ipui string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("caller_ipui = ? OR callee_ipui = ?", ipui, ipui)
	}
}

// Create adds a new call record
func (r *CallRecordRepository) Create(rec *CallRecord) error {
	return r.db.Create(rec).Error
}

// GetRecent returns the latest limit calls, newest first
func (r *CallRecordRepository) GetRecent(limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.Scopes(newestFirst).Limit(limit).Find(&records).Error
	return records, err
}

// GetRecentPaginated returns page (counted from 1) of the call log and
// the total number of records
func (r *CallRecordRepository) GetRecentPaginated(page, perPage int) ([]CallRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	var total int64
	if err := r.db.Model(&CallRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []CallRecord
	err := r.db.Scopes(newestFirst).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&records).Error
	return records, total, err
}

// GetByIPUI returns the calls a portable placed or received
func (r *CallRecordRepository) GetByIPUI(ipui string, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.Scopes(involving(ipui), newestFirst).Limit(limit).Find(&records).Error
	return records, err
}

// DeleteOlderThan deletes calls started before the given time
func (r *CallRecordRepository) DeleteOlderThan(before time.Time) (int64, error) {
	res := r.db.Where("start_time < ?", before).Delete(&CallRecord{})
	return res.RowsAffected, res.Error
}

// Prune applies a retention period: calls started more than maxAge
// before now are removed. A non-positive maxAge keeps everything.
func (r *CallRecordRepository) Prune(maxAge time.Duration, now time.Time) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	return r.DeleteOlderThan(now.Add(-maxAge))
}
