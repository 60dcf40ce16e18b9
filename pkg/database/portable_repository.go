package database

import (
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no portable matches
var ErrNotFound = errors.New("portable not found")

// PortableRepository handles portable registry operations
type PortableRepository struct {
	db *gorm.DB
}

// NewPortableRepository creates a new portable repository
func NewPortableRepository(db *gorm.DB) *PortableRepository {
	return &PortableRepository{db: db}
}

// Upsert creates or updates a portable record
func (r *PortableRepository) Upsert(p *Portable) error {
	return r.db.Save(p).Error
}

func (r *PortableRepository) first(query string, arg interface{}) (*Portable, error) {
	var p Portable
	err := r.db.Where(query, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIPUI retrieves a portable by its IPUI string
func (r *PortableRepository) GetByIPUI(ipui string) (*Portable, error) {
	return r.first("ipui = ?", ipui)
}

// GetByExtension retrieves a portable by its dialling number
func (r *PortableRepository) GetByExtension(ext string) (*Portable, error) {
	return r.first("extension = ?", ext)
}

// List returns all portables ordered by extension
func (r *PortableRepository) List() ([]Portable, error) {
	var portables []Portable
	err := r.db.Order("LENGTH(extension), extension").Find(&portables).Error
	return portables, err
}

// NextExtension returns the lowest numeric extension at or above start
// that no portable uses
func (r *PortableRepository) NextExtension(start int) (string, error) {
	var used []string
	if err := r.db.Model(&Portable{}).Pluck("extension", &used).Error; err != nil {
		return "", err
	}
	taken := make(map[int]bool, len(used))
	for _, ext := range used {
		if n, err := strconv.Atoi(ext); err == nil {
			taken[n] = true
		}
	}
	n := start
	for taken[n] {
		n++
	}
	return strconv.Itoa(n), nil
}

// SetAttached records the attach state of a portable
func (r *PortableRepository) SetAttached(ipui string, attached bool) error {
	updates := map[string]interface{}{"attached": attached}
	if attached {
		updates["last_locate"] = time.Now()
	}
	result := r.db.Model(&Portable{}).Where("ipui = ?", ipui).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTPUI records an assigned temporary identity
func (r *PortableRepository) SetTPUI(ipui string, tpui uint32) error {
	result := r.db.Model(&Portable{}).Where("ipui = ?", ipui).Update("tpui", tpui)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a portable from the registry
func (r *PortableRepository) Delete(ipui string) error {
	result := r.db.Where("ipui = ?", ipui).Delete(&Portable{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of portables in the registry
func (r *PortableRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&Portable{}).Count(&count).Error
	return count, err
}
