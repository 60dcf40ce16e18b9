package database

import (
	"fmt"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/identity"
	"gorm.io/gorm"
)

// Portable is a subscribed portable part
type Portable struct {
	IPUI      string `gorm:"column:ipui;primarykey;size:24" json:"ipui"`
	IPUIType  uint8  `gorm:"column:ipui_type;not null" json:"ipui_type"`
	EMC       uint16 `gorm:"index" json:"emc"`
	PSN       uint32 `json:"psn"`
	Number    uint64 `json:"number,omitempty"`
	Extension string `gorm:"uniqueIndex;size:16" json:"extension"`
	// TPUI is the assigned temporary identity, zero when none was assigned
	TPUI       uint32    `gorm:"column:tpui" json:"tpui"`
	Name       string    `gorm:"size:50" json:"name"`
	Attached   bool      `gorm:"not null;default:false" json:"attached"`
	LastLocate time.Time `json:"last_locate"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for Portable
func (Portable) TableName() string {
	return "portables"
}

// NewPortable builds a registry entry for ipui
func NewPortable(ipui identity.IPUI) *Portable {
	return &Portable{
		IPUI:     ipui.String(),
		IPUIType: uint8(ipui.Type),
		EMC:      ipui.IPEI.EMC | ipui.EMC,
		PSN:      ipui.IPEI.PSN | ipui.FPN,
		Number:   ipui.Number,
	}
}

// Identity rebuilds the IPUI of the entry
func (p *Portable) Identity() (identity.IPUI, error) {
	ipui := identity.IPUI{Type: identity.IPUIType(p.IPUIType)}
	switch ipui.Type {
	case identity.IPUITypeN:
		ipui.IPEI = identity.IPEI{EMC: p.EMC, PSN: p.PSN}
	case identity.IPUITypeO:
		ipui.Number = p.Number
	case identity.IPUITypeT:
		ipui.EMC, ipui.FPN = p.EMC, p.PSN
	default:
		return ipui, fmt.Errorf("unsupported IPUI type %s", ipui.Type)
	}
	return ipui, nil
}

// CallRecord is one entry of the call log
type CallRecord struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CallerIPUI    string    `gorm:"column:caller_ipui;index;size:24" json:"caller_ipui"`
	CalleeIPUI    string    `gorm:"column:callee_ipui;index;size:24" json:"callee_ipui"`
	Called        string    `gorm:"size:32" json:"called"`
	Answered      bool      `gorm:"not null;default:false" json:"answered"`
	ReleaseReason string    `gorm:"size:48" json:"release_reason"`
	Duration      float64   `gorm:"not null" json:"duration"` // Duration in seconds
	StartTime     time.Time `gorm:"index;not null" json:"start_time"`
	EndTime       time.Time `gorm:"not null" json:"end_time"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for CallRecord
func (CallRecord) TableName() string {
	return "call_records"
}

// BeforeCreate hook to ensure StartTime and EndTime are set
func (c *CallRecord) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.StartTime.IsZero() {
		c.StartTime = time.Now()
	}
	if c.EndTime.IsZero() {
		c.EndTime = time.Now()
	}
	return nil
}
