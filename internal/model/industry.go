package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Classification levels and sources as stored (lower case).
const (
	LevelL1 = "l1"
	LevelL2 = "l2"
	LevelL3 = "l3"

	SourceSW = "sw"
)

// IndustryMember is one time-sliced classification membership.
//
// Natural key (code, level, src, in_date_stamp) is unique; out_date is mutable so an open
// period can be closed in place. Index layout mirrors migrations/mysql/0001_init.sql.
type IndustryMember struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Code         string    `gorm:"type:varchar(16);not null;uniqueIndex:uk_industry_member,priority:1;index:idx_industry_asof,priority:1" json:"code"`
	Level        string    `gorm:"type:varchar(8);not null;uniqueIndex:uk_industry_member,priority:2;index:idx_industry_asof,priority:2" json:"level"`
	Src          string    `gorm:"type:varchar(8);not null;uniqueIndex:uk_industry_member,priority:3;index:idx_industry_asof,priority:3" json:"src"`
	InDateStamp  int64     `gorm:"not null;uniqueIndex:uk_industry_member,priority:4;index:idx_industry_asof,priority:4,sort:desc" json:"in_date_stamp"`
	OutDateStamp int64     `gorm:"not null;index:idx_industry_asof,priority:5,sort:desc" json:"out_date_stamp"`
	InDate       time.Time `gorm:"type:date;not null" json:"in_date"`
	OutDate      time.Time `gorm:"type:date;not null" json:"out_date"`

	IndexCode    string `gorm:"type:varchar(16);not null;default:''" json:"index_code"`
	IndustryName string `gorm:"type:varchar(64);not null;default:''" json:"industry_name"`
	Name         string `gorm:"type:varchar(64);not null;default:''" json:"name"`
	SW1          string `gorm:"column:sw_1;type:varchar(64);not null;default:''" json:"sw_1"`
	SW2          string `gorm:"column:sw_2;type:varchar(64);not null;default:''" json:"sw_2"`
	SW3          string `gorm:"column:sw_3;type:varchar(64);not null;default:''" json:"sw_3"`

	Price           decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"price"`
	PE              decimal.NullDecimal `gorm:"column:pe;type:decimal(20,4)" json:"pe"`
	PETTM           decimal.NullDecimal `gorm:"column:pe_ttm;type:decimal(20,4)" json:"pe_ttm"`
	PB              decimal.NullDecimal `gorm:"column:pb;type:decimal(20,4)" json:"pb"`
	DividendRate    decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"dividend_rate"`
	MarketValue     decimal.NullDecimal `gorm:"type:decimal(24,4)" json:"market_value"`
	ProfitGrowthQ3  decimal.NullDecimal `gorm:"column:profit_growth_q3;type:decimal(20,4)" json:"profit_growth_q3"`
	ProfitGrowthH1  decimal.NullDecimal `gorm:"column:profit_growth_h1;type:decimal(20,4)" json:"profit_growth_h1"`
	RevenueGrowthQ3 decimal.NullDecimal `gorm:"column:revenue_growth_q3;type:decimal(20,4)" json:"revenue_growth_q3"`
	RevenueGrowthH1 decimal.NullDecimal `gorm:"column:revenue_growth_h1;type:decimal(20,4)" json:"revenue_growth_h1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (IndustryMember) TableName() string { return "industry" }

// IsOpen reports whether the membership has no known end.
func (m *IndustryMember) IsOpen() bool { return m.OutDateStamp >= OpenEndStamp }

// ApplyPeriod fills stamps from dates; a zero OutDate becomes the open sentinel.
func (m *IndustryMember) ApplyPeriod(cal *Calendar) {
	if m.OutDate.IsZero() {
		m.OutDate = OpenEndDate
	}
	m.InDateStamp = cal.Stamp(m.InDate)
	m.OutDateStamp = cal.Stamp(m.OutDate)
}

// Validate checks the natural key and the period. Call after ApplyPeriod.
func (m *IndustryMember) Validate() error {
	if m.Code == "" || m.Level == "" || m.Src == "" {
		return fmt.Errorf("%w: industry member needs code, level and src (code=%q level=%q src=%q)",
			ErrInvalidRecord, m.Code, m.Level, m.Src)
	}
	if m.InDate.IsZero() || m.InDateStamp == 0 {
		return fmt.Errorf("%w: %s missing in_date", ErrInvalidPeriod, m.Code)
	}
	if m.InDateStamp > m.OutDateStamp {
		return fmt.Errorf("%w: %s in_date %s after out_date %s", ErrInvalidPeriod, m.Code,
			m.InDate.Format("2006-01-02"), m.OutDate.Format("2006-01-02"))
	}
	return nil
}

// IndustryMemberKey is the natural key.
type IndustryMemberKey struct {
	Code        string
	Level       string
	Src         string
	InDateStamp int64
}

func (m *IndustryMember) Key() IndustryMemberKey {
	return IndustryMemberKey{Code: m.Code, Level: m.Level, Src: m.Src, InDateStamp: m.InDateStamp}
}

// IndustryMemberFilters narrows as-of queries; zero fields are ignored.
type IndustryMemberFilters struct {
	Code  string
	Level string
	Src   string
	// AsOfStamp selects rows with in_date_stamp <= AsOfStamp <= out_date_stamp.
	AsOfStamp int64
}
