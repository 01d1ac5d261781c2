package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Listing status codes.
const (
	StatusListed    = "L"
	StatusSuspended = "P"
	StatusDelisted  = "D"
)

// StockBasic is the listing fact of a security. Rows are append-if-new: once the exact
// (code, status, list_date_stamp) triple exists it is never updated.
type StockBasic struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Code          string    `gorm:"type:varchar(16);not null;uniqueIndex:uk_stock_basic,priority:1" json:"code"`
	Status        string    `gorm:"type:char(1);not null;uniqueIndex:uk_stock_basic,priority:2" json:"status"`
	ListDateStamp int64     `gorm:"not null;uniqueIndex:uk_stock_basic,priority:3" json:"list_date_stamp"`
	ListDate      time.Time `gorm:"type:date;not null" json:"list_date"`
	Name          string    `gorm:"type:varchar(64);not null;default:''" json:"name"`
	Exchange      string    `gorm:"type:char(2);not null;default:''" json:"exchange"`
	Board         string    `gorm:"type:varchar(32);not null;default:''" json:"board"`

	Profit           decimal.NullDecimal `gorm:"type:decimal(24,4)" json:"profit"`
	TotalMarketValue decimal.NullDecimal `gorm:"type:decimal(24,4)" json:"total_market_value"`
	FlowMarketValue  decimal.NullDecimal `gorm:"type:decimal(24,4)" json:"flow_market_value"`
	PE               decimal.NullDecimal `gorm:"column:pe;type:decimal(20,4)" json:"pe"`
	PB               decimal.NullDecimal `gorm:"column:pb;type:decimal(20,4)" json:"pb"`
	ROE              decimal.NullDecimal `gorm:"column:roe;type:decimal(20,4)" json:"roe"`
	GrossProfitRatio decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"gross_profit_ratio"`
	NetProfitRatio   decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"net_profit_ratio"`
	Industry         string              `gorm:"type:varchar(64);not null;default:''" json:"industry"`
	SectorID         string              `gorm:"type:varchar(32);not null;default:''" json:"sector_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (StockBasic) TableName() string { return "stock_basic" }

// StockBasicKey is the natural key.
type StockBasicKey struct {
	Code          string
	Status        string
	ListDateStamp int64
}

func (s *StockBasic) Key() StockBasicKey {
	return StockBasicKey{Code: s.Code, Status: s.Status, ListDateStamp: s.ListDateStamp}
}

func (s *StockBasic) Validate() error {
	switch {
	case s.Code == "":
		return fmt.Errorf("%w: stock basic without code", ErrInvalidRecord)
	case s.Status != StatusListed && s.Status != StatusSuspended && s.Status != StatusDelisted:
		return fmt.Errorf("%w: %s unknown status %q", ErrInvalidRecord, s.Code, s.Status)
	case s.ListDateStamp == 0:
		return fmt.Errorf("%w: %s missing list date", ErrInvalidPeriod, s.Code)
	}
	return nil
}

// StockBasicFilters provides optional list query conditions.
type StockBasicFilters struct {
	Code     string
	Codes    []string
	Status   string
	Exchange string
}
