package dao

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/gormdb"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

type IndustryDao interface {
	core.Component

	// Get loads the row with the natural key; gorm.ErrRecordNotFound when absent.
	Get(ctx context.Context, key model.IndustryMemberKey) (*model.IndustryMember, error)
	Create(ctx context.Context, m *model.IndustryMember) error
	// UpdateMutable overwrites every non-key column of the row with id.
	UpdateMutable(ctx context.Context, id uint64, m *model.IndustryMember) error
	// ListAsOf returns memberships valid on f.AsOfStamp, newest period first.
	ListAsOf(ctx context.Context, f *model.IndustryMemberFilters, limit int) ([]*model.IndustryMember, error)
	CountByLineage(ctx context.Context, code, level, src string) (int64, error)
}

type industryDaoImpl struct {
	*core.BaseComponent
	GormComp *gormdb.GormComponent `infra:"dep:gorm"`
	db       *gorm.DB
	dsName   string
}

func NewIndustryDao(dsName string) IndustryDao {
	return &industryDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_INDUSTRY, consts.COMPONENT_LOGGING),
		dsName:        dsName,
	}
}

func NewIndustryDaoFromDB(db *gorm.DB) IndustryDao {
	return &industryDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_INDUSTRY),
		db:            db,
	}
}

func (d *industryDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if d.db != nil {
		return nil
	}
	db, err := d.GormComp.GetDB(d.dsName)
	if err != nil {
		return fmt.Errorf("get gorm db %s failed: %w", d.dsName, err)
	}
	d.db = db
	return nil
}

func (d *industryDaoImpl) Stop(ctx context.Context) error {
	return d.BaseComponent.Stop(ctx)
}

func (d *industryDaoImpl) Get(ctx context.Context, key model.IndustryMemberKey) (*model.IndustryMember, error) {
	var m model.IndustryMember
	err := d.db.WithContext(ctx).
		Where("code = ? AND level = ? AND src = ? AND in_date_stamp = ?", key.Code, key.Level, key.Src, key.InDateStamp).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *industryDaoImpl) Create(ctx context.Context, m *model.IndustryMember) error {
	if err := d.db.WithContext(ctx).Create(m).Error; err != nil {
		err = translateWriteErr(err, m.Key())
		logging.Errorf(ctx, "IndustryDao Create %s/%s/%s: %v", m.Code, m.Level, m.Src, err)
		return err
	}
	return nil
}

func (d *industryDaoImpl) UpdateMutable(ctx context.Context, id uint64, m *model.IndustryMember) error {
	res := d.db.WithContext(ctx).Model(&model.IndustryMember{}).Where("id = ?", id).Updates(mutableColumns(m))
	if res.Error != nil {
		return translateWriteErr(res.Error, m.Key())
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// mutableColumns lists every non-key column explicitly so zero values and NULL decimals
// overwrite the stored row instead of being skipped by struct Updates.
func mutableColumns(m *model.IndustryMember) map[string]any {
	return map[string]any{
		"out_date":          m.OutDate,
		"out_date_stamp":    m.OutDateStamp,
		"in_date":           m.InDate,
		"index_code":        m.IndexCode,
		"industry_name":     m.IndustryName,
		"name":              m.Name,
		"sw_1":              m.SW1,
		"sw_2":              m.SW2,
		"sw_3":              m.SW3,
		"price":             m.Price,
		"pe":                m.PE,
		"pe_ttm":            m.PETTM,
		"pb":                m.PB,
		"dividend_rate":     m.DividendRate,
		"market_value":      m.MarketValue,
		"profit_growth_q3":  m.ProfitGrowthQ3,
		"profit_growth_h1":  m.ProfitGrowthH1,
		"revenue_growth_q3": m.RevenueGrowthQ3,
		"revenue_growth_h1": m.RevenueGrowthH1,
	}
}

func (d *industryDaoImpl) ListAsOf(ctx context.Context, f *model.IndustryMemberFilters, limit int) ([]*model.IndustryMember, error) {
	var list []*model.IndustryMember
	q := d.db.WithContext(ctx).Model(&model.IndustryMember{})
	if f != nil {
		if f.Code != "" {
			q = q.Where("code = ?", f.Code)
		}
		if f.Level != "" {
			q = q.Where("level = ?", f.Level)
		}
		if f.Src != "" {
			q = q.Where("src = ?", f.Src)
		}
		if f.AsOfStamp > 0 {
			q = q.Where("in_date_stamp <= ? AND out_date_stamp >= ?", f.AsOfStamp, f.AsOfStamp)
		}
	}
	q = q.Order("code ASC, level ASC, src ASC, in_date_stamp DESC, out_date_stamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (d *industryDaoImpl) CountByLineage(ctx context.Context, code, level, src string) (int64, error) {
	var cnt int64
	err := d.db.WithContext(ctx).Model(&model.IndustryMember{}).
		Where("code = ? AND level = ? AND src = ?", code, level, src).
		Count(&cnt).Error
	return cnt, err
}
