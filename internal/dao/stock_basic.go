package dao

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/gormdb"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

type StockBasicDao interface {
	core.Component

	// Exists reports whether a row with exactly this natural key is stored.
	Exists(ctx context.Context, key model.StockBasicKey) (bool, error)
	// Create inserts one row. Unique violations come back as ErrDuplicateKey.
	Create(ctx context.Context, s *model.StockBasic) error
	ListFiltered(ctx context.Context, f *model.StockBasicFilters, limit, offset int) ([]*model.StockBasic, error)
	CountFiltered(ctx context.Context, f *model.StockBasicFilters) (int64, error)
}

type stockBasicDaoImpl struct {
	*core.BaseComponent
	GormComp *gormdb.GormComponent `infra:"dep:gorm"`
	db       *gorm.DB
	dsName   string
}

func NewStockBasicDao(dsName string) StockBasicDao {
	return &stockBasicDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_STOCK_BASIC, consts.COMPONENT_LOGGING),
		dsName:        dsName,
	}
}

// NewStockBasicDaoFromDB binds the dao to an already opened db, bypassing the gorm component.
func NewStockBasicDaoFromDB(db *gorm.DB) StockBasicDao {
	return &stockBasicDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_STOCK_BASIC),
		db:            db,
	}
}

func (d *stockBasicDaoImpl) Start(ctx context.Context) error {
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

func (d *stockBasicDaoImpl) Stop(ctx context.Context) error {
	return d.BaseComponent.Stop(ctx)
}

func (d *stockBasicDaoImpl) Exists(ctx context.Context, key model.StockBasicKey) (bool, error) {
	var cnt int64
	err := d.db.WithContext(ctx).Model(&model.StockBasic{}).
		Where("code = ? AND status = ? AND list_date_stamp = ?", key.Code, key.Status, key.ListDateStamp).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (d *stockBasicDaoImpl) Create(ctx context.Context, s *model.StockBasic) error {
	s.Code = strings.TrimSpace(s.Code)
	s.Name = strings.TrimSpace(s.Name)
	if err := d.db.WithContext(ctx).Create(s).Error; err != nil {
		err = translateWriteErr(err, s.Key())
		logging.Errorf(ctx, "StockBasicDao Create %s: %v", s.Code, err)
		return err
	}
	return nil
}

func (d *stockBasicDaoImpl) ListFiltered(ctx context.Context, f *model.StockBasicFilters, limit, offset int) ([]*model.StockBasic, error) {
	var list []*model.StockBasic
	q := d.db.WithContext(ctx).Model(&model.StockBasic{}).Order("code ASC, list_date_stamp ASC")
	q = applyStockBasicFilters(q, f)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (d *stockBasicDaoImpl) CountFiltered(ctx context.Context, f *model.StockBasicFilters) (int64, error) {
	q := applyStockBasicFilters(d.db.WithContext(ctx).Model(&model.StockBasic{}), f)
	var cnt int64
	if err := q.Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func applyStockBasicFilters(q *gorm.DB, f *model.StockBasicFilters) *gorm.DB {
	if f == nil {
		return q
	}
	if len(f.Codes) > 0 {
		q = q.Where("code IN ?", f.Codes)
	} else if c := strings.TrimSpace(f.Code); c != "" {
		q = q.Where("code = ?", c)
	}
	if s := strings.TrimSpace(f.Status); s != "" {
		q = q.Where("status = ?", strings.ToUpper(s))
	}
	if e := strings.TrimSpace(f.Exchange); e != "" {
		q = q.Where("exchange = ?", strings.ToUpper(e))
	}
	return q
}
