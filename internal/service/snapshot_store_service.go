package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/codefmt"
	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/dao"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/metrics"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

// SnapshotStoreService owns the write policies of the snapshot tables: versioned upsert for
// industry memberships and append-if-new for stock basics.
type SnapshotStoreService struct {
	*core.BaseComponent
	BasicDao    dao.StockBasicDao  `infra:"dep:dao_stock_basic"`
	IndustryDao dao.IndustryDao    `infra:"dep:dao_industry"`
	Metrics     *metrics.Component `infra:"dep:prometheus?"`

	cal     *model.Calendar
	records *prometheus.CounterVec
}

func NewSnapshotStoreService(cal *model.Calendar) *SnapshotStoreService {
	return &SnapshotStoreService{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_SNAPSHOT_STORE),
		cal:           cal,
	}
}

func (s *SnapshotStoreService) Start(ctx context.Context) error {
	if err := s.BaseComponent.Start(ctx); err != nil {
		return err
	}
	s.initMetrics()
	return nil
}

func (s *SnapshotStoreService) Stop(ctx context.Context) error { return s.BaseComponent.Stop(ctx) }

func (s *SnapshotStoreService) initMetrics() {
	if s.records == nil {
		s.records = s.Metrics.NewCounter("snapshot_records_total",
			"Snapshot records written, by collection and result.", []string{"collection", "result"})
	}
}

func (s *SnapshotStoreService) Calendar() *model.Calendar { return s.cal }

func (s *SnapshotStoreService) count(collection, result string) {
	s.initMetrics()
	s.records.WithLabelValues(collection, result).Inc()
}

// UpsertMembership writes records in input order. A record whose natural key is stored
// replaces every mutable column of the stored row; otherwise it is inserted. A stored row
// with a concrete end date is never reopened by an incoming open record.
func (s *SnapshotStoreService) UpsertMembership(ctx context.Context, records []*model.IndustryMember) (*model.UpsertReport, error) {
	rep := &model.UpsertReport{}
	for i, m := range records {
		if m == nil {
			continue
		}
		m.Level = strings.ToLower(m.Level)
		m.Src = strings.ToLower(m.Src)
		m.ApplyPeriod(s.cal)
		if err := m.Validate(); err != nil {
			return rep, fmt.Errorf("industry record %d: %w", i, err)
		}

		stored, err := s.IndustryDao.Get(ctx, m.Key())
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.IndustryDao.Create(ctx, m); err != nil {
				return rep, fmt.Errorf("insert industry %s/%s/%s@%d: %w", m.Code, m.Level, m.Src, m.InDateStamp, err)
			}
			rep.Inserted++
			s.count(bizConsts.COLLECTION_INDUSTRY, bizConsts.RESULT_INSERTED)
		case err != nil:
			return rep, fmt.Errorf("load industry %s/%s/%s@%d: %w", m.Code, m.Level, m.Src, m.InDateStamp, err)
		default:
			if !stored.IsOpen() && m.IsOpen() {
				logging.Debug(ctx, "closed membership kept closed",
					zap.String("code", m.Code), zap.String("level", m.Level), zap.Int64("out_date_stamp", stored.OutDateStamp))
				m.OutDate, m.OutDateStamp = stored.OutDate, stored.OutDateStamp
			}
			if err := s.IndustryDao.UpdateMutable(ctx, stored.ID, m); err != nil {
				return rep, fmt.Errorf("update industry %s/%s/%s@%d: %w", m.Code, m.Level, m.Src, m.InDateStamp, err)
			}
			m.ID = stored.ID
			rep.Updated++
			s.count(bizConsts.COLLECTION_INDUSTRY, bizConsts.RESULT_UPDATED)
		}
	}
	return rep, nil
}

// InsertNewBasicInfo inserts records whose exact natural key is not stored yet. Existing rows
// are left untouched even when descriptive fields differ.
func (s *SnapshotStoreService) InsertNewBasicInfo(ctx context.Context, records []*model.StockBasic) (*model.InsertReport, error) {
	rep := &model.InsertReport{}
	for i, b := range records {
		if b == nil {
			continue
		}
		if err := b.Validate(); err != nil {
			return rep, fmt.Errorf("basic record %d: %w", i, err)
		}
		exists, err := s.BasicDao.Exists(ctx, b.Key())
		if err != nil {
			return rep, fmt.Errorf("check stock_basic %s: %w", b.Code, err)
		}
		if exists {
			rep.Existing++
			s.count(bizConsts.COLLECTION_STOCK_BASIC, bizConsts.RESULT_EXISTING)
			continue
		}
		if err := s.BasicDao.Create(ctx, b); err != nil {
			return rep, fmt.Errorf("insert stock_basic %s: %w", b.Code, err)
		}
		rep.Inserted++
		s.count(bizConsts.COLLECTION_STOCK_BASIC, bizConsts.RESULT_INSERTED)
	}
	return rep, nil
}

// MembershipAsOf returns memberships of code valid on day asOf (zero means today).
// Code may be in any convention; level and src are optional.
func (s *SnapshotStoreService) MembershipAsOf(ctx context.Context, code, level, src string, asOf time.Time) ([]*model.IndustryMember, error) {
	bare, err := codefmt.Normalize(code, codefmt.Plain)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.cal.Date(time.Now())
	}
	return s.IndustryDao.ListAsOf(ctx, &model.IndustryMemberFilters{
		Code:      bare,
		Level:     strings.ToLower(level),
		Src:       strings.ToLower(src),
		AsOfStamp: s.cal.Stamp(asOf),
	}, 0)
}

func (s *SnapshotStoreService) ListBasic(ctx context.Context, f *model.StockBasicFilters, limit, offset int) ([]*model.StockBasic, int64, error) {
	list, err := s.BasicDao.ListFiltered(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.BasicDao.CountFiltered(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
