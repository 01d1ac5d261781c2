package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/dao"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

func basic(t *testing.T, code, listDate string) *model.StockBasic {
	d, stamp, err := testCalendar().ParseStamp(listDate)
	require.NoError(t, err)
	return &model.StockBasic{Code: code, Name: "n" + code, Status: model.StatusListed, ListDate: d, ListDateStamp: stamp}
}

func member(t *testing.T, code, in, out string) *model.IndustryMember {
	m := &model.IndustryMember{Code: code, Level: "L1", Src: "SW", InDate: mustDate(t, in), IndustryName: "银行"}
	if out != "" {
		m.OutDate = mustDate(t, out)
	}
	return m
}

func lineage(t *testing.T, s *SnapshotStoreService, code string) []*model.IndustryMember {
	t.Helper()
	list, err := s.IndustryDao.ListAsOf(context.Background(), &model.IndustryMemberFilters{Code: code, Level: model.LevelL1, Src: model.SourceSW}, 0)
	require.NoError(t, err)
	return list
}

func TestInsertNewBasicInfoIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	batch := func() []*model.StockBasic {
		return []*model.StockBasic{basic(t, "600000", "1999-11-10"), basic(t, "000001", "1991-04-03")}
	}

	rep, err := s.InsertNewBasicInfo(ctx, batch())
	require.NoError(t, err)
	assert.Equal(t, model.InsertReport{Inserted: 2}, *rep)

	again := batch()
	again[0].Name = "renamed"
	rep, err = s.InsertNewBasicInfo(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, model.InsertReport{Existing: 2}, *rep)

	list, total, err := s.ListBasic(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "n000001", list[0].Name)
	assert.Equal(t, "n600000", list[1].Name, "existing rows are never updated")

	assert.Equal(t, float64(2), testutil.ToFloat64(s.records.WithLabelValues(bizConsts.COLLECTION_STOCK_BASIC, bizConsts.RESULT_EXISTING)))
}

func TestInsertNewBasicInfoRejectsInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	bad := basic(t, "600000", "1999-11-10")
	bad.Status = ""
	_, err := s.InsertNewBasicInfo(context.Background(), []*model.StockBasic{bad})
	assert.ErrorIs(t, err, model.ErrInvalidRecord)
}

// racingBasicDao behaves as if another writer stored the key between check and insert.
type racingBasicDao struct {
	dao.StockBasicDao
}

func (racingBasicDao) Exists(context.Context, model.StockBasicKey) (bool, error) { return false, nil }
func (racingBasicDao) Create(context.Context, *model.StockBasic) error        { return dao.ErrDuplicateKey }

func TestDuplicateKeyIsSurfaced(t *testing.T) {
	s, _ := newTestStore(t)
	s.BasicDao = racingBasicDao{}
	rep, err := s.InsertNewBasicInfo(context.Background(), []*model.StockBasic{basic(t, "600000", "1999-11-10")})
	assert.ErrorIs(t, err, dao.ErrDuplicateKey)
	assert.Equal(t, 0, rep.Inserted)
}

func TestUpsertMembershipIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	batch := func() []*model.IndustryMember {
		a := member(t, "600000", "2021-07-30", "")
		a.Price = decimal.NewNullDecimal(decimal.RequireFromString("7.1"))
		return []*model.IndustryMember{a, member(t, "000001", "2021-07-30", "")}
	}

	rep, err := s.UpsertMembership(ctx, batch())
	require.NoError(t, err)
	assert.Equal(t, model.UpsertReport{Inserted: 2}, *rep)
	first := lineage(t, s, "600000")

	rep, err = s.UpsertMembership(ctx, batch())
	require.NoError(t, err)
	assert.Equal(t, model.UpsertReport{Updated: 2}, *rep)
	second := lineage(t, s, "600000")

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].OutDateStamp, second[0].OutDateStamp)
	assert.Equal(t, model.OpenEndStamp, second[0].OutDateStamp)
	assert.Equal(t, "7.1", second[0].Price.Decimal.String())
	assert.Equal(t, model.LevelL1, second[0].Level)
	assert.Equal(t, model.SourceSW, second[0].Src)
}

func TestUpsertMembershipLineage(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.UpsertMembership(ctx, []*model.IndustryMember{member(t, "600000", "2021-07-30", "")})
	require.NoError(t, err)

	// closing keeps one row for the key
	rep, err := s.UpsertMembership(ctx, []*model.IndustryMember{member(t, "600000", "2021-07-30", "2024-06-30")})
	require.NoError(t, err)
	assert.Equal(t, model.UpsertReport{Updated: 1}, *rep)
	rows := lineage(t, s, "600000")
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-06-30", rows[0].OutDate.Format("2006-01-02"))
	assert.False(t, rows[0].IsOpen())

	// a new period is new history
	rep, err = s.UpsertMembership(ctx, []*model.IndustryMember{member(t, "600000", "2024-07-01", "")})
	require.NoError(t, err)
	assert.Equal(t, model.UpsertReport{Inserted: 1}, *rep)
	rows = lineage(t, s, "600000")
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-07-01", rows[0].InDate.Format("2006-01-02"))
	assert.True(t, rows[0].IsOpen())
	assert.Equal(t, "2024-06-30", rows[1].OutDate.Format("2006-01-02"))

	// closed stays closed
	_, err = s.UpsertMembership(ctx, []*model.IndustryMember{member(t, "600000", "2021-07-30", "")})
	require.NoError(t, err)
	rows = lineage(t, s, "600000")
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-06-30", rows[1].OutDate.Format("2006-01-02"))

	asOf, err := s.MembershipAsOf(ctx, "600000.SH", "L1", "sw", mustDate(t, "2023-01-01"))
	require.NoError(t, err)
	require.Len(t, asOf, 1)
	assert.Equal(t, "2021-07-30", asOf[0].InDate.Format("2006-01-02"))

	asOf, err = s.MembershipAsOf(ctx, "SH600000", "", "", mustDate(t, "2024-07-02"))
	require.NoError(t, err)
	require.Len(t, asOf, 1)
	assert.True(t, asOf[0].IsOpen())
}

func TestUpsertMembershipRejectsInvertedPeriod(t *testing.T) {
	s, _ := newTestStore(t)
	rep, err := s.UpsertMembership(context.Background(), []*model.IndustryMember{
		member(t, "600000", "2021-07-30", ""),
		member(t, "000001", "2024-07-01", "2024-06-30"),
	})
	assert.ErrorIs(t, err, model.ErrInvalidPeriod)
	assert.Equal(t, 1, rep.Inserted)
}
