package dao

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "norns.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.StockBasic{}, &model.IndustryMember{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func day(t *testing.T, s string) (time.Time, int64) {
	t.Helper()
	cal := model.CalendarIn(time.FixedZone("CST", 8*3600))
	d, stamp, err := cal.ParseStamp(s)
	require.NoError(t, err)
	return d, stamp
}

func TestStockBasicExistsAndDuplicate(t *testing.T) {
	ctx := context.Background()
	d := NewStockBasicDaoFromDB(openTestDB(t))
	listDate, stamp := day(t, "1999-11-10")
	row := &model.StockBasic{Code: " 600000 ", Name: "浦发银行", Status: model.StatusListed, ListDate: listDate, ListDateStamp: stamp, Exchange: "SH"}

	key := model.StockBasicKey{Code: "600000", Status: model.StatusListed, ListDateStamp: stamp}
	ok, err := d.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Create(ctx, row))
	ok, err = d.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	dup := *row
	dup.ID = 0
	err = d.Create(ctx, &dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateKey), err.Error())

	// another status is another fact
	ok, err = d.Exists(ctx, model.StockBasicKey{Code: "600000", Status: model.StatusDelisted, ListDateStamp: stamp})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStockBasicListFiltered(t *testing.T) {
	ctx := context.Background()
	d := NewStockBasicDaoFromDB(openTestDB(t))
	listDate, stamp := day(t, "1991-04-03")
	for _, c := range []struct{ code, ex string }{{"000001", "SZ"}, {"600000", "SH"}, {"000002", "SZ"}} {
		require.NoError(t, d.Create(ctx, &model.StockBasic{
			Code: c.code, Status: model.StatusListed, ListDate: listDate, ListDateStamp: stamp, Exchange: c.ex,
			PE: decimal.NewNullDecimal(decimal.RequireFromString("5.25")),
		}))
	}

	list, err := d.ListFiltered(ctx, &model.StockBasicFilters{Exchange: "sz"}, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "000001", list[0].Code)
	assert.True(t, list[0].PE.Valid)
	assert.Equal(t, "5.25", list[0].PE.Decimal.String())
	assert.False(t, list[0].ROE.Valid)

	list, err = d.ListFiltered(ctx, &model.StockBasicFilters{Codes: []string{"600000", "000002"}}, 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "600000", list[0].Code)

	cnt, err := d.CountFiltered(ctx, &model.StockBasicFilters{Status: "l"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), cnt)
}

func TestIndustryCreateUpdateAndAsOf(t *testing.T) {
	ctx := context.Background()
	d := NewIndustryDaoFromDB(openTestDB(t))
	in, inStamp := day(t, "2021-07-30")
	m := &model.IndustryMember{
		Code: "600000", Level: model.LevelL1, Src: model.SourceSW,
		InDate: in, InDateStamp: inStamp, OutDate: model.OpenEndDate, OutDateStamp: model.OpenEndStamp,
		IndexCode: "801780.SI", IndustryName: "银行", Price: decimal.NewNullDecimal(decimal.RequireFromString("7.1")),
	}
	require.NoError(t, d.Create(ctx, m))

	_, err := d.Get(ctx, model.IndustryMemberKey{Code: "600000", Level: model.LevelL1, Src: model.SourceSW, InDateStamp: inStamp + 1})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	got, err := d.Get(ctx, m.Key())
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
	assert.Equal(t, "2021-07-30", got.InDate.Format("2006-01-02"))

	out, outStamp := day(t, "2024-06-30")
	closed := *got
	closed.OutDate, closed.OutDateStamp = out, outStamp
	closed.Price = decimal.NullDecimal{}
	require.NoError(t, d.UpdateMutable(ctx, got.ID, &closed))

	got, err = d.Get(ctx, m.Key())
	require.NoError(t, err)
	assert.Equal(t, outStamp, got.OutDateStamp)
	assert.Equal(t, "2024-06-30", got.OutDate.Format("2006-01-02"))
	assert.False(t, got.Price.Valid)

	dup := *m
	dup.ID = 0
	assert.ErrorIs(t, d.Create(ctx, &dup), ErrDuplicateKey)

	_, asOf := day(t, "2023-01-01")
	list, err := d.ListAsOf(ctx, &model.IndustryMemberFilters{Code: "600000", AsOfStamp: asOf}, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, after := day(t, "2024-07-01")
	list, err = d.ListAsOf(ctx, &model.IndustryMemberFilters{Code: "600000", AsOfStamp: after}, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	cnt, err := d.CountByLineage(ctx, "600000", model.LevelL1, model.SourceSW)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)

	assert.ErrorIs(t, d.UpdateMutable(ctx, 999, &closed), gorm.ErrRecordNotFound)
}
