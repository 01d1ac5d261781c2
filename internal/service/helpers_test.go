package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/dao"
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

func testCalendar() *model.Calendar {
	return model.CalendarIn(time.FixedZone("CST", 8*3600))
}

func newTestStore(t *testing.T) (*SnapshotStoreService, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	s := NewSnapshotStoreService(testCalendar())
	s.BasicDao = dao.NewStockBasicDaoFromDB(db)
	s.IndustryDao = dao.NewIndustryDaoFromDB(db)
	return s, db
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := testCalendar().ParseDate(s)
	require.NoError(t, err)
	return d
}
