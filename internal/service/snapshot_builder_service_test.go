package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/config"
	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/source"
)

type fakeSource struct {
	mu sync.Mutex

	roster       []model.RosterRow
	fundamentals []model.FundamentalsRow
	hierarchy    map[string][]model.HierarchyRow
	members      map[string][]model.MembershipRow

	// failures[what] errors are returned, one per call, before succeeding.
	failures map[string][]error
	calls    map[string]int
}

func (f *fakeSource) hit(what string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[what]++
	if errs := f.failures[what]; len(errs) > 0 {
		f.failures[what] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *fakeSource) FetchRoster(context.Context) ([]model.RosterRow, error) {
	if err := f.hit("roster"); err != nil {
		return nil, err
	}
	return f.roster, nil
}

func (f *fakeSource) FetchFundamentals(context.Context, []string) ([]model.FundamentalsRow, error) {
	if err := f.hit("fundamentals"); err != nil {
		return nil, err
	}
	return f.fundamentals, nil
}

func (f *fakeSource) FetchHierarchy(_ context.Context, src, level string) ([]model.HierarchyRow, error) {
	if err := f.hit("hierarchy " + src + "/" + level); err != nil {
		return nil, err
	}
	return f.hierarchy[level], nil
}

func (f *fakeSource) FetchMembership(_ context.Context, indexCode string) ([]model.MembershipRow, error) {
	if err := f.hit("membership " + indexCode); err != nil {
		return nil, err
	}
	return f.members[indexCode], nil
}

func transient(what string) error {
	return fmt.Errorf("%w: %s: connection reset", source.ErrTransientSource, what)
}

func newTestBuilder(t *testing.T, src *fakeSource) (*SnapshotBuilderService, *SnapshotStoreService) {
	t.Helper()
	store, _ := newTestStore(t)
	cfg := &config.BizConfig{Source: config.SourceConfig{Fundamentals: true}}
	b := NewSnapshotBuilderService(cfg)
	b.Store = store
	b.Roster = src
	b.Fundamentals = src
	b.Classification = src
	b.SetRetryPolicy(RetryPolicy{MaxRetries: 1, Backoff: time.Millisecond})
	return b, store
}

func industrySource() *fakeSource {
	return &fakeSource{
		hierarchy: map[string][]model.HierarchyRow{
			"L1": {{IndexCode: "801780.SI", IndustryName: "银行", Src: "sw", Level: "l1"}},
		},
		members: map[string][]model.MembershipRow{
			"801780.SI": {
				{Code: "601398.SH", Name: "工商银行", InDate: "2021-07-30", SW1: "银行", PE: decimal.NewNullDecimal(decimal.RequireFromString("4.8"))},
				{Code: "000001.SZ", Name: "平安银行", InDate: "2021-07-30"},
				{Code: "600000.SH", Name: "浦发银行", InDate: "2014-02-21", OutDate: "2021-07-29"},
				{Code: "N/A", Name: "bad code", InDate: "2021-07-30"},
				{Code: "600036.SH", Name: "招商银行", InDate: "someday"},
			},
		},
	}
}

func TestBuildBasicInfo(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{
		roster: []model.RosterRow{
			{Code: "600000", Name: "浦发银行", ListDate: "1999-11-10", Board: "主板A股"},
			{Code: "1", Name: "平安银行", ListDate: "1991-04-03", Board: "A股列表"},
			{Code: "", Name: "blank", ListDate: "2000-01-01"},
			{Code: "688001", Name: "华兴源创", ListDate: "not a date"},
		},
		fundamentals: []model.FundamentalsRow{
			{Code: "000001", PE: decimal.NewNullDecimal(decimal.RequireFromString("4.5")), Industry: "银行"},
		},
		failures: map[string][]error{"roster": {transient("roster")}},
	}
	b, store := newTestBuilder(t, src)

	rep, err := b.BuildBasicInfo(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 4, rep.Fetched)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 2, rep.Inserted)
	assert.Len(t, rep.SkippedSamples, 2)
	assert.Equal(t, 2, src.calls["roster"], "one retry after a transient failure")

	list, _, err := store.ListBasic(ctx, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "000001", list[0].Code)
	assert.Equal(t, "SZ", list[0].Exchange)
	assert.Equal(t, model.StatusListed, list[0].Status)
	assert.Equal(t, "4.5", list[0].PE.Decimal.String())
	assert.Equal(t, "银行", list[0].Industry)
	assert.Equal(t, "SH", list[1].Exchange)
	assert.False(t, list[1].PE.Valid)

	rep, err = b.BuildBasicInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Inserted)
	assert.Equal(t, 2, rep.Existing)
}

func TestBuildIndustryClassification(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBuilder(t, industrySource())

	rep, err := b.BuildIndustryClassification(ctx, []string{"L1"}, []string{"SW"})
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Fetched)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 3, rep.Inserted)

	rows, err := store.MembershipAsOf(ctx, "601398", "l1", "sw", mustDate(t, "2024-01-02"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "801780.SI", rows[0].IndexCode)
	assert.Equal(t, "银行", rows[0].IndustryName)
	assert.Equal(t, "4.8", rows[0].PE.Decimal.String())
	assert.True(t, rows[0].IsOpen())

	rows, err = store.MembershipAsOf(ctx, "600000", "l1", "sw", mustDate(t, "2024-01-02"))
	require.NoError(t, err)
	assert.Empty(t, rows, "closed before the as-of day")

	rep, err = b.BuildIndustryClassification(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Inserted)
	assert.Equal(t, 3, rep.Updated)
}

func TestBuildIndustryRetriesOnceThenAborts(t *testing.T) {
	ctx := context.Background()
	src := industrySource()
	src.failures = map[string][]error{
		"hierarchy SW/L1":      {transient("hierarchy")},
		"membership 801780.SI": {transient("cons"), transient("cons")},
	}
	b, store := newTestBuilder(t, src)

	_, err := b.BuildIndustryClassification(ctx, []string{"L1"}, []string{"SW"})
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrTransientSource)
	assert.Equal(t, 2, src.calls["hierarchy SW/L1"])
	assert.Equal(t, 2, src.calls["membership 801780.SI"])

	cnt, err := store.IndustryDao.CountByLineage(ctx, "601398", model.LevelL1, model.SourceSW)
	require.NoError(t, err)
	assert.Zero(t, cnt, "nothing is written by an aborted run")
}

func TestNonTransientErrorsAreNotRetried(t *testing.T) {
	src := industrySource()
	unsupported := fmt.Errorf("%w: industry level %q", source.ErrUnsupported, "l9")
	src.failures = map[string][]error{"hierarchy SW/L9": {unsupported}}
	b, _ := newTestBuilder(t, src)

	_, err := b.BuildIndustryClassification(context.Background(), []string{"L9"}, []string{"SW"})
	assert.ErrorIs(t, err, source.ErrUnsupported)
	assert.Equal(t, 1, src.calls["hierarchy SW/L9"])
}

func TestOneBuildAtATime(t *testing.T) {
	b, _ := newTestBuilder(t, industrySource())
	b.mu.Lock()
	assert.True(t, b.Busy())
	_, err := b.BuildBasicInfo(context.Background())
	assert.True(t, errors.Is(err, ErrBuildInProgress))
	b.mu.Unlock()
	assert.False(t, b.Busy())

	_, ok := b.LastReport(bizConsts.BUILD_INDUSTRY)
	assert.False(t, ok)
	rep, err := b.BuildIndustryClassification(context.Background(), []string{"L1"}, nil)
	assert.NoError(t, err)
	last, ok := b.LastReport(bizConsts.BUILD_INDUSTRY)
	require.True(t, ok)
	assert.Equal(t, rep.RunID, last.RunID)
	assert.False(t, last.FinishedAt.IsZero())
}

func TestLaunchLocksBeforeReturning(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuilder(t, industrySource())

	assert.ErrorIs(t, b.Launch(ctx, "daily_bars", nil, nil), source.ErrUnsupported)
	assert.False(t, b.Busy())

	b.mu.Lock()
	assert.ErrorIs(t, b.Launch(ctx, bizConsts.BUILD_INDUSTRY, nil, nil), ErrBuildInProgress)
	b.mu.Unlock()

	require.NoError(t, b.Launch(ctx, bizConsts.BUILD_INDUSTRY, []string{"L1"}, nil))
	require.Eventually(t, func() bool { return !b.Busy() }, 2*time.Second, 5*time.Millisecond)
	last, ok := b.LastReport(bizConsts.BUILD_INDUSTRY)
	require.True(t, ok)
	assert.Empty(t, last.Error)
	assert.Equal(t, 3, last.Inserted)
	assert.Equal(t, 2, last.Skipped)
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := RetryPolicy{MaxRetries: 3, Backoff: time.Hour}
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, "x", func(context.Context) error {
			calls++
			return transient("x")
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}
