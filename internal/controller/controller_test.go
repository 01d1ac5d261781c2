package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/codefmt"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/config"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/dao"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/service"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/source"
)

type fakeBuilder struct {
	mu      sync.Mutex
	busy    bool
	err     error
	levels  []string
	sources []string
	done    chan struct{}
	last    map[string]*model.BuildReport
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{done: make(chan struct{}, 4), last: map[string]*model.BuildReport{}}
}

func (f *fakeBuilder) run(kind string) (*model.BuildReport, error) {
	rep := &model.BuildReport{RunID: "run-1", Kind: kind, Fetched: 3, Inserted: 2, Skipped: 1}
	f.mu.Lock()
	f.last[kind] = rep
	f.mu.Unlock()
	f.done <- struct{}{}
	return rep, f.err
}

func (f *fakeBuilder) BuildBasicInfo(ctx context.Context) (*model.BuildReport, error) {
	return f.run("basic_info")
}

func (f *fakeBuilder) BuildIndustryClassification(ctx context.Context, levels, sources []string) (*model.BuildReport, error) {
	f.mu.Lock()
	f.levels, f.sources = levels, sources
	f.mu.Unlock()
	return f.run("industry")
}

func (f *fakeBuilder) Launch(ctx context.Context, kind string, levels, sources []string) error {
	if f.busy {
		return service.ErrBuildInProgress
	}
	go func() {
		if kind == "industry" {
			_, _ = f.BuildIndustryClassification(ctx, levels, sources)
			return
		}
		_, _ = f.BuildBasicInfo(ctx)
	}()
	return nil
}

func (f *fakeBuilder) LastReport(kind string) (*model.BuildReport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.last[kind]
	return r, ok
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", codefmt.ErrMalformedIdentifier): http.StatusBadRequest,
		model.ErrInvalidPeriod:                              http.StatusBadRequest,
		model.ErrInvalidRecord:                              http.StatusBadRequest,
		source.ErrUnsupported:                               http.StatusBadRequest,
		fmt.Errorf("%w: boom", source.ErrTransientSource):   http.StatusBadGateway,
		dao.ErrDuplicateKey:                                 http.StatusConflict,
		service.ErrBuildInProgress:                          http.StatusConflict,
		fmt.Errorf("other"):                                 http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestTriggerWait(t *testing.T) {
	b := newFakeBuilder()
	c := &SnapshotController{Builder: b}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshot/industry?wait=true",
		strings.NewReader(`{"levels":["L1"],"sources":["SW"]}`))
	rec := httptest.NewRecorder()
	c.BuildIndustry(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "industry", data["kind"])
	assert.EqualValues(t, 2, data["inserted"])
	assert.Equal(t, []string{"L1"}, b.levels)
	assert.Equal(t, []string{"SW"}, b.sources)
}

func TestTriggerWaitSurfacesError(t *testing.T) {
	b := newFakeBuilder()
	b.err = fmt.Errorf("%w: aktools down", source.ErrTransientSource)
	c := &SnapshotController{Builder: b}

	rec := httptest.NewRecorder()
	c.BuildBasicInfo(rec, httptest.NewRequest(http.MethodPost, "/api/v1/snapshot/basic_info?wait=1", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body["error"], "aktools down")
	assert.NotNil(t, body["report"])
}

func TestTriggerDetached(t *testing.T) {
	b := newFakeBuilder()
	c := &SnapshotController{Builder: b}

	rec := httptest.NewRecorder()
	c.BuildBasicInfo(rec, httptest.NewRequest(http.MethodPost, "/api/v1/snapshot/basic_info", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-b.done:
	case <-time.After(2 * time.Second):
		t.Fatal("detached build never ran")
	}

	rec = httptest.NewRecorder()
	c.Last(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/basic_info/last", nil), "basic_info")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", decode(t, rec)["data"].(map[string]any)["run_id"])
}

func TestTriggerRejectsWhileBusy(t *testing.T) {
	b := newFakeBuilder()
	b.busy = true
	c := &SnapshotController{Builder: b}

	rec := httptest.NewRecorder()
	c.BuildBasicInfo(rec, httptest.NewRequest(http.MethodPost, "/api/v1/snapshot/basic_info", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	c.BuildIndustry(rec, httptest.NewRequest(http.MethodPost, "/api/v1/snapshot/industry", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// gatedRoster blocks the roster read until release is closed.
type gatedRoster struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedRoster) FetchRoster(ctx context.Context) ([]model.RosterRow, error) {
	g.started <- struct{}{}
	<-g.release
	return nil, errors.New("gateway closed")
}

func TestDetachedTriggersAreSerialized(t *testing.T) {
	cal, err := model.NewCalendar(model.DefaultTimezone)
	require.NoError(t, err)
	roster := &gatedRoster{started: make(chan struct{}, 4), release: make(chan struct{})}
	b := service.NewSnapshotBuilderService(config.Default())
	b.Store = service.NewSnapshotStoreService(cal)
	b.Roster = roster
	b.SetRetryPolicy(service.RetryPolicy{MaxRetries: 0, Backoff: time.Millisecond})
	c := &SnapshotController{Builder: b}

	post := func(path string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		if strings.HasSuffix(path, "industry") {
			c.BuildIndustry(rec, req)
		} else {
			c.BuildBasicInfo(rec, req)
		}
		return rec.Code
	}

	assert.Equal(t, http.StatusAccepted, post("/api/v1/snapshot/basic_info"))
	assert.Equal(t, http.StatusConflict, post("/api/v1/snapshot/basic_info"))
	assert.Equal(t, http.StatusConflict, post("/api/v1/snapshot/industry"))

	<-roster.started
	close(roster.release)
	require.Eventually(t, func() bool { return !b.Busy() }, 2*time.Second, 5*time.Millisecond)

	last, ok := b.LastReport("basic_info")
	require.True(t, ok)
	assert.Contains(t, last.Error, "gateway closed")

	assert.Equal(t, http.StatusAccepted, post("/api/v1/snapshot/basic_info"))
	require.Eventually(t, func() bool { return !b.Busy() }, 2*time.Second, 5*time.Millisecond)
}

func TestLastWithoutBuild(t *testing.T) {
	c := &SnapshotController{Builder: newFakeBuilder()}
	rec := httptest.NewRecorder()
	c.Last(rec, httptest.NewRequest(http.MethodGet, "/", nil), "industry")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeStore struct {
	cal      *model.Calendar
	filters  *model.StockBasicFilters
	limit    int
	offset   int
	code     string
	level    string
	asOf     time.Time
	members  []*model.IndustryMember
	basicErr error
}

func (f *fakeStore) ListBasic(ctx context.Context, flt *model.StockBasicFilters, limit, offset int) ([]*model.StockBasic, int64, error) {
	f.filters, f.limit, f.offset = flt, limit, offset
	if f.basicErr != nil {
		return nil, 0, f.basicErr
	}
	return []*model.StockBasic{{Code: "600000", Name: "浦发银行", Status: model.StatusListed}}, 1, nil
}

func (f *fakeStore) MembershipAsOf(ctx context.Context, code, level, src string, asOf time.Time) ([]*model.IndustryMember, error) {
	f.code, f.level, f.asOf = code, level, asOf
	return f.members, nil
}

func (f *fakeStore) Calendar() *model.Calendar { return f.cal }

func newFakeStore(t *testing.T) *fakeStore {
	cal, err := model.NewCalendar(model.DefaultTimezone)
	require.NoError(t, err)
	return &fakeStore{cal: cal}
}

func TestListBasicNormalizesCodes(t *testing.T) {
	st := newFakeStore(t)
	c := &QueryController{Store: st}

	rec := httptest.NewRecorder()
	c.ListBasic(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stock/basic?code=sh600000,000001.XSHE&status=L&limit=10&offset=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"600000", "000001"}, st.filters.Codes)
	assert.Equal(t, "L", st.filters.Status)
	assert.Equal(t, 10, st.limit)
	assert.Equal(t, 5, st.offset)
	data := decode(t, rec)["data"].(map[string]any)
	assert.EqualValues(t, 1, data["total"])

	rec = httptest.NewRecorder()
	c.ListBasic(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stock/basic?code=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMembers(t *testing.T) {
	st := newFakeStore(t)
	st.members = []*model.IndustryMember{{Code: "600000", Level: model.LevelL1, Src: model.SourceSW, IndustryName: "银行"}}
	c := &QueryController{Store: st}

	rec := httptest.NewRecorder()
	c.Members(rec, httptest.NewRequest(http.MethodGet, "/api/v1/industry/members?code=600000.SH&level=l1&as_of=2024-06-30", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "600000.SH", st.code)
	assert.Equal(t, "l1", st.level)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), st.asOf)

	rec = httptest.NewRecorder()
	c.Members(rec, httptest.NewRequest(http.MethodGet, "/api/v1/industry/members?code=600000&as_of=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	c.Members(rec, httptest.NewRequest(http.MethodGet, "/api/v1/industry/members", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFormatCodes(t *testing.T) {
	c := &QueryController{Store: newFakeStore(t)}

	rec := httptest.NewRecorder()
	c.FormatCodes(rec, httptest.NewRequest(http.MethodGet, "/api/v1/codefmt?code=600000&code=000001&style=jq", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"600000.XSHG", "000001.XSHE"}, decode(t, rec)["data"])

	rec = httptest.NewRecorder()
	c.FormatCodes(rec, httptest.NewRequest(http.MethodGet, "/api/v1/codefmt?code=SH", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
