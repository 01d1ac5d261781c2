package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/codefmt"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/config"
	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/metrics"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/source"
)

// ErrBuildInProgress is returned when a build is triggered while another one runs.
var ErrBuildInProgress = errors.New("snapshot build in progress")

const instrumentationName = "github.com/grand-thief-cash/chaos/app/projects/norns/internal/service"

// SnapshotBuilderService pulls provider tables, relabels them into snapshot records and
// hands them to the store. One build runs at a time per process.
type SnapshotBuilderService struct {
	*core.BaseComponent
	Store          *SnapshotStoreService       `infra:"dep:snapshot_store_service"`
	Roster         source.RosterSource         `infra:"dep:source_aktools"`
	Fundamentals   source.FundamentalsSource   `infra:"dep:source_aktools"`
	Classification source.ClassificationSource `infra:"dep:source_aktools"`
	Metrics        *metrics.Component          `infra:"dep:prometheus?"`

	cfg   *config.BizConfig
	retry RetryPolicy

	mu       sync.Mutex
	lastMu   sync.RWMutex
	last     map[string]*model.BuildReport
	tracer   trace.Tracer
	runs     metric.Int64Counter
	duration *prometheus.HistogramVec
}

func NewSnapshotBuilderService(cfg *config.BizConfig) *SnapshotBuilderService {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyDefaults()
	return &SnapshotBuilderService{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_SNAPSHOT_BUILDER),
		cfg:           cfg,
		retry:         RetryPolicy{MaxRetries: cfg.Retry.MaxRetries, Backoff: cfg.Retry.Backoff},
		last:          make(map[string]*model.BuildReport),
	}
}

// Busy reports whether a build currently holds the lock.
func (s *SnapshotBuilderService) Busy() bool {
	if s.mu.TryLock() {
		s.mu.Unlock()
		return false
	}
	return true
}

// LastReport returns the report of the latest finished build of kind.
func (s *SnapshotBuilderService) LastReport(kind string) (*model.BuildReport, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	r, ok := s.last[kind]
	return r, ok
}

func (s *SnapshotBuilderService) Start(ctx context.Context) error {
	if err := s.BaseComponent.Start(ctx); err != nil {
		return err
	}
	s.initInstruments()
	return nil
}

func (s *SnapshotBuilderService) Stop(ctx context.Context) error { return s.BaseComponent.Stop(ctx) }

func (s *SnapshotBuilderService) initInstruments() {
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}
	if s.runs == nil {
		runs, err := otel.Meter(instrumentationName).Int64Counter("norns.snapshot.builds",
			metric.WithDescription("Snapshot build runs by kind and result."))
		if err != nil {
			logging.Warnf(context.Background(), "create build counter: %v", err)
		}
		s.runs = runs
	}
	if s.duration == nil {
		s.duration = s.Metrics.NewHistogram("snapshot_build_duration_seconds",
			"Snapshot build duration.", []string{"kind", "result"}, []float64{1, 5, 30, 60, 300, 900, 1800, 3600})
	}
}

// SetRetryPolicy overrides the configured policy.
func (s *SnapshotBuilderService) SetRetryPolicy(p RetryPolicy) { s.retry = p }

// open starts the run span for a build whose lock the caller holds. finish releases the lock.
func (s *SnapshotBuilderService) open(ctx context.Context, kind string) (context.Context, *model.BuildReport, func(*model.BuildReport, error)) {
	s.initInstruments()

	rep := &model.BuildReport{RunID: uuid.NewString(), Kind: kind, StartedAt: time.Now()}
	ctx = logging.WithTraceID(ctx, rep.RunID)
	ctx, span := s.tracer.Start(ctx, "snapshot.build."+kind,
		trace.WithAttributes(attribute.String("norns.run_id", rep.RunID), attribute.String("norns.build_kind", kind)))
	logging.Info(ctx, "snapshot build started", zap.String("kind", kind), zap.String("run_id", rep.RunID))

	finish := func(r *model.BuildReport, err error) {
		defer s.mu.Unlock()
		r.FinishedAt = time.Now()
		result := "ok"
		if err != nil {
			result = "error"
			r.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logging.Error(ctx, "snapshot build failed", zap.String("kind", kind), zap.Error(err))
		} else {
			logging.Info(ctx, "snapshot build finished",
				zap.String("kind", kind),
				zap.Int("fetched", r.Fetched),
				zap.Int("skipped", r.Skipped),
				zap.Int("inserted", r.Inserted),
				zap.Int("updated", r.Updated),
				zap.Int("existing", r.Existing),
				zap.Duration("took", r.FinishedAt.Sub(r.StartedAt)),
			)
		}
		span.SetAttributes(
			attribute.Int("norns.fetched", r.Fetched),
			attribute.Int("norns.skipped", r.Skipped),
			attribute.Int("norns.inserted", r.Inserted),
			attribute.Int("norns.updated", r.Updated),
		)
		span.End()
		s.lastMu.Lock()
		s.last[kind] = r
		s.lastMu.Unlock()
		s.duration.WithLabelValues(kind, result).Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
		if s.runs != nil {
			s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind), attribute.String("result", result)))
		}
	}
	return ctx, rep, finish
}

type buildFunc func(ctx context.Context, rep *model.BuildReport) error

// run executes build with the lock held and releases it when done.
func (s *SnapshotBuilderService) run(ctx context.Context, kind string, build buildFunc) (rep *model.BuildReport, err error) {
	ctx, rep, finish := s.open(ctx, kind)
	defer func() { finish(rep, err) }()
	err = build(ctx, rep)
	return rep, err
}

// Launch takes the build lock before returning and runs the build on ctx in the background.
// A concurrent trigger gets ErrBuildInProgress. The outcome is logged and kept as the last report.
func (s *SnapshotBuilderService) Launch(ctx context.Context, kind string, levels, sources []string) error {
	var build buildFunc
	switch kind {
	case bizConsts.BUILD_BASIC_INFO:
		build = s.buildBasicInfo
	case bizConsts.BUILD_INDUSTRY:
		build = s.industryBuild(levels, sources)
	default:
		return fmt.Errorf("%w: build kind %q", source.ErrUnsupported, kind)
	}
	if !s.mu.TryLock() {
		return ErrBuildInProgress
	}
	go func() { _, _ = s.run(ctx, kind, build) }()
	return nil
}

// BuildBasicInfo refreshes stock_basic from the listing rosters. Rows with malformed codes
// or list dates are skipped; a roster read that keeps failing aborts before any write.
func (s *SnapshotBuilderService) BuildBasicInfo(ctx context.Context) (*model.BuildReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrBuildInProgress
	}
	return s.run(ctx, bizConsts.BUILD_BASIC_INFO, s.buildBasicInfo)
}

func (s *SnapshotBuilderService) buildBasicInfo(ctx context.Context, rep *model.BuildReport) error {
	var roster []model.RosterRow
	err := s.retry.Do(ctx, "roster", func(ctx context.Context) error {
		rows, ferr := s.Roster.FetchRoster(ctx)
		roster = rows
		return ferr
	})
	if err != nil {
		return fmt.Errorf("fetch roster: %w", err)
	}
	rep.Fetched = len(roster)

	cal := s.Store.Calendar()
	records := make([]*model.StockBasic, 0, len(roster))
	for i, r := range roster {
		code, nerr := codefmt.Normalize(codefmt.ZeroPad(r.Code, 6), codefmt.Plain)
		if nerr != nil {
			s.skip(ctx, rep, bizConsts.COLLECTION_STOCK_BASIC, fmt.Sprintf("roster row %d code %q: %v", i, r.Code, nerr))
			continue
		}
		listDate, stamp, perr := cal.ParseStamp(r.ListDate)
		if perr != nil {
			s.skip(ctx, rep, bizConsts.COLLECTION_STOCK_BASIC, fmt.Sprintf("roster row %d code %s: %v", i, code, perr))
			continue
		}
		records = append(records, &model.StockBasic{
			Code:          code,
			Name:          r.Name,
			Status:        model.StatusListed,
			ListDate:      listDate,
			ListDateStamp: stamp,
			Exchange:      string(codefmt.MarketOf(code)),
			Board:         r.Board,
		})
	}

	if s.cfg.Source.Fundamentals && s.Fundamentals != nil && len(records) > 0 {
		if err := s.joinFundamentals(ctx, records); err != nil {
			return err
		}
	}

	ins, err := s.Store.InsertNewBasicInfo(ctx, records)
	rep.AddInsert(ins)
	return err
}

func (s *SnapshotBuilderService) joinFundamentals(ctx context.Context, records []*model.StockBasic) error {
	wanted := make([]string, 0, len(records))
	for _, r := range records {
		wanted = append(wanted, r.Code)
	}
	var rows []model.FundamentalsRow
	err := s.retry.Do(ctx, "fundamentals", func(ctx context.Context) error {
		fetched, ferr := s.Fundamentals.FetchFundamentals(ctx, wanted)
		rows = fetched
		return ferr
	})
	if err != nil {
		return fmt.Errorf("fetch fundamentals: %w", err)
	}
	byCode := make(map[string]model.FundamentalsRow, len(rows))
	for _, f := range rows {
		code, nerr := codefmt.Normalize(codefmt.ZeroPad(f.Code, 6), codefmt.Plain)
		if nerr != nil {
			continue
		}
		byCode[code] = f
	}
	for _, r := range records {
		f, ok := byCode[r.Code]
		if !ok {
			continue
		}
		r.Profit = f.Profit
		r.TotalMarketValue = f.TotalMarketValue
		r.FlowMarketValue = f.FlowMarketValue
		r.PE = f.PE
		r.PB = f.PB
		r.ROE = f.ROE
		r.GrossProfitRatio = f.GrossProfitRatio
		r.NetProfitRatio = f.NetProfitRatio
		r.Industry = f.Industry
		r.SectorID = f.SectorID
	}
	return nil
}

// BuildIndustryClassification refreshes industry memberships for every (source, level).
// Empty arguments fall back to the configured defaults. All provider reads finish before
// the first write, so an aborted run leaves the table as it was.
func (s *SnapshotBuilderService) BuildIndustryClassification(ctx context.Context, levels, sources []string) (*model.BuildReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrBuildInProgress
	}
	return s.run(ctx, bizConsts.BUILD_INDUSTRY, s.industryBuild(levels, sources))
}

func (s *SnapshotBuilderService) industryBuild(levels, sources []string) buildFunc {
	if len(levels) == 0 {
		levels = s.cfg.Industry.Levels
	}
	if len(sources) == 0 {
		sources = s.cfg.Industry.Sources
	}
	return func(ctx context.Context, rep *model.BuildReport) error {
		return s.buildIndustry(ctx, rep, levels, sources)
	}
}

func (s *SnapshotBuilderService) buildIndustry(ctx context.Context, rep *model.BuildReport, levels, sources []string) error {
	var err error
	var hierarchy []model.HierarchyRow
	for _, src := range sources {
		for _, lv := range levels {
			var rows []model.HierarchyRow
			err = s.retry.Do(ctx, "hierarchy "+src+"/"+lv, func(ctx context.Context) error {
				fetched, ferr := s.Classification.FetchHierarchy(ctx, src, lv)
				rows = fetched
				return ferr
			})
			if err != nil {
				return fmt.Errorf("fetch %s %s hierarchy: %w", src, lv, err)
			}
			for i := range rows {
				if rows[i].Src == "" {
					rows[i].Src = src
				}
				if rows[i].Level == "" {
					rows[i].Level = lv
				}
			}
			hierarchy = append(hierarchy, rows...)
		}
	}
	logging.Info(ctx, "industry hierarchy loaded", zap.Int("indexes", len(hierarchy)))

	cal := s.Store.Calendar()
	var members []*model.IndustryMember
	for i, h := range hierarchy {
		if i%s.cfg.ProgressEvery == 0 {
			logging.Infof(ctx, "fetching industry members %d/%d (%s)", i, len(hierarchy), h.IndexCode)
		}
		var rows []model.MembershipRow
		err = s.retry.Do(ctx, "membership "+h.IndexCode, func(ctx context.Context) error {
			fetched, ferr := s.Classification.FetchMembership(ctx, h.IndexCode)
			rows = fetched
			return ferr
		})
		if err != nil {
			return fmt.Errorf("fetch members of %s: %w", h.IndexCode, err)
		}
		rep.Fetched += len(rows)
		for _, r := range rows {
			m, reason := memberFromRow(cal, h, r)
			if m == nil {
				s.skip(ctx, rep, bizConsts.COLLECTION_INDUSTRY, reason)
				continue
			}
			members = append(members, m)
		}
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].Code < members[j].Code })

	up, err := s.Store.UpsertMembership(ctx, members)
	rep.AddUpsert(up)
	return err
}

// memberFromRow relabels one constituent row; a nil record comes with the skip reason.
func memberFromRow(cal *model.Calendar, h model.HierarchyRow, r model.MembershipRow) (*model.IndustryMember, string) {
	code, err := codefmt.Normalize(r.Code, codefmt.Plain)
	if err != nil {
		return nil, fmt.Sprintf("%s member %q: %v", h.IndexCode, r.Code, err)
	}
	in, err := cal.ParseDate(r.InDate)
	if err != nil {
		return nil, fmt.Sprintf("%s member %s: in_date: %v", h.IndexCode, code, err)
	}
	var out time.Time
	if strings.TrimSpace(r.OutDate) != "" {
		if out, err = cal.ParseDate(r.OutDate); err != nil {
			return nil, fmt.Sprintf("%s member %s: out_date: %v", h.IndexCode, code, err)
		}
	}
	m := &model.IndustryMember{
		Code:            code,
		Level:           strings.ToLower(h.Level),
		Src:             strings.ToLower(h.Src),
		InDate:          in,
		OutDate:         out,
		IndexCode:       h.IndexCode,
		IndustryName:    h.IndustryName,
		Name:            r.Name,
		SW1:             r.SW1,
		SW2:             r.SW2,
		SW3:             r.SW3,
		Price:           r.Price,
		PE:              r.PE,
		PETTM:           r.PETTM,
		PB:              r.PB,
		DividendRate:    r.DividendRate,
		MarketValue:     r.MarketValue,
		ProfitGrowthQ3:  r.ProfitGrowthQ3,
		ProfitGrowthH1:  r.ProfitGrowthH1,
		RevenueGrowthQ3: r.RevenueGrowthQ3,
		RevenueGrowthH1: r.RevenueGrowthH1,
	}
	m.ApplyPeriod(cal)
	if err := m.Validate(); err != nil {
		return nil, err.Error()
	}
	return m, ""
}

func (s *SnapshotBuilderService) skip(ctx context.Context, rep *model.BuildReport, collection, reason string) {
	rep.Skip(reason)
	s.Store.count(collection, bizConsts.RESULT_SKIPPED)
	logging.Warn(ctx, "snapshot row skipped", zap.String("collection", collection), zap.String("reason", reason))
}
