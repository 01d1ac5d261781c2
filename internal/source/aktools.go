package source

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/httpclient"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	redisComp "github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/redis"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

const publicAPI = "/api/public/"

// Board keys accepted in biz_config.source.roster_boards.
const (
	BoardSHMain = "sh_main"
	BoardSHStar = "sh_star"
	BoardSZA    = "sz_a"
	BoardBJ     = "bj"
)

type rosterBoard struct {
	fn    string
	query map[string]string
	label string
	code  string
	name  string
	date  string
}

var rosterBoards = map[string]rosterBoard{
	BoardSHMain: {fn: "stock_info_sh_name_code", query: map[string]string{"symbol": "主板A股"}, label: "主板A股",
		code: "证券代码", name: "证券简称", date: "上市日期"},
	BoardSHStar: {fn: "stock_info_sh_name_code", query: map[string]string{"symbol": "科创板"}, label: "科创板",
		code: "证券代码", name: "证券简称", date: "上市日期"},
	BoardSZA: {fn: "stock_info_sz_name_code", query: map[string]string{"symbol": "A股列表"}, label: "A股列表",
		code: "A股代码", name: "A股简称", date: "A股上市日期"},
	BoardBJ: {fn: "stock_info_bj_name_code", label: "北交所",
		code: "证券代码", name: "证券简称", date: "上市日期"},
}

var hierarchyFuncs = map[string]string{
	model.LevelL1: "sw_index_first_info",
	model.LevelL2: "sw_index_second_info",
	model.LevelL3: "sw_index_third_info",
}

// AKTools reads akshare tables through an AKTools HTTP gateway.
type AKTools struct {
	*core.BaseComponent
	HTTPClients *httpclient.HTTPClientsComponent `infra:"dep:http_clients"`
	Redis       *redisComp.RedisComponent        `infra:"dep:redis?"`

	clientName string
	boards     []string
	cacheTTL   time.Duration

	client *httpclient.InstrumentedClient
	cache  Cache
	now    func() time.Time
}

func NewAKTools(clientName string, boards []string, cacheTTL time.Duration) *AKTools {
	return &AKTools{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SOURCE_AKTOOLS, consts.COMPONENT_LOGGING),
		clientName:    clientName,
		boards:        boards,
		cacheTTL:      cacheTTL,
		now:           time.Now,
	}
}

// NewAKToolsWithClient skips component wiring; cache may be nil.
func NewAKToolsWithClient(client *httpclient.InstrumentedClient, boards []string, cache Cache, cacheTTL time.Duration) *AKTools {
	a := NewAKTools(client.Name, boards, cacheTTL)
	a.client = client
	a.cache = cache
	return a
}

func (a *AKTools) Start(ctx context.Context) error {
	if err := a.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if a.client == nil {
		if a.HTTPClients == nil {
			return fmt.Errorf("aktools: http_clients component not wired")
		}
		c, err := a.HTTPClients.Client(a.clientName)
		if err != nil {
			return fmt.Errorf("aktools: %w", err)
		}
		a.client = c
	}
	if a.cache == nil && a.Redis != nil && a.cacheTTL > 0 {
		a.cache = NewRedisCache(a.Redis.Client(), a.Redis.Namespace("aktools"))
		logging.Infof(ctx, "[aktools] response cache enabled ttl=%s", a.cacheTTL)
	}
	for _, b := range a.boards {
		if _, ok := rosterBoards[b]; !ok {
			return fmt.Errorf("aktools: unknown roster board %q", b)
		}
	}
	return nil
}

func (a *AKTools) Stop(ctx context.Context) error { return a.BaseComponent.Stop(ctx) }

// fetch returns the raw body of one akshare function call, consulting the cache first.
// Cache keys carry the calendar day so a stale listing never outlives the day it was read.
func (a *AKTools) fetch(ctx context.Context, fn string, query map[string]string) ([]record, error) {
	key := a.cacheKey(fn, query)
	if a.cache != nil {
		if body, ok, err := a.cache.Get(ctx, key); err != nil {
			logging.Warn(ctx, "aktools cache get failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			if recs, err := decodeRecords(body); err == nil {
				return recs, nil
			}
		}
	}

	body, err := a.client.Fetch(ctx, http.MethodGet, publicAPI+fn, query, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransientSource, fn, err)
	}
	recs, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransientSource, fn, err)
	}
	if a.cache != nil {
		if err := a.cache.Set(ctx, key, body, a.cacheTTL); err != nil {
			logging.Warn(ctx, "aktools cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return recs, nil
}

func (a *AKTools) cacheKey(fn string, query map[string]string) string {
	parts := make([]string, 0, len(query))
	for k, v := range query {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return a.now().Format("20060102") + ":" + fn + ":" + strings.Join(parts, "&")
}

// FetchRoster reads every configured board concurrently and concatenates them in board order.
func (a *AKTools) FetchRoster(ctx context.Context) ([]model.RosterRow, error) {
	for _, key := range a.boards {
		if _, ok := rosterBoards[key]; !ok {
			return nil, fmt.Errorf("%w: roster board %q", ErrUnsupported, key)
		}
	}
	results := make([][]model.RosterRow, len(a.boards))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range a.boards {
		b := rosterBoards[key]
		g.Go(func() error {
			recs, err := a.fetch(gctx, b.fn, b.query)
			if err != nil {
				return err
			}
			rows := make([]model.RosterRow, 0, len(recs))
			for _, r := range recs {
				rows = append(rows, model.RosterRow{
					Code:     r.str(b.code),
					Name:     r.str(b.name),
					ListDate: r.str(b.date),
					Board:    b.label,
				})
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []model.RosterRow
	for _, rows := range results {
		out = append(out, rows...)
	}
	return out, nil
}

// FetchFundamentals merges three eastmoney tables: the spot table (market values, PE, PB),
// the latest published quarterly report (profit, revenue, ROE, gross margin, industry) and the
// industry board list (board code by industry name). Net margin is profit over revenue.
func (a *AKTools) FetchFundamentals(ctx context.Context, codes []string) ([]model.FundamentalsRow, error) {
	spot, err := a.fetch(ctx, "stock_zh_a_spot_em", nil)
	if err != nil {
		return nil, err
	}
	reports, err := a.fetchLatestReport(ctx)
	if err != nil {
		return nil, err
	}
	boards, err := a.fetch(ctx, "stock_board_industry_name_em", nil)
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	byCode := make(map[string]record, len(reports))
	for _, r := range reports {
		byCode[r.str("股票代码")] = r
	}
	sectorByName := make(map[string]string, len(boards))
	for _, r := range boards {
		sectorByName[r.str("板块名称")] = r.str("板块代码")
	}

	out := make([]model.FundamentalsRow, 0, len(spot))
	for _, r := range spot {
		code := r.str("代码", "股票代码")
		if len(want) > 0 {
			if _, ok := want[code]; !ok {
				continue
			}
		}
		row := model.FundamentalsRow{
			Code:             code,
			TotalMarketValue: r.num("总市值"),
			FlowMarketValue:  r.num("流通市值"),
			PE:               r.num("市盈率-动态", "市盈率(动)"),
			PB:               r.num("市净率"),
		}
		if rep, ok := byCode[code]; ok {
			row.Profit = rep.num("净利润-净利润")
			row.ROE = rep.num("净资产收益率")
			row.GrossProfitRatio = rep.num("销售毛利率")
			row.NetProfitRatio = margin(row.Profit, rep.num("营业总收入-营业总收入"))
			row.Industry = rep.str("所处行业")
			row.SectorID = sectorByName[row.Industry]
		}
		out = append(out, row)
	}
	return out, nil
}

// fetchLatestReport reads stock_yjbb_em for the most recent quarter end. Early in a reporting
// season that quarter is still empty, so the one before it is tried next.
func (a *AKTools) fetchLatestReport(ctx context.Context) ([]record, error) {
	var recs []record
	for _, period := range reportPeriods(a.now(), 2) {
		var err error
		recs, err = a.fetch(ctx, "stock_yjbb_em", map[string]string{"date": period})
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			return recs, nil
		}
	}
	return recs, nil
}

// reportPeriods lists the n most recent quarter ends strictly before now, newest first, as YYYYMMDD.
func reportPeriods(now time.Time, n int) []string {
	y, m, _ := now.Date()
	q := (int(m) - 1) / 3 // quarters already closed this year
	out := make([]string, 0, n)
	for len(out) < n {
		if q == 0 {
			y--
			q = 4
		}
		end := time.Date(y, time.Month(q*3)+1, 0, 0, 0, 0, 0, time.UTC)
		out = append(out, end.Format("20060102"))
		q--
	}
	return out
}

// margin returns profit/revenue in percent, rounded to 4 places.
func margin(profit, revenue decimal.NullDecimal) decimal.NullDecimal {
	if !profit.Valid || !revenue.Valid || revenue.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(profit.Decimal.Div(revenue.Decimal).Mul(decimal.NewFromInt(100)).Round(4))
}

func (a *AKTools) FetchHierarchy(ctx context.Context, src, level string) ([]model.HierarchyRow, error) {
	src, level = strings.ToLower(src), strings.ToLower(level)
	if src != model.SourceSW {
		return nil, fmt.Errorf("%w: industry source %q", ErrUnsupported, src)
	}
	fn, ok := hierarchyFuncs[level]
	if !ok {
		return nil, fmt.Errorf("%w: industry level %q", ErrUnsupported, level)
	}
	recs, err := a.fetch(ctx, fn, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.HierarchyRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.HierarchyRow{
			IndexCode:     r.str("行业代码"),
			IndustryName:  r.str("行业名称"),
			Count:         r.integer("成份个数"),
			PE:            r.num("静态市盈率"),
			PETTM:         r.num("TTM(滚动)市盈率"),
			PB:            r.num("市净率"),
			DividendYield: r.num("静态股息率"),
			Src:           src,
			Level:         level,
		})
	}
	return out, nil
}

func (a *AKTools) FetchMembership(ctx context.Context, indexCode string) ([]model.MembershipRow, error) {
	recs, err := a.fetch(ctx, "sw_index_third_cons", map[string]string{"symbol": indexCode})
	if err != nil {
		return nil, err
	}
	out := make([]model.MembershipRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.MembershipRow{
			Code:            r.str("股票代码"),
			Name:            r.str("股票简称"),
			InDate:          r.str("纳入时间"),
			OutDate:         r.str("剔除时间"),
			SW1:             r.str("申万1级"),
			SW2:             r.str("申万2级"),
			SW3:             r.str("申万3级"),
			Price:           r.num("价格"),
			PE:              r.num("市盈率"),
			PETTM:           r.num("市盈率ttm"),
			PB:              r.num("市净率"),
			DividendRate:    r.num("股息率"),
			MarketValue:     r.num("市值"),
			ProfitGrowthQ3:  r.num("归母净利润同比增长(09-30)"),
			ProfitGrowthH1:  r.num("归母净利润同比增长(06-30)"),
			RevenueGrowthQ3: r.num("营业收入同比增长(09-30)"),
			RevenueGrowthH1: r.num("营业收入同比增长(06-30)"),
		})
	}
	return out, nil
}
