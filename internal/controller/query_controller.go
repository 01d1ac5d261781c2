package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/codefmt"
	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

// Store is the read side of the snapshot store service.
type Store interface {
	ListBasic(ctx context.Context, f *model.StockBasicFilters, limit, offset int) ([]*model.StockBasic, int64, error)
	MembershipAsOf(ctx context.Context, code, level, src string, asOf time.Time) ([]*model.IndustryMember, error)
	Calendar() *model.Calendar
}

type QueryController struct {
	*core.BaseComponent
	Store Store `infra:"dep:snapshot_store_service"`
}

func NewQueryController() *QueryController {
	return &QueryController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_QUERY)}
}

func (c *QueryController) Start(ctx context.Context) error { return c.BaseComponent.Start(ctx) }
func (c *QueryController) Stop(ctx context.Context) error  { return c.BaseComponent.Stop(ctx) }

// GET /api/v1/stock/basic?code=&status=&exchange=&limit=&offset=
func (c *QueryController) ListBasic(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)
	codes := parseList(r, "code")
	for i, code := range codes {
		bare, err := codefmt.Normalize(code, codefmt.Plain)
		if err != nil {
			writeErr(w, err)
			return
		}
		codes[i] = bare
	}
	q := r.URL.Query()
	f := &model.StockBasicFilters{Codes: codes, Status: q.Get("status"), Exchange: q.Get("exchange")}
	list, total, err := c.Store.ListBasic(r.Context(), f, limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: map[string]any{"items": list, "total": total}})
}

// GET /api/v1/industry/members?code=&level=&src=&as_of=YYYY-MM-DD
func (c *QueryController) Members(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "code is required"})
		return
	}
	var asOf time.Time
	if s := q.Get("as_of"); s != "" {
		d, err := c.Store.Calendar().ParseDate(s)
		if err != nil {
			writeErr(w, err)
			return
		}
		asOf = d
	}
	list, err := c.Store.MembershipAsOf(r.Context(), code, q.Get("level"), q.Get("src"), asOf)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: list})
}

// GET /api/v1/codefmt?code=600000&code=000001.SZ&style=jq
func (c *QueryController) FormatCodes(w http.ResponseWriter, r *http.Request) {
	codes := parseList(r, "code")
	if len(codes) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "code is required"})
		return
	}
	out, err := codefmt.NormalizeMany(codes, r.URL.Query().Get("style"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: out})
}
