package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

// Builder is the part of the builder service the trigger endpoints use.
type Builder interface {
	BuildBasicInfo(ctx context.Context) (*model.BuildReport, error)
	BuildIndustryClassification(ctx context.Context, levels, sources []string) (*model.BuildReport, error)
	Launch(ctx context.Context, kind string, levels, sources []string) error
	LastReport(kind string) (*model.BuildReport, bool)
}

type SnapshotController struct {
	*core.BaseComponent
	Builder Builder `infra:"dep:snapshot_builder_service"`
}

func NewSnapshotController() *SnapshotController {
	return &SnapshotController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_SNAPSHOT)}
}

func (c *SnapshotController) Start(ctx context.Context) error { return c.BaseComponent.Start(ctx) }
func (c *SnapshotController) Stop(ctx context.Context) error  { return c.BaseComponent.Stop(ctx) }

type industryRequest struct {
	Levels  []string `json:"levels"`
	Sources []string `json:"sources"`
}

// POST /api/v1/snapshot/basic_info[?wait=true]
func (c *SnapshotController) BuildBasicInfo(w http.ResponseWriter, r *http.Request) {
	c.trigger(w, r, bizConsts.BUILD_BASIC_INFO, nil, nil, func(ctx context.Context) (*model.BuildReport, error) {
		return c.Builder.BuildBasicInfo(ctx)
	})
}

// POST /api/v1/snapshot/industry[?wait=true] body {"levels":["L1"],"sources":["SW"]}
func (c *SnapshotController) BuildIndustry(w http.ResponseWriter, r *http.Request) {
	var req industryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json"})
		return
	}
	c.trigger(w, r, bizConsts.BUILD_INDUSTRY, req.Levels, req.Sources, func(ctx context.Context) (*model.BuildReport, error) {
		return c.Builder.BuildIndustryClassification(ctx, req.Levels, req.Sources)
	})
}

// GET /api/v1/snapshot/{kind}/last
func (c *SnapshotController) Last(w http.ResponseWriter, r *http.Request, kind string) {
	rep, ok := c.Builder.LastReport(kind)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "no finished build of kind " + kind})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: rep})
}

// trigger runs the build inline when wait=true. Otherwise the builder takes its lock before
// the handler answers and the build continues detached from the request.
func (c *SnapshotController) trigger(w http.ResponseWriter, r *http.Request, kind string, levels, sources []string,
	inline func(ctx context.Context) (*model.BuildReport, error)) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if wait {
		rep, err := inline(r.Context())
		if err != nil {
			writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "report": rep})
			return
		}
		writeJSON(w, http.StatusOK, apiResponse[any]{Data: rep})
		return
	}

	if err := c.Builder.Launch(context.WithoutCancel(r.Context()), kind, levels, sources); err != nil {
		logging.Warn(r.Context(), "snapshot trigger rejected", zap.String("kind", kind), zap.Error(err))
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, apiResponse[any]{Data: map[string]any{"kind": kind, "status": "started"}})
}
