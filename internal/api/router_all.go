package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	bizConsts "github.com/grand-thief-cash/chaos/app/projects/norns/internal/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/controller"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/consts"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/core"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/httpserver"
)

// Unified route registration for norns.
func init() {
	httpserver.RegisterRoutes(func(r chi.Router, c *core.Container) error {
		snapshotCtrl, err := core.ResolveAs[*controller.SnapshotController](c, bizConsts.COMP_CTRL_SNAPSHOT)
		if err != nil {
			return err
		}
		queryCtrl, err := core.ResolveAs[*controller.QueryController](c, bizConsts.COMP_CTRL_QUERY)
		if err != nil {
			return err
		}
		server, err := core.ResolveAs[*httpserver.HTTPServerComponent](c, consts.COMPONENT_HTTP_SERVER)
		if err != nil {
			return err
		}

		// builds may outlive any request timeout, so only the read side is bounded
		r.Route("/api/v1/snapshot", func(r chi.Router) {
			r.Post("/basic_info", snapshotCtrl.BuildBasicInfo)
			r.Post("/industry", snapshotCtrl.BuildIndustry)
			r.Get("/{kind}/last", func(w http.ResponseWriter, req *http.Request) {
				snapshotCtrl.Last(w, req, chi.URLParam(req, "kind"))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(server.RequestTimeout()))
			r.Get("/api/v1/stock/basic", queryCtrl.ListBasic)
			r.Get("/api/v1/industry/members", queryCtrl.Members)
			r.Get("/api/v1/codefmt", queryCtrl.FormatCodes)
		})
		return nil
	})
}
