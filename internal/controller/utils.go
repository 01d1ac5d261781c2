package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/codefmt"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/dao"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/service"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/source"
)

type apiError struct {
	Error string `json:"error"`
}

type apiResponse[T any] struct {
	Data T `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), apiError{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, codefmt.ErrMalformedIdentifier),
		errors.Is(err, model.ErrInvalidPeriod),
		errors.Is(err, model.ErrInvalidRecord),
		errors.Is(err, source.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrTransientSource):
		return http.StatusBadGateway
	case errors.Is(err, dao.ErrDuplicateKey),
		errors.Is(err, service.ErrBuildInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseLimitOffset(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			limit = v
		}
	}
	if s := q.Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			offset = v
		}
	}
	return
}

// parseList accepts repeated params and comma separated values.
func parseList(r *http.Request, key string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range r.URL.Query()[key] {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
