package source

import (
	"context"
	"errors"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/model"
)

// ErrTransientSource wraps any failed read from a market-data provider. Builders retry it
// under their retry policy and abort the run when it persists.
var ErrTransientSource = errors.New("transient source failure")

// ErrUnsupported is returned for a level or source the provider cannot serve.
var ErrUnsupported = errors.New("unsupported by source")

type RosterSource interface {
	FetchRoster(ctx context.Context) ([]model.RosterRow, error)
}

type FundamentalsSource interface {
	// FetchFundamentals returns rows for codes; empty codes means every listed security.
	FetchFundamentals(ctx context.Context, codes []string) ([]model.FundamentalsRow, error)
}

type ClassificationSource interface {
	FetchHierarchy(ctx context.Context, src, level string) ([]model.HierarchyRow, error)
	FetchMembership(ctx context.Context, indexCode string) ([]model.MembershipRow, error)
}
