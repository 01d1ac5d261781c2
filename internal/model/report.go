package model

import "time"

type UpsertReport struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

type InsertReport struct {
	Inserted int `json:"inserted"`
	Existing int `json:"existing"`
}

// BuildReport summarizes one builder run.
type BuildReport struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Fetched  int `json:"fetched"`
	Skipped  int `json:"skipped"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Existing int `json:"existing"`

	Error string `json:"error,omitempty"`

	// SkippedSamples keeps the first few rejected rows for operators.
	SkippedSamples []string `json:"skipped_samples,omitempty"`
}

const maxSkippedSamples = 20

func (r *BuildReport) Skip(reason string) {
	r.Skipped++
	if len(r.SkippedSamples) < maxSkippedSamples {
		r.SkippedSamples = append(r.SkippedSamples, reason)
	}
}

func (r *BuildReport) AddUpsert(u *UpsertReport) {
	if u == nil {
		return
	}
	r.Inserted += u.Inserted
	r.Updated += u.Updated
}

func (r *BuildReport) AddInsert(i *InsertReport) {
	if i == nil {
		return
	}
	r.Inserted += i.Inserted
	r.Existing += i.Existing
}
