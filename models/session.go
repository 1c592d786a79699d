package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/dyike/StockAnalyzer/consts"
)

// JobStatus is the lifecycle state of one analysis session.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// AnalysisParams is the caller supplied parameter object. Only "ticker" is
// interpreted; everything else is passed through to the agents verbatim.
type AnalysisParams map[string]any

// Ticker renders the ticker value the way it appears in session ids and
// task prompts.
func (p AnalysisParams) Ticker() string {
	v, ok := p["ticker"]
	if !ok || v == nil {
		return consts.MissingTicker
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (p AnalysisParams) Clone() AnalysisParams {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// JSON returns the compact JSON form, falling back to %v for values that
// cannot be marshalled.
func (p AnalysisParams) JSON() string {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(p))
	}
	return string(data)
}

// JobRecord is what GET /results/{session_id} returns.
type JobRecord struct {
	Params   AnalysisParams `json:"params"`
	Status   JobStatus      `json:"status"`
	Messages []string       `json:"messages,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	return &JobRecord{
		Params:   r.Params.Clone(),
		Status:   r.Status,
		Messages: slices.Clone(r.Messages),
		Error:    r.Error,
	}
}

// JobUpdate is a partial record. Status is always applied, Messages only
// when non-nil and Error only when non-empty.
type JobUpdate struct {
	Status   JobStatus
	Messages []string
	Error    string
}

func (r *JobRecord) Apply(u JobUpdate) {
	r.Status = u.Status
	if u.Messages != nil {
		r.Messages = slices.Clone(u.Messages)
	}
	if u.Error != "" {
		r.Error = u.Error
	}
}
