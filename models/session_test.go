package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisParamsTicker(t *testing.T) {
	assert.Equal(t, "AAPL", AnalysisParams{"ticker": "AAPL"}.Ticker())
	assert.Equal(t, "None", AnalysisParams{}.Ticker())
	assert.Equal(t, "None", AnalysisParams{"ticker": nil}.Ticker())
	assert.Equal(t, "700", AnalysisParams{"ticker": float64(700)}.Ticker())
}

func TestJobRecordJSONOmitsMessagesWhileRunning(t *testing.T) {
	rec := &JobRecord{Params: AnalysisParams{"ticker": "AAPL"}, Status: StatusRunning}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"params":{"ticker":"AAPL"},"status":"running"}`, string(data))
}

func TestJobRecordApply(t *testing.T) {
	rec := &JobRecord{Params: AnalysisParams{"ticker": "AAPL"}, Status: StatusRunning}

	rec.Apply(JobUpdate{Status: StatusCompleted, Messages: []string{"a: 1", "b: 2"}})
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, []string{"a: 1", "b: 2"}, rec.Messages)
	assert.Empty(t, rec.Error)

	rec.Apply(JobUpdate{Status: StatusFailed, Error: "boom"})
	assert.Equal(t, []string{"a: 1", "b: 2"}, rec.Messages, "nil messages leave the field untouched")
	assert.Equal(t, "boom", rec.Error)
}

func TestJobRecordCloneIsIndependent(t *testing.T) {
	rec := &JobRecord{Params: AnalysisParams{"ticker": "AAPL"}, Status: StatusCompleted, Messages: []string{"x"}}
	cp := rec.Clone()
	cp.Params["ticker"] = "MSFT"
	cp.Messages[0] = "y"
	assert.Equal(t, "AAPL", rec.Params["ticker"])
	assert.Equal(t, "x", rec.Messages[0])
}

func TestMessageString(t *testing.T) {
	msgs := []Message{{Source: "Code_Generator", Content: "print(1)"}, {Source: "Report_Agent", Content: "done"}}
	assert.Equal(t, []string{"Code_Generator: print(1)", "Report_Agent: done"}, Stringify(msgs))
}
