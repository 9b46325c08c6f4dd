package queue

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pymerge/internal/merge"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	engine := merge.NewEngine()
	t.Cleanup(func() { engine.Close() })

	srv := NewServer(engine)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func call(t *testing.T, ts *httptest.Server, method string, params any) JSONRPCResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	body, err := json.Marshal(JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      1,
		Method:  method,
		Params:  raw,
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	return rpcResp
}

func TestServer_SubmitMergesInputs(t *testing.T) {
	_, ts := newTestServer(t)

	resp := call(t, ts, MethodSubmitJob, SubmitJobRequest{
		Target: "pkg/mod.py",
		Inputs: []JobInput{
			{Phase: "target", Text: "A = 1\n"},
			{Phase: "draft", Text: "A = 1\n\nB = 2\n"},
		},
	})
	require.Nil(t, resp.Error)

	var job MergeJob
	require.NoError(t, json.Unmarshal(resp.Result, &job))
	assert.Equal(t, JobMerged, job.State)
	require.NotNil(t, job.Result)
	assert.Contains(t, job.Result.Text, "B = 2")
	assert.NotEmpty(t, job.ID)
}

func TestServer_SubmitReportsConflict(t *testing.T) {
	_, ts := newTestServer(t)

	resp := call(t, ts, MethodSubmitJob, SubmitJobRequest{
		Target: "pkg/mod.py",
		Inputs: []JobInput{
			{Phase: "target", Text: "def f():\n    return 1\n"},
			{Phase: "review", Text: "def f():\n    return 2\n"},
		},
	})
	require.Nil(t, resp.Error)

	var job MergeJob
	require.NoError(t, json.Unmarshal(resp.Result, &job))
	assert.Equal(t, JobConflicted, job.State)
	require.NotNil(t, job.Result)
	assert.Empty(t, job.Result.Text)
	require.Len(t, job.Result.Conflicts, 1)
	assert.Equal(t, "f", job.Result.Conflicts[0].Name)
	assert.Equal(t, []string{"review", "target"}, job.Result.Conflicts[0].Phases)
}

func TestStateForKind(t *testing.T) {
	assert.Equal(t, JobMerged, stateForKind(merge.ResultMerged))
	assert.Equal(t, JobConflicted, stateForKind(merge.ResultConflict))
	assert.Equal(t, JobParseError, stateForKind(merge.ResultParseError))

	// The lifecycle state and the wire conflict record share a result kind
	// but stay distinct names.
	wire := resultToWire(merge.MergeResult{
		Kind:      merge.ResultConflict,
		Conflicts: []merge.ConflictRecord{{Name: "f", Phases: []merge.Phase{merge.PhaseDraft}, Reason: "changed body"}},
	})
	require.Len(t, wire.Conflicts, 1)
	assert.Equal(t, JobConflict{Name: "f", Phases: []string{"draft"}, Reason: "changed body"}, wire.Conflicts[0])
}

func TestServer_GetAndList(t *testing.T) {
	_, ts := newTestServer(t)

	submit := call(t, ts, MethodSubmitJob, SubmitJobRequest{
		Target: "pkg/mod.py",
		Inputs: []JobInput{{Phase: "target", Text: "A = 1\n"}, {Phase: "spec", Text: "A = 1\n"}},
	})
	require.Nil(t, submit.Error)
	var created MergeJob
	require.NoError(t, json.Unmarshal(submit.Result, &created))

	got := call(t, ts, MethodGetJob, GetJobRequest{ID: created.ID})
	require.Nil(t, got.Error)
	var fetched MergeJob
	require.NoError(t, json.Unmarshal(got.Result, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	missing := call(t, ts, MethodGetJob, GetJobRequest{ID: "nope"})
	require.NotNil(t, missing.Error)
	assert.Equal(t, ErrCodeJobNotFound, missing.Error.Code)

	list := call(t, ts, MethodListJobs, ListJobsRequest{State: string(JobMerged)})
	require.Nil(t, list.Error)
	var page ListJobsResponse
	require.NoError(t, json.Unmarshal(list.Result, &page))
	assert.Equal(t, 1, page.TotalSize)
}

func TestServer_ProtocolErrors(t *testing.T) {
	_, ts := newTestServer(t)

	t.Run("unknown method", func(t *testing.T) {
		resp := call(t, ts, "merge/unknown", struct{}{})
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(ts.URL, "application/json", bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		defer resp.Body.Close()
		var rpcResp JSONRPCResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
		require.NotNil(t, rpcResp.Error)
		assert.Equal(t, ErrCodeParse, rpcResp.Error.Code)
	})

	t.Run("empty inputs", func(t *testing.T) {
		resp := call(t, ts, MethodSubmitJob, SubmitJobRequest{Target: "mod.py"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
	})
}
