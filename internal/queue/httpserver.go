package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dusk-indust/pymerge/internal/merge"
)

// Server exposes the merge engine over JSON-RPC 2.0.
type Server struct {
	engine *merge.Engine
	store  *JobStore
	http   *http.Server
}

// NewServer creates a Server around the given engine.
func NewServer(engine *merge.Engine) *Server {
	return &Server{
		engine: engine,
		store:  NewJobStore(),
	}
}

// Store exposes the underlying job store.
func (s *Server) Store() *JobStore {
	return s.store
}

// Start creates an HTTP server, registers routes, and begins serving.
// It returns immediately after starting the server in a background goroutine.
func (s *Server) Start(_ context.Context, addr string) error {
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go s.http.ListenAndServe()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the JSON-RPC HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// handleJSONRPC processes incoming JSON-RPC 2.0 requests and dispatches them
// to the appropriate handler method.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}

	ctx := r.Context()

	switch req.Method {
	case MethodSubmitJob:
		s.dispatchSubmit(ctx, w, &req)
	case MethodGetJob:
		s.dispatchGet(w, &req)
	case MethodListJobs:
		s.dispatchList(w, &req)
	default:
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// dispatchSubmit unmarshals params, runs the merge, and returns the final job.
func (s *Server) dispatchSubmit(ctx context.Context, w http.ResponseWriter, req *JSONRPCRequest) {
	var params SubmitJobRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}
	if len(params.Inputs) == 0 {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: no inputs")
		return
	}

	job, err := s.runJob(ctx, params)
	if err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInternal, err.Error())
		return
	}

	writeJSONRPCResult(w, req.ID, job)
}

// runJob records a new job, runs the engine synchronously, and stores the
// outcome. Merges are in-memory transforms, so there is no async phase.
func (s *Server) runJob(ctx context.Context, params SubmitJobRequest) (*MergeJob, error) {
	now := time.Now().UTC()
	job := MergeJob{
		ID:        NewJobID(),
		Target:    params.Target,
		State:     JobWorking,
		Inputs:    params.Inputs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(job); err != nil {
		return nil, err
	}

	target, incoming := splitInputs(params.Inputs)
	res := s.engine.Merge(ctx, target, incoming)

	if err := s.store.Update(job.ID, func(j *MergeJob) {
		j.State = stateForKind(res.Kind)
		j.Result = resultToWire(res)
		j.UpdatedAt = time.Now().UTC()
	}); err != nil {
		return nil, err
	}
	return s.store.Get(job.ID)
}

// dispatchGet unmarshals params and returns the job by ID.
func (s *Server) dispatchGet(w http.ResponseWriter, req *JSONRPCRequest) {
	var params GetJobRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	job, err := s.store.Get(params.ID)
	if err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeJobNotFound, err.Error())
		return
	}

	writeJSONRPCResult(w, req.ID, job)
}

// dispatchList unmarshals params and returns the filtered job page.
func (s *Server) dispatchList(w http.ResponseWriter, req *JSONRPCRequest) {
	var params ListJobsRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
			return
		}
	}

	result, err := s.store.List(params)
	if err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, err.Error())
		return
	}

	writeJSONRPCResult(w, req.ID, result)
}

// splitInputs converts wire inputs into engine inputs. The input tagged
// "target" becomes the target; the engine validates tagging beyond that.
func splitInputs(inputs []JobInput) (merge.Input, []merge.Input) {
	var target merge.Input
	target.Phase = merge.PhaseTarget
	var incoming []merge.Input
	for _, in := range inputs {
		mi := merge.Input{Phase: merge.Phase(in.Phase), Text: []byte(in.Text)}
		if mi.Phase == merge.PhaseTarget {
			target = mi
			continue
		}
		incoming = append(incoming, mi)
	}
	return target, incoming
}

// stateForKind maps an engine result kind onto a job state.
func stateForKind(kind merge.ResultKind) JobState {
	switch kind {
	case merge.ResultMerged:
		return JobMerged
	case merge.ResultConflict:
		return JobConflicted
	default:
		return JobParseError
	}
}

// resultToWire converts an engine result into its wire form.
func resultToWire(res merge.MergeResult) *JobResult {
	jr := &JobResult{
		Kind:     string(res.Kind),
		Text:     res.Text,
		Warnings: res.Warnings,
	}
	for _, c := range res.Conflicts {
		jc := JobConflict{Name: c.Name, Reason: c.Reason}
		for _, p := range c.Phases {
			jc.Phases = append(jc.Phases, string(p))
		}
		jr.Conflicts = append(jr.Conflicts, jc)
	}
	if res.ParseErr != nil {
		jr.ParseError = res.ParseErr.Error()
	}
	return jr
}

// writeJSONRPCResult writes a successful JSON-RPC response.
func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}

	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	}

	json.NewEncoder(w).Encode(resp)
}

// writeJSONRPCError writes a JSON-RPC error response.
func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(resp)
}
