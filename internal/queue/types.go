// Package queue exposes the merge engine as a JSON-RPC 2.0 service so other
// pipeline tooling can submit modules and poll for outcomes over HTTP.
package queue

import "time"

// JobState tracks a merge job through the service.
type JobState string

const (
	JobSubmitted  JobState = "submitted"
	JobWorking    JobState = "working"
	JobMerged     JobState = "merged"
	JobConflicted JobState = "conflict"
	JobParseError JobState = "parse_error"
)

// JobInput carries one phase contribution inside a submit request.
type JobInput struct {
	Phase string `json:"phase"`
	Text  string `json:"text"`
}

// JobConflict is the wire form of one irreconcilable declaration.
type JobConflict struct {
	Name   string   `json:"name"`
	Phases []string `json:"phases"`
	Reason string   `json:"reason"`
}

// JobResult is the wire form of one engine outcome.
type JobResult struct {
	Kind       string        `json:"kind"`
	Text       string        `json:"text,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	Conflicts  []JobConflict `json:"conflicts,omitempty"`
	ParseError string        `json:"parseError,omitempty"`
}

// MergeJob is one submitted merge tracked by the store.
type MergeJob struct {
	ID        string     `json:"id"`
	Target    string     `json:"target"`
	State     JobState   `json:"state"`
	Inputs    []JobInput `json:"inputs,omitempty"`
	Result    *JobResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// SubmitJobRequest carries the params for merge/submit. Target names the
// module being merged; exactly one input must carry the "target" phase.
type SubmitJobRequest struct {
	Target string     `json:"target"`
	Inputs []JobInput `json:"inputs"`
}

// GetJobRequest carries the params for merge/get.
type GetJobRequest struct {
	ID string `json:"id"`
}

// ListJobsRequest carries the params for merge/list.
type ListJobsRequest struct {
	State     string `json:"state,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
	PageSize  int    `json:"pageSize,omitempty"`
}

// ListJobsResponse is the result of merge/list.
type ListJobsResponse struct {
	Jobs          []MergeJob `json:"jobs"`
	TotalSize     int        `json:"totalSize"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
}
