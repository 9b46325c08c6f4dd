package queue

import (
	"crypto/rand"
	"fmt"
	"sync"
)

// NewJobID generates a UUID v4 string using crypto/rand.
func NewJobID() string {
	var uuid [16]byte
	_, _ = rand.Read(uuid[:])
	// Set version 4 (bits 12-15 of time_hi_and_version).
	uuid[6] = (uuid[6] & 0x0f) | 0x40
	// Set variant bits (bits 6-7 of clock_seq_hi_and_reserved).
	uuid[8] = (uuid[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:16])
}

// JobStore is a concurrency-safe in-memory store for merge jobs. Jobs are
// stored in a map keyed by ID with a separate slice maintaining insertion
// order for deterministic pagination.
type JobStore struct {
	mu       sync.RWMutex
	jobs     map[string]*MergeJob
	orderIDs []string // insertion-order job IDs
}

// NewJobStore returns an initialized JobStore ready for use.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:     make(map[string]*MergeJob),
		orderIDs: make([]string, 0),
	}
}

// Create stores a new job. It returns an error if a job with the same ID
// already exists.
func (s *JobStore) Create(job MergeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %q already exists", job.ID)
	}
	s.jobs[job.ID] = &job
	s.orderIDs = append(s.orderIDs, job.ID)
	return nil
}

// Get returns a deep copy of the job with the given ID. It returns an error
// if no job with that ID is found. The returned copy is safe to mutate
// without affecting the store.
func (s *JobStore) Get(id string) (*MergeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %q not found", id)
	}
	return deepCopyJob(j), nil
}

// Update applies the mutation function fn to the job identified by id under
// a write lock. The function receives the actual stored job pointer, so all
// mutations are applied in-place. It returns an error if the job is not found.
func (s *JobStore) Update(id string, fn func(*MergeJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %q not found", id)
	}
	fn(j)
	return nil
}

// List returns jobs matching the filter criteria with pagination support.
//
// Filtering:
//   - If State is non-empty, only jobs in that state are included.
//
// Pagination:
//   - PageToken is the ID of the last job from the previous page; results
//     start after that job in insertion order.
//   - PageSize <= 0 means return all matching jobs (no pagination).
func (s *JobStore) List(filter ListJobsRequest) (*ListJobsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Determine where to start based on page token.
	startIdx := 0
	if filter.PageToken != "" {
		found := false
		for i, id := range s.orderIDs {
			if id == filter.PageToken {
				startIdx = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("invalid page token %q", filter.PageToken)
		}
	}

	// Collect all matching jobs (for total count) and the page slice.
	var matched []MergeJob
	for i := startIdx; i < len(s.orderIDs); i++ {
		j := s.jobs[s.orderIDs[i]]
		if !matchesFilter(j, filter) {
			continue
		}
		matched = append(matched, *deepCopyJob(j))
	}

	// Also count matches before startIdx for the total size.
	totalBefore := 0
	for i := 0; i < startIdx; i++ {
		j := s.jobs[s.orderIDs[i]]
		if matchesFilter(j, filter) {
			totalBefore++
		}
	}

	totalSize := totalBefore + len(matched)

	// Apply page size.
	var nextPageToken string
	if filter.PageSize > 0 && len(matched) > filter.PageSize {
		nextPageToken = matched[filter.PageSize-1].ID
		matched = matched[:filter.PageSize]
	}

	if matched == nil {
		matched = []MergeJob{}
	}

	return &ListJobsResponse{
		Jobs:          matched,
		TotalSize:     totalSize,
		NextPageToken: nextPageToken,
	}, nil
}

// matchesFilter returns true if the job passes the state filter specified in
// the request.
func matchesFilter(j *MergeJob, filter ListJobsRequest) bool {
	return filter.State == "" || string(j.State) == filter.State
}

// deepCopyJob returns a new MergeJob that is a deep copy of src. The Inputs
// slice and the Result (with its nested slices) are independently copied.
func deepCopyJob(src *MergeJob) *MergeJob {
	dst := *src

	if src.Inputs != nil {
		dst.Inputs = make([]JobInput, len(src.Inputs))
		copy(dst.Inputs, src.Inputs)
	}

	if src.Result != nil {
		res := *src.Result
		if src.Result.Warnings != nil {
			res.Warnings = make([]string, len(src.Result.Warnings))
			copy(res.Warnings, src.Result.Warnings)
		}
		if src.Result.Conflicts != nil {
			res.Conflicts = make([]JobConflict, len(src.Result.Conflicts))
			for i, c := range src.Result.Conflicts {
				cc := c
				if c.Phases != nil {
					cc.Phases = make([]string, len(c.Phases))
					copy(cc.Phases, c.Phases)
				}
				res.Conflicts[i] = cc
			}
		}
		dst.Result = &res
	}

	return &dst
}
