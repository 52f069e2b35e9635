package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure RequestStore implements the interface.
var _ driven.RequestStore = (*RequestStore)(nil)

// RequestStore is an in-memory implementation of driven.RequestStore.
type RequestStore struct {
	mu       sync.RWMutex
	requests map[string]domain.EstimationRequest
	results  map[string]domain.EstimationResult
}

// NewRequestStore creates a new in-memory request store.
func NewRequestStore() *RequestStore {
	return &RequestStore{
		requests: make(map[string]domain.EstimationRequest),
		results:  make(map[string]domain.EstimationResult),
	}
}

// SaveRequest stores or updates a request.
func (s *RequestStore) SaveRequest(_ context.Context, req *domain.EstimationRequest) error {
	if req == nil || req.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = copyRequest(req)
	return nil
}

// GetRequest retrieves a request by ID.
func (s *RequestStore) GetRequest(_ context.Context, id string) (*domain.EstimationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyRequest(&req)
	return &out, nil
}

// ListRequests returns summaries of all requests, newest first.
func (s *RequestStore) ListRequests(_ context.Context) ([]domain.RequestSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.RequestSummary, 0, len(s.requests))
	for id := range s.requests {
		req := s.requests[id]
		result = append(result, req.Summary())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// ListByStatus returns the requests with the given status, oldest first.
func (s *RequestStore) ListByStatus(_ context.Context, status domain.RequestStatus) ([]domain.EstimationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.EstimationRequest
	for id := range s.requests {
		req := s.requests[id]
		if req.Status == status {
			result = append(result, copyRequest(&req))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateStatus sets the status and error message of a request.
func (s *RequestStore) UpdateStatus(_ context.Context, id string, status domain.RequestStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.ErrNotFound
	}
	req.Status = status
	req.Error = errMsg
	req.UpdatedAt = time.Now()
	s.requests[id] = req
	return nil
}

// Touch refreshes UpdatedAt of a running request.
func (s *RequestStore) Touch(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if req.Status != domain.RequestRunning {
		return false, nil
	}
	req.UpdatedAt = time.Now()
	s.requests[id] = req
	return true, nil
}

// SaveResult stores the result of a request.
func (s *RequestStore) SaveResult(_ context.Context, result *domain.EstimationResult) error {
	if result == nil || result.RequestID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *result
	out.Properties = append([]domain.ComputedProperty(nil), result.Properties...)
	out.Exceptions = append([]string(nil), result.Exceptions...)
	s.results[result.RequestID] = out
	return nil
}

// GetResult retrieves the result of a request.
func (s *RequestStore) GetResult(_ context.Context, requestID string) (*domain.EstimationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[requestID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	result.Properties = append([]domain.ComputedProperty(nil), result.Properties...)
	return &result, nil
}

// DeleteRequest removes a request and its result.
func (s *RequestStore) DeleteRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, id)
	delete(s.results, id)
	return nil
}

func copyRequest(req *domain.EstimationRequest) domain.EstimationRequest {
	out := *req
	out.Properties = append([]domain.PhysicalProperty(nil), req.Properties...)
	out.ParameterSets = append([]domain.ParameterSet(nil), req.ParameterSets...)
	out.Tasks = append([]domain.EstimationTask(nil), req.Tasks...)
	out.Options.Layers = append([]string(nil), req.Options.Layers...)
	return out
}
