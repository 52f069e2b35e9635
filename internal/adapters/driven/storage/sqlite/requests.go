package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// requestStore implements driven.RequestStore.
type requestStore struct {
	store *Store
}

var _ driven.RequestStore = (*requestStore)(nil)

// SaveRequest creates or updates a request together with the content of its
// parameter sets.
func (s *requestStore) SaveRequest(ctx context.Context, req *domain.EstimationRequest) error {
	if req == nil || req.ID == "" {
		return domain.ErrInvalidInput
	}
	doc, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ps := range req.ParameterSets {
		if len(ps.Content) == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO parameter_sets (checksum, content) VALUES (?, ?)
			ON CONFLICT(checksum) DO NOTHING
		`, ps.Checksum, ps.Content); err != nil {
			return fmt.Errorf("saving parameter set %s: %w", ps.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO requests (id, status, error, created_at, updated_at, document)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at,
			document = excluded.document
	`, req.ID, string(req.Status), nullString(req.Error),
		req.CreatedAt.UnixNano(), req.UpdatedAt.UnixNano(), string(doc))
	if err != nil {
		return fmt.Errorf("saving request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by ID.
func (s *requestStore) GetRequest(ctx context.Context, id string) (*domain.EstimationRequest, error) {
	var doc string
	err := s.store.db.QueryRowContext(ctx, "SELECT document FROM requests WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying request: %w", err)
	}
	return s.decode(ctx, doc)
}

// ListRequests returns summaries of all requests, newest first.
func (s *requestStore) ListRequests(ctx context.Context) ([]domain.RequestSummary, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT document FROM requests ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("querying requests: %w", err)
	}
	defer rows.Close()

	summaries := []domain.RequestSummary{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		var req domain.EstimationRequest
		if err := json.Unmarshal([]byte(doc), &req); err != nil {
			return nil, fmt.Errorf("unmarshalling request: %w", err)
		}
		summaries = append(summaries, req.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}
	return summaries, nil
}

// ListByStatus returns the requests with the given status, oldest first.
func (s *requestStore) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.EstimationRequest, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT document FROM requests WHERE status = ? ORDER BY created_at ASC, id ASC", string(status))
	if err != nil {
		return nil, fmt.Errorf("querying requests: %w", err)
	}

	var docs []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		docs = append(docs, doc)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}

	// Decoding queries parameter sets, so the rows are closed first.
	requests := make([]domain.EstimationRequest, 0, len(docs))
	for _, doc := range docs {
		req, err := s.decode(ctx, doc)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, nil
}

// UpdateStatus sets the status and error message of a request.
func (s *requestStore) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus, errMsg string) error {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	req.Status = status
	req.Error = errMsg
	req.UpdatedAt = time.Now()
	doc, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		UPDATE requests SET status = ?, error = ?, updated_at = ?, document = ? WHERE id = ?
	`, string(status), nullString(errMsg), req.UpdatedAt.UnixNano(), string(doc), id)
	if err != nil {
		return fmt.Errorf("updating request status: %w", err)
	}
	return nil
}

// Touch refreshes updated_at of a running request. The status check and the
// write happen in one statement so a concurrent status change wins.
func (s *requestStore) Touch(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE requests SET updated_at = ?, document = json_set(document, '$.updated_at', ?)
		WHERE id = ? AND status = ?
	`, now.UnixNano(), now.Format(time.RFC3339Nano), id, string(domain.RequestRunning))
	if err != nil {
		return false, fmt.Errorf("touching request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("touching request: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	var exists int
	err = s.store.db.QueryRowContext(ctx, "SELECT 1 FROM requests WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("querying request: %w", err)
	}
	return false, nil
}

// SaveResult stores the result of a request.
func (s *requestStore) SaveResult(ctx context.Context, result *domain.EstimationResult) error {
	if result == nil || result.RequestID == "" {
		return domain.ErrInvalidInput
	}
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO results (request_id, completed_at, document) VALUES (?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			completed_at = excluded.completed_at,
			document = excluded.document
	`, result.RequestID, result.CompletedAt.UnixNano(), string(doc))
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("saving result: %w: request %s", domain.ErrNotFound, result.RequestID)
		}
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// GetResult retrieves the result of a request.
func (s *requestStore) GetResult(ctx context.Context, requestID string) (*domain.EstimationResult, error) {
	var doc string
	err := s.store.db.QueryRowContext(ctx, "SELECT document FROM results WHERE request_id = ?", requestID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying result: %w", err)
	}
	var result domain.EstimationResult
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("unmarshalling result: %w", err)
	}
	return &result, nil
}

// DeleteRequest removes a request and its result. Parameter set content is
// kept while another request still refers to it.
func (s *requestStore) DeleteRequest(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM results WHERE request_id = ?", id); err != nil {
		return fmt.Errorf("deleting result: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting request: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM parameter_sets WHERE NOT EXISTS (
			SELECT 1 FROM requests, json_each(requests.document, '$.parameter_sets') AS ps
			WHERE json_extract(ps.value, '$.checksum') = parameter_sets.checksum
		)
	`); err != nil {
		return fmt.Errorf("pruning parameter sets: %w", err)
	}
	return tx.Commit()
}

// decode unmarshals a request document and restores parameter set content.
func (s *requestStore) decode(ctx context.Context, doc string) (*domain.EstimationRequest, error) {
	var req domain.EstimationRequest
	if err := json.Unmarshal([]byte(doc), &req); err != nil {
		return nil, fmt.Errorf("unmarshalling request: %w", err)
	}

	contents := make(map[string][]byte, len(req.ParameterSets))
	for i := range req.ParameterSets {
		ps := &req.ParameterSets[i]
		content, err := s.parameterSetContent(ctx, ps.Checksum)
		if err != nil {
			return nil, err
		}
		ps.Content = content
		contents[ps.Checksum] = content
	}
	for i := range req.Tasks {
		req.Tasks[i].ParameterSet.Content = contents[req.Tasks[i].ParameterSet.Checksum]
	}
	return &req, nil
}

func (s *requestStore) parameterSetContent(ctx context.Context, checksum string) ([]byte, error) {
	var content []byte
	err := s.store.db.QueryRowContext(ctx, "SELECT content FROM parameter_sets WHERE checksum = ?", checksum).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying parameter set: %w", err)
	}
	return content, nil
}
