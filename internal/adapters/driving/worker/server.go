// Package worker serves the local calculation backend over HTTP so that
// remote propest clients can dispatch jobs to this machine.
package worker

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/propest/internal/adapters/driven/backend/remote"
	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
	"github.com/custodia-labs/propest/internal/logger"
)

// MaxRequestSize bounds the body of a job submission.
const MaxRequestSize = 256 << 20

// Config configures a worker server.
type Config struct {
	// Token, when set, must be presented as a bearer token.
	Token string

	// RequestsPerSecond limits job submissions. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the number of submissions allowed at once when limiting.
	Burst int
}

// Server accepts job batches and streams their outcomes back as NDJSON.
type Server struct {
	mu       sync.Mutex
	runner   driving.JobRunner
	caps     domain.BackendCapabilities
	token    string
	limiter  *rate.Limiter
	server   *http.Server
	listener net.Listener
	errChan  chan error
}

// NewServer creates a worker server running jobs with runner.
// caps is what the server reports to clients.
func NewServer(runner driving.JobRunner, caps domain.BackendCapabilities, cfg Config) *Server {
	s := &Server{
		runner:  runner,
		caps:    caps,
		token:   cfg.Token,
		errChan: make(chan error, 1),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s
}

// Handler returns the worker API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(remote.HealthPath, s.handleHealth)
	mux.HandleFunc(remote.CapabilitiesPath, s.authorised(s.handleCapabilities))
	mux.HandleFunc(remote.JobsPath, s.authorised(s.handleJobs))
	return mux
}

// Start listens on addr and serves in the background.
// Use port 0 to pick a free port; Addr reports the one chosen.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errChan <- err:
			default:
			}
		}
	}()

	logger.Info("worker listening on %s (layers %v)", listener.Addr(), s.caps.Layers)
	return nil
}

// Serve starts the server and blocks until ctx is cancelled or serving fails.
func (s *Server) Serve(ctx context.Context, addr string) error {
	if err := s.Start(addr); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-s.errChan:
		return err
	}
}

// Stop shuts down the server, waiting for in-flight batches.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) authorised(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.caps); err != nil {
		logger.Warn("worker: write capabilities: %v", err)
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.limiter != nil {
		if res := s.limiter.Reserve(); res.Delay() > 0 {
			res.Cancel()
			w.Header().Set(remote.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(res.Delay())))
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
	}

	jobs, err := decodeJobs(http.MaxBytesReader(w, r.Body, MaxRequestSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.Debug("worker: running %d jobs", len(jobs))

	w.Header().Set("Content-Type", remote.NDJSONContentType)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	outcomes, errs := s.runner.Run(r.Context(), jobs)
	written := 0
	for outcome := range outcomes {
		if err := enc.Encode(outcome); err != nil {
			logger.Warn("worker: client went away after %d outcomes: %v", written, err)
			continue
		}
		written++
		if flusher != nil {
			flusher.Flush()
		}
	}
	var runErrs []error
	for err := range errs {
		logger.Warn("worker: batch ended early: %v", err)
		runErrs = append(runErrs, err)
	}
	if err := errors.Join(runErrs...); err != nil {
		if encErr := enc.Encode(remote.StreamError{Error: err.Error()}); encErr != nil {
			logger.Warn("worker: write stream error: %v", encErr)
		} else if flusher != nil {
			flusher.Flush()
		}
	}
	logger.Debug("worker: streamed %d of %d outcomes", written, len(jobs))
}

// decodeJobs reads a batch of jobs, restoring their parameter set content.
func decodeJobs(body io.Reader) ([]domain.Job, error) {
	var wire []domain.WireJob
	if err := json.NewDecoder(body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	jobs := make([]domain.Job, len(wire))
	seen := make(map[string]bool, len(wire))
	for i := range wire {
		job := wire[i].Unwrap()
		if job.ID == "" {
			return nil, fmt.Errorf("job %d has no id", i)
		}
		if seen[job.ID] {
			return nil, fmt.Errorf("job %s submitted twice", job.ID)
		}
		seen[job.ID] = true
		jobs[i] = job
	}
	return jobs, nil
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
