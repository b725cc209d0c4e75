package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ppdx999/tiny64/internal/filter"
	"github.com/ppdx999/tiny64/internal/runtime"
	logpkg "github.com/ppdx999/tiny64/pkg/log"
	"github.com/ppdx999/tiny64/pkg/tiny64"
)

// maxBatchCount caps how many IDs one request may ask for.
const maxBatchCount = 1000

// Server exposes ID generation and decoding over HTTP.
type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New builds the server and its routes.
func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	mux := http.NewServeMux()
	s := &Server{rt: rt, logger: logger, srv: &http.Server{Handler: cors(mux)}}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/ids/new", s.handleNew)
	mux.HandleFunc("/v1/ids/decode", s.handleDecode)
	return s
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleNew issues count fresh IDs (default 1).
func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	count := 1
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		count = n
	}
	if count > maxBatchCount {
		writeError(w, http.StatusBadRequest, "count exceeds limit of "+strconv.Itoa(maxBatchCount))
		return
	}

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id, err := s.rt.NewID(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, tiny64.ErrClockUnavailable) {
				status = http.StatusServiceUnavailable
			}
			s.logger.Error("generation failed", logpkg.Err(err))
			writeError(w, status, err.Error())
			return
		}
		ids = append(ids, id.String())
	}
	writeJSON(w, map[string]any{"ids": ids})
}

type decodedID struct {
	ID string `json:"id"`
	tiny64.Fields
	Time string `json:"time"`
}

// handleDecode unpacks one or more ?id= values, optionally filtered by a
// CEL expression over the decoded fields.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	encoded := r.URL.Query()["id"]
	if len(encoded) == 0 {
		writeError(w, http.StatusBadRequest, "at least one id parameter required")
		return
	}
	f, err := filter.New(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter: "+err.Error())
		return
	}

	out := make([]decodedID, 0, len(encoded))
	for _, e := range encoded {
		id, err := tiny64.Parse(e)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !f.Match(id) {
			continue
		}
		out = append(out, decodedID{
			ID:     e,
			Fields: id.Fields(),
			Time:   id.Time().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, map[string]any{"ids": out})
}
