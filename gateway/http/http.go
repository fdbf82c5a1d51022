// Package http provides the HTTP protocol binding: it decodes inbound
// requests into dispatcher requests, runs them, and encodes the results with
// the protocol's response status code carried in a header. It also hosts the
// websocket lifecycle event feed.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/c360/cse/dispatcher"
	"github.com/c360/cse/errors"
	"github.com/c360/cse/resource"
)

const (
	headerOriginator = "X-M2M-Origin"
	headerRequestID  = "X-M2M-RI"
	headerStatusCode = "X-M2M-RSC"
)

// Server is the HTTP binding.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	feed       *EventFeed
	logger     *slog.Logger
	config     Config

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates the HTTP binding. The feed is optional.
func NewServer(d *dispatcher.Dispatcher, feed *EventFeed, logger *slog.Logger, config Config) (*Server, error) {
	if d == nil {
		return nil, errors.WrapInvalid(nil, "Server", "NewServer", "dispatcher is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		dispatcher: d,
		feed:       feed,
		logger:     logger,
		config:     config,
	}, nil
}

// RegisterHandlers registers the binding's routes on the mux.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	base := strings.TrimSuffix(s.config.BasePath, "/")
	if s.feed != nil && s.config.EnableEventFeed {
		mux.HandleFunc(base+"/events", s.feed.Handle)
	}
	mux.HandleFunc(base+"/", s.handleResource)
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}

	mux := http.NewServeMux()
	s.RegisterHandlers(mux)
	s.server = &http.Server{
		Addr:    s.config.Address,
		Handler: mux,
	}
	s.mu.Unlock()

	s.logger.Info("http binding listening", "address", s.config.Address, "basePath", s.config.BasePath)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("failed to serve on %s", s.config.Address))
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	if err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shutdown failed")
	}
	return nil
}

// handleResource decodes and dispatches one resource request.
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	if s.config.EnableCORS {
		s.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	requestID := r.Header.Get(headerRequestID)
	if requestID != "" {
		w.Header().Set(headerRequestID, requestID)
	}

	target := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(s.config.BasePath, "/"))
	target = strings.Trim(target, "/")
	if target == "" {
		s.writeDebug(w, resource.StatusBadRequest, "empty target address")
		return
	}

	args, err := parseArguments(r.URL.Query())
	if err != nil {
		s.writeDebug(w, resource.StatusBadRequest, err.Error())
		return
	}

	req := &resource.Request{
		ID:         target,
		Originator: r.Header.Get(headerOriginator),
		Args:       args,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	var result resource.Result
	switch r.Method {
	case http.MethodGet:
		result = s.dispatcher.ProcessRetrieveRequest(ctx, req, req.Originator, "")

	case http.MethodPost:
		ty, ok := s.resourceTypeOf(r)
		if !ok {
			s.writeDebug(w, resource.StatusBadRequest, "missing resource type")
			return
		}
		req.Type = ty
		if !s.readContent(w, r, req) {
			return
		}
		result = s.dispatcher.ProcessCreateRequest(ctx, req, req.Originator, "")

	case http.MethodPut:
		if !s.readContent(w, r, req) {
			return
		}
		result = s.dispatcher.ProcessUpdateRequest(ctx, req, req.Originator, "")

	case http.MethodDelete:
		result = s.dispatcher.ProcessDeleteRequest(ctx, req, req.Originator, "")

	default:
		s.writeDebug(w, resource.StatusOperationNotAllowed,
			fmt.Sprintf("method %s not supported", r.Method))
		return
	}

	s.writeResult(w, result)
}

// resourceTypeOf extracts the created resource type from the request: the ty
// parameter of the content type, with a plain ty query parameter as fallback.
func (s *Server) resourceTypeOf(r *http.Request) (resource.Type, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if _, params, err := mime.ParseMediaType(ct); err == nil {
			if tyParam, ok := params["ty"]; ok {
				if n, err := strconv.Atoi(tyParam); err == nil {
					return resource.Type(n), true
				}
			}
		}
	}
	if tyParam := r.URL.Query().Get("ty"); tyParam != "" {
		if n, err := strconv.Atoi(tyParam); err == nil {
			return resource.Type(n), true
		}
	}
	return resource.TypeMixed, false
}

// readContent decodes the request body into req.Content, writing the error
// response itself when decoding fails.
func (s *Server) readContent(w http.ResponseWriter, r *http.Request, req *resource.Request) bool {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize+1))
	if err != nil {
		s.writeDebug(w, resource.StatusBadRequest, "failed to read request body")
		return false
	}
	if int64(len(body)) > s.config.MaxRequestSize {
		s.writeDebug(w, resource.StatusBadRequest,
			fmt.Sprintf("request body exceeds maximum size of %d bytes", s.config.MaxRequestSize))
		return false
	}

	var content map[string]any
	if err := json.Unmarshal(body, &content); err != nil {
		s.writeDebug(w, resource.StatusBadRequest, "malformed request body")
		return false
	}
	req.Content = content
	return true
}

// writeResult encodes a dispatcher result.
func (s *Server) writeResult(w http.ResponseWriter, result resource.Result) {
	var body any
	switch {
	case result.IsError():
		body = map[string]any{"m2m:dbg": result.Debug}
	case result.Resource != nil:
		body = result.Resource.Body()
	case result.Body != nil:
		body = result.Body
	}

	w.Header().Set(headerStatusCode, strconv.Itoa(int(result.Status)))
	if body == nil {
		w.WriteHeader(result.Status.HTTPStatus())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status.HTTPStatus())
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeDebug(w http.ResponseWriter, status resource.StatusCode, debug string) {
	s.writeResult(w, resource.Err(status, debug))
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	allowed := false
	for _, allowedOrigin := range s.config.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-M2M-Origin, X-M2M-RI")
	w.Header().Set("Access-Control-Max-Age", "3600")
}
