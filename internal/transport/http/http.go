package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/cellgate/cellgate/internal/gateway"
	"github.com/cellgate/cellgate/internal/obs"
	"github.com/cellgate/cellgate/pkg/cellgate"
)

var tracer = obs.Tracer("github.com/cellgate/cellgate/internal/transport/http")

// throttleRequest is the wire shape of POST /throttle, per spec §6.1.
// Validation tags cover wire-shaped validity only (types, presence,
// non-negativity); policy-shaped validity (zero count/period, overflow)
// is the kernel's job and is never duplicated here.
type throttleRequest struct {
	Key            string `json:"key" validate:"required"`
	MaxBurst       int64  `json:"max_burst" validate:"gte=0"`
	CountPerPeriod int64  `json:"count_per_period" validate:"gte=0"`
	Period         int64  `json:"period" validate:"gte=0"`
	Quantity       *int64 `json:"quantity,omitempty" validate:"omitempty,gte=0"`
}

type throttleResponse struct {
	Allowed    bool  `json:"allowed"`
	Limit      int64 `json:"limit"`
	Remaining  int64 `json:"remaining"`
	RetryAfter int64 `json:"retry_after"`
	ResetAfter int64 `json:"reset_after"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Server is the HTTP/JSON transport: it decodes POST /throttle, submits
// to the Actor via a cellgate.Handle, and encodes the outcome. It holds
// no GCRA state of its own, per spec §4.4.
type Server struct {
	handle   *cellgate.Handle
	logger   zerolog.Logger
	validate *validator.Validate

	requestTimeout time.Duration
	maxBodyBytes   int64

	httpServer *http.Server
}

// Config configures a new HTTP Server.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	IdleTimeout    time.Duration
	MaxBodyBytes   int64
	MetricsHandler http.Handler // served at /metrics if non-nil
}

// NewServer constructs an HTTP Server bound to cfg.Addr, routing
// POST /throttle through handle, GET /health as a liveness probe, and
// GET /metrics through cfg.MetricsHandler if supplied.
func NewServer(handle *cellgate.Handle, logger zerolog.Logger, cfg Config) *Server {
	s := &Server{
		handle:         handle,
		logger:         logger,
		validate:       validator.New(),
		requestTimeout: cfg.RequestTimeout,
		maxBodyBytes:   cfg.MaxBodyBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/throttle", s.handleThrottle)
	if cfg.MetricsHandler != nil {
		mux.Handle("/metrics", cfg.MetricsHandler)
	}

	handler := gateway.Chain(mux,
		obs.Logger(logger),
		gateway.BodyLimit(int(s.maxBodyBytes)),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// ListenAndServe blocks serving HTTP until the listener fails or is
// closed by Shutdown.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleThrottle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	_, decodeSpan := tracer.Start(r.Context(), "http.decode")
	var req throttleRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		decodeSpan.End()
		writeError(w, http.StatusBadRequest, "malformed_json", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		decodeSpan.End()
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	decodeSpan.End()

	quantity := int64(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	outcome, err := s.handle.Throttle(ctx, cellgate.Request{
		Key: req.Key,
		Policy: cellgate.Policy{
			MaxBurst:       req.MaxBurst,
			CountPerPeriod: req.CountPerPeriod,
			PeriodSeconds:  req.Period,
		},
		Quantity:  quantity,
		Transport: "http",
	})
	if err != nil {
		writeDecisionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, throttleResponse{
		Allowed:    outcome.Allowed,
		Limit:      outcome.Limit,
		Remaining:  outcome.Remaining,
		RetryAfter: outcome.RetryAfterS,
		ResetAfter: outcome.ResetAfterS,
	})
}

func writeDecisionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cellgate.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	case errors.Is(err, cellgate.ErrOverflow):
		writeError(w, http.StatusBadRequest, "overflow", err.Error())
	case errors.Is(err, cellgate.ErrBackpressure):
		writeError(w, http.StatusServiceUnavailable, "backpressure", err.Error())
	case errors.Is(err, cellgate.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var resp errorResponse
	resp.Error.Code = code
	resp.Error.Message = msg
	writeJSON(w, status, resp)
}
