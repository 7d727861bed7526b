package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/pixelating-community/web-sub001/internal/metrics"
	"github.com/pixelating-community/web-sub001/internal/perspectives/notify"
	"github.com/pixelating-community/web-sub001/internal/perspectives/ratelimit"
	"github.com/pixelating-community/web-sub001/internal/perspectives/service"
	"github.com/pixelating-community/web-sub001/internal/perspectives/store"
	"github.com/pixelating-community/web-sub001/internal/perspectives/types"
)

// Per-operation fixed-window limits.
const (
	verifyLimit  = 10
	reflectLimit = 10
	streamLimit  = 30
	limitWindow  = time.Minute
)

type Dependencies struct {
	Logger      *log.Logger
	Addr        string
	Access      *service.AccessService
	Gate        *service.WriteGate
	Webhooks    *service.WebhookProcessor
	Reflections store.ReflectionStore
	Notifier    *notify.Registry
	Limiter     *ratelimit.Limiter
	Metrics     *metrics.Metrics

	// WebhookSecret verifies inbound provider deliveries.
	WebhookSecret string
}

type Server struct {
	httpServer    *http.Server
	logger        *log.Logger
	mux           *http.ServeMux
	access        *service.AccessService
	gate          *service.WriteGate
	webhooks      *service.WebhookProcessor
	reflections   store.ReflectionStore
	notifier      *notify.Registry
	limiter       *ratelimit.Limiter
	metrics       *metrics.Metrics
	webhookSecret string
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:        d.Logger,
		mux:           mux,
		access:        d.Access,
		gate:          d.Gate,
		webhooks:      d.Webhooks,
		reflections:   d.Reflections,
		notifier:      d.Notifier,
		limiter:       d.Limiter,
		metrics:       d.Metrics,
		webhookSecret: d.WebhookSecret,
	}

	mux.HandleFunc("POST /v1/webhooks/payment", s.handleWebhook)
	mux.HandleFunc("POST /v1/perspectives/{id}/verify", s.handleVerify)
	mux.HandleFunc("GET /v1/perspectives/{id}/reflections", s.handleListReflections)
	mux.HandleFunc("POST /v1/perspectives/{id}/reflections", s.handleCreateReflection)
	mux.HandleFunc("GET /v1/perspectives/{id}/reflections/stream", s.handleStream)
	mux.Handle("GET /metrics", d.Metrics.Handler())

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleVerify exchanges a succeeded charge for read+write cookies.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	perspectiveID := r.PathValue("id")

	if !s.allow(w, r, "verify", verifyLimit, perspectiveID) {
		return
	}

	var req types.VerifyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	pair, err := s.access.IssueTokens(r.Context(), perspectiveID, req.ChargeID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPerspectiveID):
			writeError(w, http.StatusBadRequest, "invalid_perspective_id", err.Error())
		case errors.Is(err, service.ErrInvalidChargeID):
			writeError(w, http.StatusBadRequest, "invalid_charge_id", err.Error())
		case errors.Is(err, service.ErrChargeNotEligible):
			writeNotAuthorized(w)
		case errors.Is(err, service.ErrSigningSecretMissing):
			s.logger.Printf("verify error: %v", err)
			writeError(w, http.StatusInternalServerError, "configuration_error", "server cannot issue tokens")
		default:
			s.logger.Printf("verify error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	setAccessCookie(w, perspectiveID, pair.AccessToken)
	setWriteCookie(w, perspectiveID, pair.WriteToken)

	writeJSON(w, http.StatusOK, types.VerifyResponse{
		OK:            true,
		PerspectiveID: perspectiveID,
		ServerTime:    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleListReflections(w http.ResponseWriter, r *http.Request) {
	perspectiveID := r.PathValue("id")

	if !s.readAuthorized(r, perspectiveID) {
		writeNotAuthorized(w)
		return
	}

	list, err := s.reflections.ListReflections(r.Context(), perspectiveID)
	if err != nil {
		s.logger.Printf("list reflections error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if list == nil {
		list = []types.Reflection{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateReflection authorizes exactly one insert.  The elevated
// operator credential is checked first and exclusively; a request carrying
// the admin header never falls through to the consumer path.
func (s *Server) handleCreateReflection(w http.ResponseWriter, r *http.Request) {
	perspectiveID := r.PathValue("id")

	if !s.allow(w, r, "reflect", reflectLimit, perspectiveID) {
		return
	}

	var req types.NewReflectionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	rec := store.NewReflection{
		Body:               req.Body,
		ParentReflectionID: req.ParentReflectionID,
	}

	if credential := r.Header.Get(adminTokenHeader); credential != "" {
		if !s.gate.IsElevated(credential) {
			writeNotAuthorized(w)
			return
		}
		res, err := s.gate.SubmitElevated(r.Context(), perspectiveID, rec)
		s.finishCreate(w, res, err)
		return
	}

	chargeID, ok := s.access.CheckWriteAccess(perspectiveID, readCookie(r, writeCookieName(perspectiveID)))
	if !ok {
		writeNotAuthorized(w)
		return
	}

	res, err := s.gate.Submit(r.Context(), perspectiveID, chargeID, rec)
	if err == nil {
		// The charge is spent; the cookie is inert either way, clearing it
		// is best-effort client hygiene.
		clearWriteCookie(w, perspectiveID)
	}
	s.finishCreate(w, res, err)
}

func (s *Server) finishCreate(w http.ResponseWriter, res service.WriteResult, err error) {
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyBody), errors.Is(err, service.ErrBodyTooLong):
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		case errors.Is(err, store.ErrChargeNotValid):
			// Spent, refunded, missing: all one answer.
			writeNotAuthorized(w)
		default:
			s.logger.Printf("create reflection error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Reflection types.Reflection `json:"reflection"`
		Warnings   []string         `json:"warnings,omitempty"`
	}{res.Reflection, res.Warnings})
}

func (s *Server) readAuthorized(r *http.Request, perspectiveID string) bool {
	return s.access.CheckReadAccess(perspectiveID, readCookie(r, accessCookieName(perspectiveID)))
}

// allow runs the fixed-window limiter for op and writes the 429 when the
// window is exhausted.  Callers must apply no side effects before this.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, op string, limit int, resourceID string) bool {
	key := op + ":" + clientIP(r) + ":" + resourceID
	res := s.limiter.Check(key, limit, limitWindow)

	w.Header().Set("X-RateLimit-Remaining", itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", itoa(int(res.ResetAt.Unix())))

	if !res.OK {
		s.metrics.RateLimitRejections.WithLabelValues(op).Inc()
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		return false
	}
	return true
}
