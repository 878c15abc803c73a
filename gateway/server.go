// Package gateway exposes a contract host over HTTP: read-only queries,
// balances, indexed events, signed execute envelopes and a websocket stream
// of completed calls.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"countingchain/core"
	"countingchain/core/types"
	"countingchain/crypto"
	"countingchain/gateway/auth"
	"countingchain/gateway/middleware"
	"countingchain/indexer"
	"countingchain/observability/logging"
)

const (
	maxEnvelopeBytes  = 1 << 20
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Config controls the HTTP surface.
type Config struct {
	ListenAddress      string
	RateLimitPerMinute float64
	Burst              int
	LogRequests        bool
	AllowedOrigins     []string
}

// Server serves the gateway routes for one App.
type Server struct {
	app     *core.App
	auth    *auth.Authenticator
	broker  *Broker
	indexer *indexer.Indexer
	cfg     Config
	logger  *slog.Logger
	obs     *middleware.Observability
	limiter *middleware.RateLimiter
}

// NewServer wires the gateway. idx may be nil, in which case the events route
// answers 503.
func NewServer(app *core.App, authn *auth.Authenticator, broker *Broker, idx *indexer.Indexer, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if broker == nil {
		broker = NewBroker(logger)
	}
	limit := middleware.RateLimit{RequestsPerMinute: cfg.RateLimitPerMinute, Burst: cfg.Burst}
	return &Server{
		app:     app,
		auth:    authn,
		broker:  broker,
		indexer: idx,
		cfg:     cfg,
		logger:  logger,
		obs:     middleware.NewObservability(middleware.ObservabilityConfig{LogRequests: cfg.LogRequests}, logger),
		limiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			"read":    limit,
			"execute": limit,
		}, logger),
	}
}

// Broker returns the emitter feeding the websocket stream.
func (s *Server) Broker() *Broker { return s.broker }

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}))
	r.Use(s.obs.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.obs.MetricsHandler())
	r.Get("/events/ws", s.handleEventsWS)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware("read"))
		r.Get("/bank/{addr}", s.handleBalances)
		r.Get("/contracts/{addr}", s.handleContractInfo)
		r.Get("/contracts/{addr}/query", s.handleQuery)
		r.Get("/contracts/{addr}/events", s.handleEvents)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware("execute"))
		r.Post("/contracts/{addr}/execute", s.handleExecute)
	})
	return otelhttp.NewHandler(r, "gateway")
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", slog.String("address", s.cfg.ListenAddress))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) parseAddress(raw string) (crypto.Address, error) {
	return crypto.ValidateAddress(s.app.Prefix(), strings.TrimSpace(raw))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	height, err := s.app.Height()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"chain_id": s.app.ChainID(),
		"height":   height,
	})
}

type balancesResponse struct {
	Address  string      `json:"address"`
	Balances types.Coins `json:"balances"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	addr, err := s.parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	balances, err := s.app.AllBalances(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if balances == nil {
		balances = types.Coins{}
	}
	writeJSON(w, http.StatusOK, balancesResponse{Address: addr.String(), Balances: balances})
}

type contractInfoResponse struct {
	Address string `json:"address"`
	CodeID  uint64 `json:"code_id"`
	Creator string `json:"creator"`
	Admin   string `json:"admin,omitempty"`
	Label   string `json:"label"`
}

func (s *Server) handleContractInfo(w http.ResponseWriter, r *http.Request) {
	addr, err := s.parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	info, err := s.app.ContractInfo(addr)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, contractInfoResponse{
		Address: info.Address,
		CodeID:  info.CodeID,
		Creator: info.Creator,
		Admin:   info.Admin,
		Label:   info.Label,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	addr, err := s.parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg := strings.TrimSpace(r.URL.Query().Get("msg"))
	if msg == "" || !json.Valid([]byte(msg)) {
		writeError(w, http.StatusBadRequest, errors.New("msg query parameter must be a JSON object"))
		return
	}
	data, err := s.app.Query(r.Context(), addr, []byte(msg))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExecuteResponse reports a committed execute call.
type ExecuteResponse struct {
	CallID string         `json:"call_id"`
	Height uint64         `json:"height"`
	Events []*types.Event `json:"events"`
	Data   []byte         `json:"data,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	addr, err := s.parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("execute is disabled on this gateway"))
		return
	}
	var env auth.Envelope
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", auth.ErrMalformedEnvelope, err))
		return
	}
	sender, err := s.auth.Authenticate(addr, env)
	if err != nil {
		s.logger.Warn("gateway: envelope rejected",
			slog.String("contract", addr.String()),
			slog.Any("error", err),
			envelopeAttrs(env))
		writeError(w, statusFor(err), err)
		return
	}
	res, err := s.app.Execute(r.Context(), sender, addr, env.Msg, types.NewCoins(env.Funds...))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ExecuteResponse{
		CallID: res.CallID,
		Height: res.Height,
		Events: res.Events,
		Data:   res.Data,
	})
}

// EventView is one indexed event as served by the events route.
type EventView struct {
	Height     uint64            `json:"height"`
	Position   int               `json:"position"`
	Type       string            `json:"type"`
	Attributes []types.Attribute `json:"attributes"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("indexer is disabled on this gateway"))
		return
	}
	addr, err := s.parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
			return
		}
	}
	records, err := s.indexer.EventsByContract(r.Context(), addr.String(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]EventView, 0, len(records))
	for _, record := range records {
		attrs, err := record.DecodeAttributes()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		views = append(views, EventView{
			Height:     record.Height,
			Position:   record.Position,
			Type:       record.Type,
			Attributes: attrs,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrMalformedEnvelope), errors.Is(err, crypto.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrStaleEnvelope), errors.Is(err, crypto.ErrBadAttestation):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNonceReplayed):
		return http.StatusConflict
	case errors.Is(err, core.ErrContractNotFound):
		return http.StatusNotFound
	case core.IsContractError(err),
		errors.Is(err, core.ErrInsufficientFunds),
		errors.Is(err, core.ErrCallDepthExceeded),
		errors.Is(err, core.ErrInvalidMessage):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// envelopeAttrs groups the envelope fields for logging. The signature is
// masked by the logging handler.
func envelopeAttrs(env auth.Envelope) slog.Attr {
	return slog.Group("envelope",
		slog.String("sender", env.Sender),
		slog.String("nonce", env.Nonce),
		slog.Int64("timestamp", env.Timestamp),
		logging.MaskField("signature", env.Signature))
}
