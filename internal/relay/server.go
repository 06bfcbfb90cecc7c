package relay

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/jonboulle/clockwork"

	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/engcrypto"
	"encryptednumbers/internal/metrics"
)

const maxBodyBytes = 64 << 10

type Options struct {
	ChainID    string
	MaxHandles int
	ClockSkew  time.Duration
	CacheSize  int

	Clock   clockwork.Clock
	Limiter Limiter
	Rand    io.Reader

	AllowedOrigins []string
	// AccessLog receives Apache combined log lines; nil disables them.
	AccessLog io.Writer
}

// RequestError carries the HTTP status for a rejected request.
type RequestError struct {
	Status  int
	Outcome string
	Err     error
}

func (e *RequestError) Error() string { return e.Err.Error() }
func (e *RequestError) Unwrap() error { return e.Err }

func reject(status int, outcome string, format string, args ...any) *RequestError {
	return &RequestError{Status: status, Outcome: outcome, Err: fmt.Errorf(format, args...)}
}

type Server struct {
	ledger  Ledger
	secret  engcrypto.Scalar
	public  engcrypto.Point
	opts    Options
	logger  log.Logger
	metrics *metrics.Metrics
}

func NewServer(ledger Ledger, secret engcrypto.Scalar, opts Options, logger log.Logger, m *metrics.Metrics) (*Server, error) {
	if secret.IsZero() {
		return nil, fmt.Errorf("network secret is zero")
	}
	if opts.ChainID == "" {
		return nil, fmt.Errorf("missing chain id")
	}
	if opts.MaxHandles <= 0 {
		opts.MaxHandles = 16
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Limiter == nil {
		opts.Limiter = NoLimit()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if m == nil {
		m = metrics.New()
	}
	cached, err := newCachingLedger(ledger, opts.CacheSize, m)
	if err != nil {
		return nil, err
	}
	return &Server{
		ledger:  cached,
		secret:  secret,
		public:  engcrypto.MulBase(secret),
		opts:    opts,
		logger:  logger.With("module", "relay"),
		metrics: m,
	}, nil
}

func (s *Server) NetworkKey() engcrypto.Point { return s.public }

// CheckNetworkKey fails unless the ledger was initialized with the public key
// matching the relay's secret.
func (s *Server) CheckNetworkKey(ctx context.Context) error {
	params, err := s.ledger.Params(ctx)
	if err != nil {
		return err
	}
	if params.NetworkKey != engcrypto.BytesToHex(s.public.Bytes()) {
		return fmt.Errorf("relay key %s does not match ledger network key %s", engcrypto.BytesToHex(s.public.Bytes()), params.NetworkKey)
	}
	if params.ChainID != "" && params.ChainID != s.opts.ChainID {
		return fmt.Errorf("relay chain id %q does not match ledger %q", s.opts.ChainID, params.ChainID)
	}
	return nil
}

// Decrypt authenticates req and returns one encrypted share per handle.
// Every handle must be authorized for the principal; otherwise nothing is
// returned.
func (s *Server) Decrypt(ctx context.Context, req DecryptRequest) (DecryptResponse, error) {
	if err := req.ValidateBasic(s.opts.MaxHandles); err != nil {
		return DecryptResponse{}, reject(http.StatusBadRequest, "bad_request", "%v", err)
	}

	now := s.opts.Clock.Now()
	start, end := req.Window()
	if now.Before(start.Add(-s.opts.ClockSkew)) {
		return DecryptResponse{}, reject(http.StatusUnauthorized, "unauthenticated", "request not valid before %s", start.UTC().Format(time.RFC3339))
	}
	if !now.Before(end) {
		return DecryptResponse{}, reject(http.StatusUnauthorized, "unauthenticated", "request expired at %s", end.UTC().Format(time.RFC3339))
	}
	if req.ChainID != s.opts.ChainID {
		return DecryptResponse{}, reject(http.StatusBadRequest, "bad_request", "wrong chain id %q", req.ChainID)
	}

	pub, err := s.ledger.AccountKey(ctx, req.Principal)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DecryptResponse{}, reject(http.StatusUnauthorized, "unauthenticated", "unknown principal %s", req.Principal)
		}
		return DecryptResponse{}, reject(http.StatusBadGateway, "ledger_error", "account lookup: %v", err)
	}
	if codec.AddressFromPubKey(pub) != req.Principal || !ed25519.Verify(pub, req.SignBytes(), req.Signature) {
		return DecryptResponse{}, reject(http.StatusUnauthorized, "unauthenticated", "invalid signature")
	}

	ok, err := s.opts.Limiter.Allow(ctx, req.Principal)
	if err != nil {
		return DecryptResponse{}, reject(http.StatusServiceUnavailable, "limiter_error", "%v", err)
	}
	if !ok {
		return DecryptResponse{}, reject(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded for %s", req.Principal)
	}

	for _, h := range req.Handles {
		ok, err := s.ledger.IsAuthorized(ctx, h, req.Principal)
		if err != nil {
			return DecryptResponse{}, reject(http.StatusBadGateway, "ledger_error", "acl lookup: %v", err)
		}
		if !ok {
			return DecryptResponse{}, reject(http.StatusForbidden, "forbidden", "%s is not authorized for %s", req.Principal, h)
		}
	}

	U, err := req.userKey()
	if err != nil {
		return DecryptResponse{}, reject(http.StatusBadRequest, "bad_request", "%v", err)
	}
	resp := DecryptResponse{RequestID: uuid.NewString(), Shares: make([]Share, 0, len(req.Handles))}
	for _, h := range req.Handles {
		ct, err := s.ledger.Ciphertext(ctx, h)
		if err != nil {
			return DecryptResponse{}, reject(http.StatusBadGateway, "ledger_error", "ciphertext %s: %v", h, err)
		}
		share, err := s.share(h, ct, U)
		if err != nil {
			return DecryptResponse{}, reject(http.StatusInternalServerError, "internal", "share %s: %v", h, err)
		}
		resp.Shares = append(resp.Shares, share)
	}
	return resp, nil
}

func (s *Server) share(handle string, ct engcrypto.Ciphertext, U engcrypto.Point) (Share, error) {
	var scalars [3]engcrypto.Scalar
	for i := range scalars {
		k, err := engcrypto.RandomScalar(s.opts.Rand)
		if err != nil {
			return Share{}, err
		}
		scalars[i] = k
	}
	es, proof, err := engcrypto.EncryptShare(s.secret, ct, U, scalars[0], scalars[1], scalars[2])
	if err != nil {
		return Share{}, err
	}
	return Share{
		Handle: handle,
		C1:     engcrypto.BytesToHex(ct.C1.Bytes()),
		C2:     engcrypto.BytesToHex(ct.C2.Bytes()),
		A:      engcrypto.BytesToHex(es.A.Bytes()),
		B:      engcrypto.BytesToHex(es.B.Bytes()),
		Proof:  engcrypto.BytesToHex(engcrypto.EncodeShareProof(proof)),
	}, nil
}

// Handler serves the relay API:
//
//	POST /v1/decrypt
//	GET  /v1/network-key
//	GET  /healthz
//	GET  /metrics
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/decrypt", s.handleDecrypt)
	mux.HandleFunc("GET /v1/network-key", s.handleNetworkKey)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", s.metrics.Handler())

	var h http.Handler = handlers.CORS(
		handlers.AllowedOrigins(s.opts.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(mux)
	h = s.metrics.InstrumentHandler(h)
	if s.opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(s.opts.AccessLog, h)
	}
	return h
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	began := s.opts.Clock.Now()
	defer func() {
		s.metrics.DecryptLatency.Observe(s.opts.Clock.Since(began).Seconds())
	}()

	var req DecryptRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.metrics.DecryptRequests.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	resp, err := s.Decrypt(r.Context(), req)
	if err != nil {
		rerr := &RequestError{Status: http.StatusInternalServerError, Outcome: "internal", Err: err}
		errors.As(err, &rerr)
		s.metrics.DecryptRequests.WithLabelValues(rerr.Outcome).Inc()
		s.logger.Info("decryption rejected",
			"principal", req.Principal,
			"handles", len(req.Handles),
			"status", rerr.Status,
			"err", err,
		)
		writeJSON(w, rerr.Status, errorResponse{Error: rerr.Error()})
		return
	}

	s.metrics.DecryptRequests.WithLabelValues("ok").Inc()
	s.logger.Info("decryption served",
		"request_id", resp.RequestID,
		"principal", req.Principal,
		"handles", len(req.Handles),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNetworkKey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NetworkKeyResponse{
		ChainID:    s.opts.ChainID,
		NetworkKey: engcrypto.BytesToHex(s.public.Bytes()),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
