package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AndreyBrytkov/cowdfunding/core"
	coreerrors "github.com/AndreyBrytkov/cowdfunding/core/errors"
	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/native/crowdfund"
)

const maxBodyBytes = 1 << 20

// Ledger is the subset of the ledger served over RPC.
type Ledger interface {
	Submit(ctx context.Context, tx *types.Transaction) (*core.Receipt, error)
	Account(addr common.Address) (*types.Account, error)
	Campaign(addr common.Address) (*crowdfund.Campaign, error)
	VaultBalance(campaign common.Address) (*uint256.Int, error)
	ChainID() uint64
	Height() uint64
	Root() common.Hash
}

// Config wires the RPC handler.
type Config struct {
	Ledger    Ledger
	Logger    *slog.Logger
	RateLimit RateLimit
	// Metrics serves the Prometheus registry on /metrics when set.
	Metrics bool
}

// Server exposes the ledger over HTTP.
type Server struct {
	ledger Ledger
	logger *slog.Logger
}

// New builds the RPC router.
func New(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("rpc: ledger is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{ledger: cfg.Ledger, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(logger, cfg.RateLimit.TrustForwardedHeaders))

	r.Get("/healthz", s.handleHealth)
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	limiter := NewRateLimiter(cfg.RateLimit)
	r.Route("/v1", func(sr chi.Router) {
		sr.Use(limiter.middleware)
		sr.Post("/transactions", s.handleSubmit)
		sr.Get("/accounts/{address}", s.handleAccount)
		sr.Get("/campaigns/{address}", s.handleCampaign)
	})
	return r, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"chainId": s.ledger.ChainID(),
		"height":  s.ledger.Height(),
		"root":    s.ledger.Root(),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "malformed_request", "request body too large")
		return
	}
	var wire TransactionJSON
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}
	tx, err := wire.Decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}
	receipt, err := s.ledger.Submit(r.Context(), tx)
	if err != nil {
		code := coreerrors.Code(err)
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("submit failed", "request_id", RequestID(r.Context()), "error", err)
			writeError(w, status, code, http.StatusText(status))
			return
		}
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, encodeReceipt(coreerrors.CodeOK, receipt))
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}
	acc, err := s.ledger.Account(addr)
	if err != nil {
		s.logger.Error("account lookup failed", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
		return
	}
	if acc == nil {
		writeError(w, http.StatusNotFound, "account_not_found", "account does not exist")
		return
	}
	writeJSON(w, http.StatusOK, encodeAccount(addr, acc))
}

func (s *Server) handleCampaign(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}
	rec, err := s.ledger.Campaign(addr)
	switch {
	case errors.Is(err, crowdfund.ErrCampaignNotFound), errors.Is(err, crowdfund.ErrInvalidAccountOwner):
		writeError(w, http.StatusNotFound, "campaign_not_found", "no campaign at this address")
		return
	case err != nil:
		s.logger.Error("campaign lookup failed", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
		return
	}
	vault, _ := crowdfund.VaultAddress(addr)
	balance, err := s.ledger.VaultBalance(addr)
	if err != nil {
		s.logger.Error("vault lookup failed", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, encodeCampaign(addr, rec, vault, balance))
}

// statusFor maps a submission error to its HTTP status.
func statusFor(err error) int {
	switch code := coreerrors.Code(err); {
	case code == "invalid_signature", code == "missing_signature":
		return http.StatusUnauthorized
	case code == "internal":
		return http.StatusInternalServerError
	case coreerrors.IsDomain(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
