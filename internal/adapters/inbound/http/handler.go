// handler.go provides the read-only HTTP API of the lending service.
//
// This inbound adapter exposes:
//   - GET /v1/markets/{ref}: market summary by canonical id or "Collateral/Loan"
//   - GET /v1/positions/{user}: open positions of a user
//   - GET /v1/positions/{user}/{market}: one position, open or not
//   - GET /v1/vaults: whitelisted vaults
//   - GET /v1/vaults/{ref}: one vault by address or name
//
// Every route accepts an optional chainId query parameter.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/trace"

	"github.com/archon-research/stl/stl-morpho/internal/adapters/outbound/telemetry"
	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/ports/inbound"
)

// SpanStarter starts a span per request.
type SpanStarter interface {
	StartSpan(ctx context.Context, route string) (context.Context, trace.Span)
}

// Handler implements HTTP handlers for the API.
type Handler struct {
	service inbound.LendingService
	spans   SpanStarter
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler with the given service. spans may be nil.
func NewHandler(service inbound.LendingService, spans SpanStarter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		spans:   spans,
		logger:  logger.With("component", "http-handler"),
	}
}

// RegisterRoutes registers the HTTP routes with the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/markets/{ref...}", h.traced("markets", h.Market))
	mux.HandleFunc("GET /v1/positions/{user}", h.traced("positions", h.Positions))
	mux.HandleFunc("GET /v1/positions/{user}/{market}", h.traced("position", h.Position))
	mux.HandleFunc("GET /v1/vaults", h.traced("vaults", h.Vaults))
	mux.HandleFunc("GET /v1/vaults/{ref}", h.traced("vault", h.Vaults))
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (h *Handler) traced(route string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.spans == nil {
			_ = fn(w, r)
			return
		}
		ctx, span := h.spans.StartSpan(r.Context(), route)
		err := fn(w, r.WithContext(ctx))
		telemetry.EndSpan(span, err)
	}
}

// Market handles GET /v1/markets/{ref}. The reference may contain a slash.
func (h *Handler) Market(w http.ResponseWriter, r *http.Request) error {
	chainID, err := chainParam(r)
	if err != nil {
		return h.fail(w, http.StatusBadRequest, err)
	}
	id, err := h.service.ResolveMarket(r.Context(), r.PathValue("ref"), chainID)
	if err != nil {
		return h.fail(w, statusFor(err), err)
	}
	summary, err := h.service.GetMarketSummary(r.Context(), id, chainID)
	if err != nil {
		return h.fail(w, statusFor(err), err)
	}
	h.respondJSON(w, http.StatusOK, toMarketResponse(summary))
	return nil
}

// Positions handles GET /v1/positions/{user}.
func (h *Handler) Positions(w http.ResponseWriter, r *http.Request) error {
	chainID, err := chainParam(r)
	if err != nil {
		return h.fail(w, http.StatusBadRequest, err)
	}
	user, err := addressParam(r.PathValue("user"))
	if err != nil {
		return h.fail(w, http.StatusBadRequest, err)
	}
	positions, err := h.service.GetUserPositions(r.Context(), user, chainID)
	if err != nil {
		return h.fail(w, statusFor(err), err)
	}
	out := make([]positionResponse, len(positions))
	for i := range positions {
		out[i] = toPositionResponse(&positions[i])
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"user": user.Hex(), "positions": out})
	return nil
}

// Position handles GET /v1/positions/{user}/{market}.
func (h *Handler) Position(w http.ResponseWriter, r *http.Request) error {
	chainID, err := chainParam(r)
	if err != nil {
		return h.fail(w, http.StatusBadRequest, err)
	}
	user, err := addressParam(r.PathValue("user"))
	if err != nil {
		return h.fail(w, http.StatusBadRequest, err)
	}
	id, err := h.service.ResolveMarket(r.Context(), r.PathValue("market"), chainID)
	if err != nil {
		return h.fail(w, statusFor(err), err)
	}
	pos, err := h.service.GetUserPosition(r.Context(), user, id)
	if err != nil {
		return h.fail(w, statusFor(err), err)
	}
	h.respondJSON(w, http.StatusOK, toPositionResponse(pos))
	return nil
}

// Vaults handles GET /v1/vaults and GET /v1/vaults/{ref}.
func (h *Handler) Vaults(w http.ResponseWriter, r *http.Request) error {
	chainID, err := chainParam(r)
	if err != nil {
		return h.fail(w, http.StatusBadRequest, err)
	}
	vaults, err := h.service.GetVaultData(r.Context(), r.PathValue("ref"), chainID)
	if err != nil {
		return h.fail(w, statusFor(err), err)
	}
	out := make([]vaultResponse, len(vaults))
	for i, v := range vaults {
		out[i] = toVaultResponse(v)
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"vaults": out})
	return nil
}

func chainParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("chainId")
	if raw == "" {
		return 0, nil
	}
	chainID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chainID < 0 {
		return 0, errors.New("chainId must be a positive integer")
	}
	return chainID, nil
}

func addressParam(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.New("user must be a hex address")
	}
	return common.HexToAddress(raw), nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidReference),
		errors.Is(err, entity.ErrInvalidAmount),
		errors.Is(err, entity.ErrChainNotServed):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrMarketNotFound),
		errors.Is(err, entity.ErrVaultNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrRemoteIndex),
		errors.Is(err, entity.ErrOnChainRead):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (h *Handler) fail(w http.ResponseWriter, status int, err error) error {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	}
	h.respondError(w, status, err.Error())
	return err
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
