package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vertibet/crash-services/internal/gamesvc/fair"
	"github.com/vertibet/crash-services/internal/gamesvc/games"
	"github.com/vertibet/crash-services/internal/gamesvc/store"
	"github.com/vertibet/crash-services/internal/gamesvc/tenant"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth

	seedStore   *store.SeedStore
	betStore    *store.BetStore
	roundStore  *store.RoundStore
	tenantStore *store.TenantStore
	resolver    *tenant.Resolver
}

func NewHandler(seedStore *store.SeedStore, betStore *store.BetStore,
	roundStore *store.RoundStore, tenantStore *store.TenantStore, resolver *tenant.Resolver) *Handler {
	return &Handler{
		seedStore:   seedStore,
		betStore:    betStore,
		roundStore:  roundStore,
		tenantStore: tenantStore,
		resolver:    resolver,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "game service is running at port " + os.Getenv("GAME_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}

// VerifyHandler recomputes an outcome from revealed seed material. It is pure
// computation: anyone holding a revealed server seed can check that the hash
// commitment matches and replay the exact outcome the house settled, for every
// game type. house_edge defaults to the conservative fallback when the tenant
// had no explicit config.
func (h *Handler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serverSeed := q.Get("server_seed")
	serverSeedHash := q.Get("server_seed_hash")
	clientSeed := q.Get("client_seed")

	nonce, err := strconv.ParseInt(q.Get("nonce"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid nonce"})
		return
	}
	if serverSeed == "" || serverSeedHash == "" {
		h.CreateResponse(w, Response{Code: 400, Error: "server_seed and server_seed_hash are required"})
		return
	}

	if !fair.VerifyCommit(serverSeed, serverSeedHash) {
		h.CreateResponse(w, Response{
			Code: 200,
			Data: map[string]interface{}{"valid": false},
		})
		return
	}

	draw := fair.Draw(serverSeed, clientSeed, nonce)
	data := map[string]interface{}{
		"valid": true,
		"draw":  draw,
	}

	edge := 0.04
	if edgeStr := q.Get("house_edge"); edgeStr != "" {
		edge, err = strconv.ParseFloat(edgeStr, 64)
		if err != nil || edge < 0 || edge >= 1 {
			h.CreateResponse(w, Response{Code: 400, Error: "invalid house_edge"})
			return
		}
	}

	switch gameType := q.Get("game_type"); {
	case gameType == "":
		// seed check only, the raw draw is enough
	case gameType == games.GameCrash:
		data["crash_point"] = fair.CrashPoint(draw, edge, 10000).StringFixed(2)
	case games.IsDiscrete(gameType):
		outcome, err := replayOutcome(gameType, q, serverSeed, clientSeed, nonce, edge)
		if err != nil {
			h.CreateResponse(w, Response{Code: 400, Error: err.Error()})
			return
		}
		data["outcome"] = map[string]interface{}{
			"game_type":  outcome.GameType,
			"multiplier": outcome.Multiplier.StringFixed(2),
			"payout":     outcome.Payout.StringFixed(2),
			"is_win":     outcome.IsWin,
			"result":     outcome.Payload,
		}
	default:
		h.CreateResponse(w, Response{Code: 400, Error: "unknown game_type " + gameType})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: data})
}

// replayOutcome reruns a discrete game through the resolver with the same
// seed material it was settled with. Multi-draw games rebuild their suffix
// draws from the single (seed, nonce) pair, so draw21 hands come back card
// for card.
func replayOutcome(gameType string, q url.Values, serverSeed, clientSeed string, nonce int64, edge float64) (*games.Outcome, error) {
	stake := decimal.NewFromInt(1)
	if s := q.Get("stake"); s != "" {
		parsed, err := decimal.NewFromString(s)
		if err != nil || !parsed.IsPositive() {
			return nil, errors.New("invalid stake")
		}
		stake = parsed
	}

	var p games.Params
	if t := q.Get("target"); t != "" {
		target, err := decimal.NewFromString(t)
		if err != nil {
			return nil, errors.New("invalid target")
		}
		p.Target = target
	}
	p.Guess = q.Get("guess")

	draw := func(suffix string) float64 {
		if suffix == "" {
			return fair.Draw(serverSeed, clientSeed, nonce)
		}
		return fair.Draw(serverSeed, clientSeed, nonce, suffix)
	}

	return games.Resolve(gameType, stake, p, games.Config{HouseEdge: edge}, draw)
}

// RoundHandler returns an archived round with its revealed seed.
func (h *Handler) RoundHandler(w http.ResponseWriter, r *http.Request) {
	sequence, err := strconv.ParseInt(chi.URLParam(r, "sequence"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid sequence"})
		return
	}

	round, err := h.roundStore.GetBySequence(r.Context(), sequence)
	if err != nil {
		log.Errorf("Error [RoundStore.GetBySequence] %s", err)
		h.CreateResponse(w, Response{Code: 500, Error: "server error"})
		return
	}
	if round == nil {
		h.CreateResponse(w, Response{Code: 404, Error: "round not found"})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: round})
}

// RoundHistoryHandler lists recent archived rounds, newest first.
func (h *Handler) RoundHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rounds, err := h.roundStore.ListRecent(r.Context(), limit)
	if err != nil {
		log.Errorf("Error [RoundStore.ListRecent] %s", err)
		h.CreateResponse(w, Response{Code: 500, Error: "server error"})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: rounds})
}

// BetHistoryHandler lists the authenticated user's recent bets.
func (h *Handler) BetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, ok := claimsIDs(r)
	if !ok {
		h.CreateResponse(w, Response{Code: 401, Error: "unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	bets, err := h.betStore.ListByUser(r.Context(), userID, tenantID, limit)
	if err != nil {
		log.Errorf("Error [BetStore.ListByUser] %s", err)
		h.CreateResponse(w, Response{Code: 500, Error: "server error"})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: bets})
}

// SeedHandler shows the user's active seed commitment. The server seed itself
// stays hidden until rotation.
func (h *Handler) SeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := claimsIDs(r)
	if !ok {
		h.CreateResponse(w, Response{Code: 401, Error: "unauthorized"})
		return
	}

	seed, err := h.seedStore.GetActiveSeed(r.Context(), userID)
	if err != nil {
		log.Errorf("Error [SeedStore.GetActiveSeed] %s", err)
		h.CreateResponse(w, Response{Code: 500, Error: "server error"})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: seed})
}

// RotateSeedHandler retires the active seed, revealing it, and commits to a
// fresh one.
func (h *Handler) RotateSeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := claimsIDs(r)
	if !ok {
		h.CreateResponse(w, Response{Code: 401, Error: "unauthorized"})
		return
	}

	var req struct {
		ClientSeed string `json:"client_seed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid request body"})
		return
	}

	old, next, err := h.seedStore.RotateSeed(r.Context(), userID, req.ClientSeed)
	if err != nil {
		log.Errorf("Error [SeedStore.RotateSeed] %s", err)
		h.CreateResponse(w, Response{Code: 500, Error: "server error"})
		return
	}

	data := map[string]interface{}{"next_hash": next.ServerSeedHash}
	if old != nil {
		data["revealed"] = old.Revealed()
	}

	h.CreateResponse(w, Response{Code: 200, Data: data})
}

// UpdateGameConfigHandler writes a tenant's house edge for a game and evicts
// the cached config so the next wager sees it.
func (h *Handler) UpdateGameConfigHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid tenant id"})
		return
	}

	var req struct {
		GameType  string  `json:"game_type"`
		HouseEdge float64 `json:"house_edge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid request body"})
		return
	}
	if req.GameType == "" || req.HouseEdge < 0 || req.HouseEdge >= 1 {
		h.CreateResponse(w, Response{Code: 400, Error: "game_type required and house_edge must be in [0,1)"})
		return
	}

	if err := h.tenantStore.UpsertGameConfig(r.Context(), tenantID, req.GameType, req.HouseEdge); err != nil {
		log.Errorf("Error [TenantStore.UpsertGameConfig] %s", err)
		h.CreateResponse(w, Response{Code: 500, Error: "server error"})
		return
	}
	h.resolver.Invalidate(tenantID)

	h.CreateResponse(w, Response{Code: 200, Message: "config updated"})
}

// UpdateRiskLimitHandler writes a tenant's risk caps and evicts the cache.
func (h *Handler) UpdateRiskLimitHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid tenant id"})
		return
	}

	var req struct {
		MaxBetAmount    string `json:"max_bet_amount"`
		MaxPayoutPerBet string `json:"max_payout_per_bet"`
		MaxPayoutPerDay string `json:"max_payout_per_day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid request body"})
		return
	}

	maxBet, err1 := decimal.NewFromString(req.MaxBetAmount)
	perBet, err2 := decimal.NewFromString(req.MaxPayoutPerBet)
	perDay, err3 := decimal.NewFromString(req.MaxPayoutPerDay)
	if err1 != nil || err2 != nil || err3 != nil ||
		!maxBet.IsPositive() || !perBet.IsPositive() || !perDay.IsPositive() {
		h.CreateResponse(w, Response{Code: 400, Error: "limits must be positive decimal strings"})
		return
	}

	if err := h.tenantStore.UpsertRiskLimit(r.Context(), tenantID, maxBet, perBet, perDay); err != nil {
		log.Errorf("Error [TenantStore.UpsertRiskLimit] %s", err)
		h.CreateResponse(w, Response{Code: 500, Error: "server error"})
		return
	}
	h.resolver.Invalidate(tenantID)

	h.CreateResponse(w, Response{Code: 200, Message: "risk limits updated"})
}

// claimsIDs pulls user and tenant ids out of the verified JWT.
func claimsIDs(r *http.Request) (int64, int64, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return 0, 0, false
	}

	userID, ok := claimNumber(claims, "user_id")
	if !ok {
		return 0, 0, false
	}
	tenantID, ok := claimNumber(claims, "tenant_id")
	if !ok {
		return 0, 0, false
	}
	return userID, tenantID, true
}

func claimNumber(claims map[string]interface{}, key string) (int64, bool) {
	v, ok := claims[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
