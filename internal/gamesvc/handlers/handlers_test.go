package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vertibet/crash-services/internal/gamesvc/fair"
	"github.com/vertibet/crash-services/internal/gamesvc/games"
)

const verifySeed = "0d5c8f8f3a6d4f2c9b1e7a0c5d3f8e2a1b4c6d8e0f2a4b6c8d0e2f4a6b8c0d2e"

type verifyBody struct {
	Code  int                        `json:"code"`
	Error string                     `json:"error"`
	Data  map[string]json.RawMessage `json:"data"`
}

func callVerify(t *testing.T, params url.Values) verifyBody {
	t.Helper()

	h := &Handler{}
	req := httptest.NewRequest("GET", "/v1/verify?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	h.VerifyHandler(rec, req)

	var body verifyBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func verifyParams(extra map[string]string) url.Values {
	params := url.Values{}
	params.Set("server_seed", verifySeed)
	params.Set("server_seed_hash", fair.HashSeed(verifySeed))
	params.Set("client_seed", "client")
	params.Set("nonce", "7")
	for k, v := range extra {
		params.Set(k, v)
	}
	return params
}

func TestVerifyRejectsBadCommit(t *testing.T) {
	params := verifyParams(nil)
	params.Set("server_seed_hash", fair.HashSeed("some other seed"))

	body := callVerify(t, params)
	if body.Code != 200 {
		t.Fatalf("expected 200, got %d", body.Code)
	}
	if string(body.Data["valid"]) != "false" {
		t.Fatalf("mismatched commitment must come back invalid, got %s", body.Data["valid"])
	}
}

func TestVerifyCrashPoint(t *testing.T) {
	body := callVerify(t, verifyParams(map[string]string{
		"game_type":  games.GameCrash,
		"house_edge": "0.04",
	}))
	if body.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", body.Code, body.Error)
	}

	var got string
	if err := json.Unmarshal(body.Data["crash_point"], &got); err != nil {
		t.Fatalf("decode crash_point: %v", err)
	}
	want := fair.CrashPoint(fair.Draw(verifySeed, "client", 7), 0.04, 10000).StringFixed(2)
	if got != want {
		t.Fatalf("crash point %s, want %s", got, want)
	}
}

func TestVerifyReplaysLimbo(t *testing.T) {
	body := callVerify(t, verifyParams(map[string]string{
		"game_type": games.GameLimbo,
		"stake":     "10",
		"target":    "2.00",
	}))
	if body.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", body.Code, body.Error)
	}

	var outcome struct {
		Payout string `json:"payout"`
		IsWin  bool   `json:"is_win"`
	}
	if err := json.Unmarshal(body.Data["outcome"], &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}

	r := fair.Draw(verifySeed, "client", 7)
	replay, err := games.Resolve(games.GameLimbo, decimal.RequireFromString("10"),
		games.Params{Target: decimal.RequireFromString("2.00")},
		games.Config{HouseEdge: 0.04},
		func(string) float64 { return r })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if outcome.IsWin != replay.IsWin || outcome.Payout != replay.Payout.StringFixed(2) {
		t.Fatalf("endpoint outcome (win=%v payout=%s) diverges from resolver (win=%v payout=%s)",
			outcome.IsWin, outcome.Payout, replay.IsWin, replay.Payout.StringFixed(2))
	}
}

func TestVerifyReplaysDraw21Hands(t *testing.T) {
	body := callVerify(t, verifyParams(map[string]string{
		"game_type": games.GameDraw21,
		"stake":     "10",
	}))
	if body.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", body.Code, body.Error)
	}

	var outcome struct {
		Payout string          `json:"payout"`
		IsWin  bool            `json:"is_win"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body.Data["outcome"], &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}

	// replay with the same suffix derivation the settlement path uses
	replay, err := games.Resolve(games.GameDraw21, decimal.RequireFromString("10"),
		games.Params{}, games.Config{HouseEdge: 0.04},
		func(suffix string) float64 { return fair.Draw(verifySeed, "client", 7, suffix) })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if outcome.IsWin != replay.IsWin || outcome.Payout != replay.Payout.StringFixed(2) {
		t.Fatalf("endpoint outcome (win=%v payout=%s) diverges from resolver (win=%v payout=%s)",
			outcome.IsWin, outcome.Payout, replay.IsWin, replay.Payout.StringFixed(2))
	}
	if string(outcome.Result) != string(replay.Payload) {
		t.Fatalf("hand payload %s diverges from resolver %s", outcome.Result, replay.Payload)
	}
}

func TestVerifyUnknownGameType(t *testing.T) {
	body := callVerify(t, verifyParams(map[string]string{"game_type": "roulette"}))
	if body.Code != 400 {
		t.Fatalf("unknown game_type must be rejected, got %d", body.Code)
	}
}
