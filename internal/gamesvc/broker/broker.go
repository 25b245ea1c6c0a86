package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vertibet/crash-services/internal/comm"
	"github.com/vertibet/crash-services/internal/gamesvc/games"
	"github.com/vertibet/crash-services/internal/gamesvc/round"
	"github.com/vertibet/crash-services/internal/gamesvc/store"
	"github.com/vertibet/crash-services/internal/gamesvc/wallet"
)

type Broker struct {
	Conn          *nats.Conn
	WalletService *wallet.Service
	Engine        *round.Engine
	SeedStore     *store.SeedStore
}

func NewBroker(nc *nats.Conn, walletService *wallet.Service, engine *round.Engine, seedStore *store.SeedStore) *Broker {
	return &Broker{
		Conn:          nc,
		WalletService: walletService,
		Engine:        engine,
		SeedStore:     seedStore,
	}
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	err := json.Unmarshal(msgNat.Data, &msg)
	if err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case "init":
		req := comm.InitReq{}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error %s", err)
			return
		}
		b.handleInit(req, msg.SocketId)
	case "place-bet":
		req := comm.PlaceBetReq{}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error %s", err)
			return
		}
		b.handlePlaceBet(req, msg.SocketId)
	case "cashout":
		req := comm.CashoutReq{}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error %s", err)
			return
		}
		b.handleCashout(req, msg.SocketId)
	case "wager":
		req := comm.WagerReq{}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error %s", err)
			return
		}
		b.handleWager(req, msg.SocketId)
	case "rotate-seed":
		req := comm.RotateSeedReq{}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error %s", err)
			return
		}
		b.handleRotateSeed(req, msg.SocketId)
	default:
		log.Warnf("unknown message type %s", msg.Type)
	}
}

func (b *Broker) handleInit(req comm.InitReq, socketId string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := comm.InitRes{Status: "ok", Timestamp: time.Now().Unix()}

	balance, err := b.WalletService.Balance(ctx, req.UserId, req.TenantId)
	if err != nil {
		res.Status, res.Message = errorStatus(err)
	} else {
		res.Balance = balance.StringFixed(2)
	}

	if state, err := b.Engine.CurrentState(ctx); err == nil {
		res.RoundState = state
	}

	b.publishResponse("init-response", res, socketId)
}

func (b *Broker) handlePlaceBet(req comm.PlaceBetReq, socketId string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := comm.PlaceBetRes{Status: "ok", Timestamp: time.Now().Unix()}

	stake, err := decimal.NewFromString(req.Stake)
	if err != nil {
		res.Status = "invalid-wager"
		res.Message = "invalid stake"
		b.publishResponse("place-bet-response", res, socketId)
		return
	}

	var autoCashout decimal.Decimal
	if req.AutoCashout != "" {
		autoCashout, err = decimal.NewFromString(req.AutoCashout)
		if err != nil {
			res.Status = "invalid-wager"
			res.Message = "invalid auto cashout"
			b.publishResponse("place-bet-response", res, socketId)
			return
		}
	}

	bet, err := b.Engine.PlaceBet(ctx, round.BetRequest{
		UserID:      req.UserId,
		TenantID:    req.TenantId,
		Stake:       stake,
		AutoCashout: autoCashout,
	})
	if err != nil {
		res.Status, res.Message = errorStatus(err)
		b.publishResponse("place-bet-response", res, socketId)
		return
	}

	res.BetId = bet.ID.String()
	res.Sequence = bet.RoundSequence
	if balance, err := b.WalletService.Balance(ctx, req.UserId, req.TenantId); err == nil {
		res.Balance = balance.StringFixed(2)
	}
	b.publishResponse("place-bet-response", res, socketId)
}

func (b *Broker) handleCashout(req comm.CashoutReq, socketId string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := comm.CashoutRes{Status: "ok", Timestamp: time.Now().Unix()}

	bet, err := b.Engine.Cashout(ctx, req.UserId)
	if err != nil {
		res.Status, res.Message = errorStatus(err)
		b.publishResponse("cashout-response", res, socketId)
		return
	}

	res.BetId = bet.ID.String()
	res.Multiplier = bet.Multiplier.StringFixed(2)
	res.Payout = bet.Payout.StringFixed(2)
	if balance, err := b.WalletService.Balance(ctx, req.UserId, req.TenantId); err == nil {
		res.Balance = balance.StringFixed(2)
	}
	b.publishResponse("cashout-response", res, socketId)
}

func (b *Broker) handleWager(req comm.WagerReq, socketId string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := comm.WagerRes{Status: "ok", Timestamp: time.Now().Unix()}

	stake, err := decimal.NewFromString(req.Stake)
	if err != nil {
		res.Status = "invalid-wager"
		res.Message = "invalid stake"
		b.publishResponse("wager-response", res, socketId)
		return
	}

	params := games.Params{Guess: req.Guess}
	if req.Target != "" {
		params.Target, err = decimal.NewFromString(req.Target)
		if err != nil {
			res.Status = "invalid-wager"
			res.Message = "invalid target"
			b.publishResponse("wager-response", res, socketId)
			return
		}
	}

	result, err := b.WalletService.PlaceWager(ctx, wallet.WagerRequest{
		UserID:   req.UserId,
		TenantID: req.TenantId,
		GameType: req.GameType,
		Stake:    stake,
		Params:   params,
	})
	if err != nil {
		res.Status, res.Message = errorStatus(err)
		b.publishResponse("wager-response", res, socketId)
		return
	}

	res.BetId = result.Bet.ID.String()
	res.GameType = result.Bet.GameType
	res.Multiplier = result.Outcome.Multiplier.StringFixed(2)
	res.Payout = result.Outcome.Payout.StringFixed(2)
	res.Profit = result.Outcome.Profit.StringFixed(2)
	res.IsWin = result.Outcome.IsWin
	res.Result = result.Outcome.Payload
	res.Balance = result.Balance.StringFixed(2)
	res.ServerSeedHash = result.ServerSeedHash
	res.ClientSeed = result.ClientSeed
	res.Nonce = result.Nonce
	b.publishResponse("wager-response", res, socketId)
}

func (b *Broker) handleRotateSeed(req comm.RotateSeedReq, socketId string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := comm.RotateSeedRes{Status: "ok", Timestamp: time.Now().Unix()}

	old, next, err := b.SeedStore.RotateSeed(ctx, req.UserId, req.ClientSeed)
	if err != nil {
		res.Status, res.Message = errorStatus(err)
		b.publishResponse("rotate-seed-response", res, socketId)
		return
	}

	if old != nil {
		res.Revealed = old.Revealed()
	}
	res.NextHash = next.ServerSeedHash
	b.publishResponse("rotate-seed-response", res, socketId)
}

// Emitter implementation: round events broadcast to every connected socket.
// An empty SocketId tells the socket service to fan out.

func (b *Broker) EmitRoundState(s round.SafeState) {
	b.publishResponse("round-state", s, "")
}

func (b *Broker) EmitTick(s round.SafeState) {
	b.publishResponse("round-tick", s, "")
}

func (b *Broker) EmitBetPlaced(e round.BetEvent) {
	b.publishResponse("bet-placed", e, "")
}

func (b *Broker) EmitCashout(e round.CashoutEvent) {
	b.publishResponse("bet-cashedout", e, "")
}

func (b *Broker) EmitCrash(e round.CrashEvent) {
	b.publishResponse("round-crashed", e, "")
}

func (b *Broker) publishResponse(msgType string, payload interface{}, socketId string) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("unable to marshal %s payload: %s", msgType, err)
		return
	}

	msg := &comm.WSMessage{
		Type:     msgType,
		Data:     data,
		SocketId: socketId,
	}

	out, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish("game.service", out)
}

func (b *Broker) SubscribeSocketService(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// errorStatus maps settlement and round failures to wire status codes the
// client can act on.
func errorStatus(err error) (string, string) {
	var riskErr *wallet.RiskLimitError
	var valErr *wallet.ValidationError

	switch {
	case errors.Is(err, wallet.ErrRateLimited):
		return "rate-limited", "you are wagering too fast, slow down"
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return "insufficient-balance", "your balance cannot cover this stake"
	case errors.Is(err, wallet.ErrWalletNotFound):
		return "wallet-not-found", "no wallet found for this account"
	case errors.Is(err, wallet.ErrBetNotOpen):
		return "no-bet", "no open bet to cash out"
	case errors.Is(err, round.ErrBetsClosed):
		return "bets-closed", "betting is closed for this round"
	case errors.Is(err, round.ErrAlreadyBet):
		return "already-bet", "you already have a bet in this round"
	case errors.Is(err, round.ErrCashoutClosed):
		return "cashout-closed", "the round is not running"
	case errors.Is(err, round.ErrNoBet):
		return "no-bet", "no open bet to cash out"
	case errors.Is(err, round.ErrAlreadyCashed):
		return "already-cashed", "this bet is already cashed out"
	case errors.Is(err, round.ErrEngineStopped):
		return "server-error", "round engine unavailable"
	case errors.As(err, &riskErr):
		return "risk-limit", riskErr.Error()
	case errors.As(err, &valErr):
		return "invalid-wager", valErr.Reason
	default:
		log.Errorf("settlement error: %s", err)
		return "server-error", "something went wrong, please try again"
	}
}
