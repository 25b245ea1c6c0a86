package games

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// draw21 rules: both hands draw until their total reaches the stand threshold,
// aces count 11 and demote to 1 while the hand would bust.
const (
	draw21Stand = 17
	draw21Bust  = 21
)

type draw21Result struct {
	PlayerCards []int  `json:"player_cards"`
	DealerCards []int  `json:"dealer_cards"`
	PlayerTotal int    `json:"player_total"`
	DealerTotal int    `json:"dealer_total"`
	Outcome     string `json:"outcome"` // win, lose, push, bonus
}

// ResolveDraw21 resolves the card-draw game. The player's and dealer's hands
// are dealt dealer-style: cards are drawn with incrementing suffixes
// ("player:0", "player:1", ... / "dealer:0", ...) until the hand total
// reaches 17. A hand over 21 busts; the player busting loses outright, a
// surviving player beats a busted dealer, otherwise the higher total wins and
// an equal total is a push returning the stake. A natural two-card 21 pays a
// 2.5x bonus line instead of the regular 2x, both reduced by the house edge
// and floored once to 2 decimals.
func ResolveDraw21(stake decimal.Decimal, guess string, cfg Config, draw DrawFunc) (*Outcome, error) {
	// guess is reserved for side-bet variants; only the main line is offered.
	if guess != "" && guess != "main" {
		return nil, fmt.Errorf("draw21 guess %q not supported", guess)
	}

	playerCards, playerTotal := drawHand(draw, "player")
	dealerCards, dealerTotal := drawHand(draw, "dealer")

	res := draw21Result{
		PlayerCards: playerCards,
		DealerCards: dealerCards,
		PlayerTotal: playerTotal,
		DealerTotal: dealerTotal,
	}

	playerNatural := len(playerCards) == 2 && playerTotal == draw21Bust
	dealerNatural := len(dealerCards) == 2 && dealerTotal == draw21Bust

	edge := decimal.NewFromFloat(cfg.HouseEdge)
	winLine := decimal.NewFromInt(2).Mul(decimal.NewFromInt(1).Sub(edge)).RoundFloor(2)
	bonusLine := decimal.NewFromFloat(2.5).Mul(decimal.NewFromInt(1).Sub(edge)).RoundFloor(2)

	switch {
	case playerTotal > draw21Bust:
		res.Outcome = "lose"
		return lost(GameDraw21, stake, res), nil
	case playerNatural && !dealerNatural:
		res.Outcome = "bonus"
		return won(GameDraw21, stake, bonusLine, res), nil
	case dealerTotal > draw21Bust, playerTotal > dealerTotal:
		res.Outcome = "win"
		return won(GameDraw21, stake, winLine, res), nil
	case playerTotal == dealerTotal:
		// push: the stake comes back untouched
		res.Outcome = "push"
		return won(GameDraw21, stake, decimal.NewFromInt(1), res), nil
	default:
		res.Outcome = "lose"
		return lost(GameDraw21, stake, res), nil
	}
}

// drawHand draws ranks 1..13 until the soft total reaches the stand threshold.
func drawHand(draw DrawFunc, prefix string) ([]int, int) {
	var cards []int
	total, aces := 0, 0

	for total < draw21Stand {
		r := draw(fmt.Sprintf("%s:%d", prefix, len(cards)))
		rank := int(r*13) + 1
		if rank > 13 {
			rank = 13 // r is < 1 but guard float edge anyway
		}
		cards = append(cards, rank)

		switch {
		case rank == 1:
			total += 11
			aces++
		case rank >= 10:
			total += 10
		default:
			total += rank
		}

		for total > draw21Bust && aces > 0 {
			total -= 10
			aces--
		}
	}

	return cards, total
}
