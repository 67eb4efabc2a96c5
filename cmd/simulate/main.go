// Command simulate runs a Monte Carlo balance check: it auto-plays N auctions
// with a naive player policy and reports the loss rate per venue. The shipped
// tuning targets a 40–50% player loss rate; drift outside that band means the
// balance tables need attention.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/engine"
	"github.com/lockerloot/auction-engine/internal/lot"
	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
)

func main() {
	n := flag.Int("n", 2000, "auctions to simulate per venue")
	seed := flag.Int64("seed", 1, "rng seed")
	venueName := flag.String("venue", "", "simulate a single venue (default: all)")
	flag.Parse()

	src := rng.New(*seed)
	globals := balance.DefaultGlobals()
	gen := lot.NewGenerator(nil, globals, nil)
	eng := engine.New(globals, nil, src)

	venues := balance.StockVenues()
	if *venueName != "" {
		v, ok := balance.VenueByName(*venueName)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown venue: %s\n", *venueName)
			os.Exit(1)
		}
		venues = []balance.Venue{v}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "venue\tauctions\twon\tlost\texpired\tloss rate\tavg rounds\tavg profit")

	for _, venue := range venues {
		r := runVenue(gen, eng, venue, *n, src)
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.1f%%\t%.1f\t%s\n",
			venue.Name, *n, r.won, r.lost, r.expired,
			r.lossRate()*100, r.avgRounds(), r.avgProfit().StringFixed(2))
	}
	w.Flush()
}

type venueResult struct {
	won, lost, expired int
	totalRounds        int
	totalProfit        decimal.Decimal
}

func (r venueResult) lossRate() float64 {
	if decided := r.won + r.lost; decided > 0 {
		return float64(r.lost) / float64(decided)
	}
	return 0
}

func (r venueResult) avgRounds() float64 {
	n := r.won + r.lost + r.expired
	if n == 0 {
		return 0
	}
	return float64(r.totalRounds) / float64(n)
}

func (r venueResult) avgProfit() decimal.Decimal {
	if r.won == 0 {
		return decimal.Zero
	}
	return r.totalProfit.Div(decimal.NewFromInt(int64(r.won))).Round(2)
}

func runVenue(gen *lot.Generator, eng *engine.Engine, venue balance.Venue, n int, src rng.Source) venueResult {
	var r venueResult
	for i := 0; i < n; i++ {
		a, err := gen.Generate(venue, 0, nil, src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate failed: %v\n", err)
			os.Exit(1)
		}
		a = playOut(eng, a, src)

		switch a.Status {
		case model.StatusWon:
			r.won++
			r.totalProfit = r.totalProfit.Add(
				a.Lot.HiddenTotalValue.Sub(a.CurrentBid).Add(a.FeeRefund).Add(a.BonusReward))
		case model.StatusLost:
			r.lost++
		case model.StatusExpired:
			r.expired++
		}
		r.totalRounds += a.Round
	}
	return r
}

// playOut drives one auction to a terminal state with a naive player: a
// hidden-value-blind ceiling rolled per auction, a bid whenever outbid and
// affordable, and a sniper attempt once the countdown starts.
func playOut(eng *engine.Engine, a *model.Auction, src rng.Source) *model.Auction {
	a = eng.Enter(a)

	// Player ceiling: the player can't see the lot, so the budget is venue
	// relative, not value relative.
	ceiling := a.MinimumBid.Mul(decimal.NewFromFloat(rng.Between(src, 2.0, 6.0)))

	for !a.Status.Terminal() {
		if a.CurrentBidder != model.PlayerBidder {
			next := a.NextMinBid()
			switch {
			case a.Phase.Closing() && a.Budget.SniperLeft > 0:
				if snapped, _, err := eng.ApplyTactic(a, model.TacticSniper); err == nil {
					a = snapped
					continue
				}
				fallthrough
			default:
				if next.LessThanOrEqual(ceiling) {
					if bid, err := eng.PlaceBid(a, next); err == nil {
						a = bid
					}
				}
			}
		}
		a = eng.AdvanceRound(a)
	}
	return a
}
