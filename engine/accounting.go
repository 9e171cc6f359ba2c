package engine

import (
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/thrasher-corp/eqbacktester/broker"
)

// buy executes an opening or adding-to buy on ticker at ts, charging the
// configured broker's fee against cash. features, if non-empty, is
// attached to stockFeatures[ticker], overwriting any prior vector, and is
// carried into the trade record on the closing sell.
func (e *Engine) buy(ticker string, qty uint64, price float64, ts int64, features []float64) error {
	if qty == 0 || price <= 0 {
		return fmt.Errorf("%w: qty and price must be positive", ErrInvalidOrder)
	}
	cost := float64(qty) * price
	fee := e.broker.CalculateFees(qty, price, broker.Buy)
	if cost+fee > e.cashBalance {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, cost+fee, e.cashBalance)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("engine: generate swap id: %w", err)
	}

	e.cashBalance -= cost + fee
	e.stockBalances[ticker] += qty
	e.totalFees += fee
	e.swaps = append(e.swaps, Swap{ID: id, Side: broker.Buy, Ticker: ticker, Qty: qty, Price: price, Fee: fee, Timestamp: ts})
	e.stockPrices[ticker] = price
	e.holdSince[ticker] = ts
	if len(features) > 0 {
		e.stockFeatures[ticker] = features
	}
	return nil
}

// sell executes a closing or reducing sell on ticker at ts. It attributes
// P&L by walking swaps for ticker in reverse, collecting every BUY back
// to the previous SELL (or the start of the log): a position closed
// across multiple sells attributes all matched buy cost/fees to the
// first sell that closes any of it, so later sells on the same position
// see zero matched cost.
func (e *Engine) sell(ticker string, qty uint64, price float64, ts int64) error {
	if qty == 0 || price <= 0 {
		return fmt.Errorf("%w: qty and price must be positive", ErrInvalidOrder)
	}
	bal, ok := e.stockBalances[ticker]
	if !ok || bal < qty {
		return fmt.Errorf("%w: have %d, requested %d", ErrInsufficientShares, bal, qty)
	}
	proceeds := float64(qty) * price
	fee := e.broker.CalculateFees(qty, price, broker.Sell)

	var matchedCost, matchedFees float64
	for i := len(e.swaps) - 1; i >= 0; i-- {
		s := e.swaps[i]
		if s.Ticker != ticker {
			continue
		}
		if s.Side == broker.Sell {
			break
		}
		matchedCost += float64(s.Qty) * s.Price
		matchedFees += s.Fee
	}

	profit := proceeds - matchedCost - matchedFees - fee
	profitPercent := 0.0
	if matchedCost > 0 {
		profitPercent = profit / matchedCost
	}

	swapID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("engine: generate swap id: %w", err)
	}
	tradeID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("engine: generate trade id: %w", err)
	}

	trade := Trade{
		ID: tradeID, SwapID: swapID, Ticker: ticker, Qty: qty, Price: price,
		Timestamp: ts, Fee: fee, Profit: profit, ProfitPercent: profitPercent,
	}
	if f, ok := e.stockFeatures[ticker]; ok {
		trade.Features = f
	}
	e.trades = append(e.trades, trade)

	// The swap is recorded after the walk and the Trade push above, so a
	// subsequent sell's walk on this ticker excludes it.
	e.cashBalance += proceeds - fee
	e.stockBalances[ticker] -= qty
	e.totalFees += fee
	e.swaps = append(e.swaps, Swap{ID: swapID, Side: broker.Sell, Ticker: ticker, Qty: qty, Price: price, Fee: fee, Timestamp: ts})

	if e.stockBalances[ticker] == 0 {
		delete(e.stockBalances, ticker)
		delete(e.holdSince, ticker)
		delete(e.stockFeatures, ticker)
	}
	return nil
}
