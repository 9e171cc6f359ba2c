// Command eqbacktester is a thin CLI wrapper around package engine: it
// builds a DataSource from the environment, a buy-and-hold Strategy from
// its flags, and prints the resulting Metrics. It exists to drive the
// engine end to end from a terminal, not as the tested surface of this
// module — real strategies are written against package strategy directly.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/thrasher-corp/eqbacktester/broker"
	"github.com/thrasher-corp/eqbacktester/config"
	"github.com/thrasher-corp/eqbacktester/datasource"
	"github.com/thrasher-corp/eqbacktester/engine"
	"github.com/thrasher-corp/eqbacktester/internal/log"
	"github.com/thrasher-corp/eqbacktester/strategy"
	"github.com/thrasher-corp/eqbacktester/timeframe"
)

var logger = log.NewSubLogger("cli")

func main() {
	app := &cli.App{
		Name:  "eqbacktester",
		Usage: "replay an equity strategy over historical candles",
		Commands: []*cli.Command{
			runCommand,
			runAllCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

var (
	symbolFlag = &cli.StringFlag{Name: "symbol", Usage: "ticker to backtest (run command only)"}
	startFlag  = &cli.TimestampFlag{Name: "start", Usage: "backtest start date (RFC3339)", Layout: time.RFC3339, Required: true}
	endFlag    = &cli.TimestampFlag{Name: "end", Usage: "backtest end date (RFC3339)", Layout: time.RFC3339, Required: true}
	tfFlag     = &cli.StringFlag{Name: "timeframe", Value: "1d", Usage: "main timeframe: 1m, 5m, 1h or 1d"}
	lookbackFlag = &cli.IntFlag{Name: "lookback", Value: 20, Usage: "number of trailing bars the strategy requires before its first callback"}
	cashFlag   = &cli.Float64Flag{Name: "cash", Value: 100000, Usage: "starting cash balance"}
	qtyFlag    = &cli.Uint64Flag{Name: "qty", Value: 10, Usage: "shares to buy on the first bar (buy-and-hold)"}
	brokerFlag = &cli.StringFlag{Name: "broker", Value: "alpaca", Usage: "fee policy: alpaca, ibkr-fixed or ibkr-tiered"}
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "backtest a buy-and-hold strategy on a single symbol",
	Flags: []cli.Flag{symbolFlag, startFlag, endFlag, tfFlag, lookbackFlag, cashFlag, qtyFlag, brokerFlag},
	Action: func(c *cli.Context) error {
		if c.String("symbol") == "" {
			return fmt.Errorf("run: --symbol is required")
		}
		e, err := buildEngine(c)
		if err != nil {
			return err
		}
		m, err := e.RunOnStock(c.Context, c.String("symbol"))
		if err != nil {
			return err
		}
		e.LogMetrics(m)
		return nil
	},
}

var runAllCommand = &cli.Command{
	Name:  "run-all",
	Usage: "backtest a buy-and-hold strategy across every known symbol",
	Flags: []cli.Flag{startFlag, endFlag, tfFlag, lookbackFlag, cashFlag, qtyFlag, brokerFlag},
	Action: func(c *cli.Context) error {
		e, err := buildEngine(c)
		if err != nil {
			return err
		}
		m, err := e.RunOnAllStocks(c.Context)
		if err != nil {
			return err
		}
		e.LogMetrics(m)
		return nil
	},
}

func buildEngine(c *cli.Context) (*engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("eqbacktester: %w", err)
	}

	src, err := openSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("eqbacktester: %w", err)
	}

	tf, err := timeframe.Parse(c.String("timeframe"))
	if err != nil {
		return nil, err
	}

	single := c.Command.Name == "run"
	strat, err := buyAndHoldStrategy(tf, c.Int("lookback"), c.Uint64("qty"), single)
	if err != nil {
		return nil, err
	}

	b, err := buildBroker(c.String("broker"))
	if err != nil {
		return nil, err
	}

	start, end := c.Timestamp("start"), c.Timestamp("end")
	if start == nil || end == nil {
		return nil, fmt.Errorf("eqbacktester: --start and --end are required")
	}

	return engine.New(engine.Config{
		Strategy:         strat,
		StartDate:        start.UnixMilli(),
		EndDate:          end.UnixMilli(),
		StartCashBalance: c.Float64("cash"),
		Broker:           b,
		Source:           src,
	})
}

func openSource(cfg config.Config) (datasource.Source, error) {
	switch cfg.DBDriver {
	case "postgres":
		return datasource.OpenPostgres(cfg.DBDSN, cfg.DBMaxConns, cfg.DBTimeout)
	default:
		return datasource.OpenSQLite(cfg.DBDSN, cfg.DBTimeout)
	}
}

func buildBroker(name string) (broker.Broker, error) {
	switch name {
	case "alpaca":
		return broker.NewAlpaca(0), nil
	case "ibkr-fixed":
		return broker.NewIBKR(broker.Fixed, 0), nil
	case "ibkr-tiered":
		return broker.NewIBKR(broker.Tiered, 0), nil
	default:
		return nil, fmt.Errorf("eqbacktester: unrecognised broker %q", name)
	}
}

// buyAndHoldStrategy buys qty shares on the first bar each symbol is seen
// and never sells, the simplest strategy that exercises every engine code
// path this CLI is meant to smoke-test.
func buyAndHoldStrategy(tf timeframe.Timeframe, lookback int, qty uint64, single bool) (*strategy.Strategy, error) {
	timeframes := map[timeframe.Timeframe]strategy.TimeframeConfig{
		tf: {Count: lookback, Main: true},
	}
	if single {
		return strategy.New(timeframes, func(ctx strategy.Context) error {
			if ctx.StockBalance() == 0 {
				return ctx.Buy(qty, ctx.Candle().Close)
			}
			return nil
		}, nil)
	}
	return strategy.New(timeframes, nil, func(ctx strategy.MultiContext) error {
		for _, entry := range ctx.Entries() {
			if entry.StockBalance == 0 {
				if err := ctx.Buy(entry.Ticker, qty, entry.Candle.Close); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
