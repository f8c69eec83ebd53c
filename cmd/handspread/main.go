// Command handspread runs a comparable-company analysis for a set of tickers
// and prints the results as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bobmcallan/handspread/internal/clients/finnhub"
	"github.com/bobmcallan/handspread/internal/clients/secdir"
	"github.com/bobmcallan/handspread/internal/common"
	"github.com/bobmcallan/handspread/internal/interfaces"
	"github.com/bobmcallan/handspread/internal/models"
	"github.com/bobmcallan/handspread/internal/services/comps"
)

func main() {
	var (
		tickersFlag = flag.String("tickers", "", "comma-separated ticker symbols (required)")
		periodFlag  = flag.String("period", "", "reporting period: ltm or annual:<year> (default from config)")
		timeoutFlag = flag.Duration("timeout", 0, "wall-clock budget for the run (default from config)")
		secDirFlag  = flag.String("sec-dir", "", "directory of SEC metric documents (default from config)")
		configFlag  = flag.String("config", "", "path to TOML config file")
		prettyFlag  = flag.Bool("pretty", false, "indent the JSON output")
		versionFlag = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Println(common.GetFullVersion())
		return
	}

	// Best-effort .env load before the config reads the environment.
	_ = godotenv.Load()

	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("HANDSPREAD_CONFIG")
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLoggerFromConfig(&config.Logging)

	tickers := splitTickers(*tickersFlag)
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: handspread -tickers AAPL,MSFT [-period ltm] [-timeout 60s]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *secDirFlag != "" {
		config.Clients.SEC.DataDir = *secDirFlag
	}
	if *periodFlag != "" {
		config.Analysis.Period = *periodFlag
	}

	if missing := config.ValidateRequired(); len(missing) > 0 {
		// The fixture-backed SEC client does not need the EDGAR user agent,
		// but the vendor key is non-negotiable.
		if config.Clients.Finnhub.APIKey == "" {
			logger.Fatal().Strs("missing", missing).Msg("Missing required configuration")
		}
	}

	market := finnhub.NewClient(config.Clients.Finnhub.APIKey,
		finnhub.WithBaseURL(config.Clients.Finnhub.BaseURL),
		finnhub.WithRateLimit(config.Clients.Finnhub.RateLimit),
		finnhub.WithTimeout(config.Clients.Finnhub.GetTimeout()),
		finnhub.WithTTL(config.Clients.Finnhub.GetTTL()),
		finnhub.WithMaxConcurrent(config.Clients.Finnhub.Concurrency),
		finnhub.WithRawPayloads(config.Clients.Finnhub.KeepRawPayloads),
		finnhub.WithLogger(logger),
	)
	sec := secdir.NewClient(config.Clients.SEC.DataDir, secdir.WithLogger(logger))

	service := comps.NewService(sec, market, logger)

	timeout := config.Analysis.GetTimeout()
	if *timeoutFlag > 0 {
		timeout = *timeoutFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	results, err := service.AnalyzeComps(ctx, tickers,
		interfaces.WithPeriod(config.Analysis.Period),
		interfaces.WithTimeout(timeout),
		interfaces.WithTaxRate(config.Analysis.TaxRate),
	)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		}
		os.Exit(1)
	}

	logger.Info().
		Int("tickers", len(tickers)).
		Dur("elapsed", time.Since(started)).
		Msg("Analysis finished")

	enc := json.NewEncoder(os.Stdout)
	if *prettyFlag {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(results); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode results: %v\n", err)
		os.Exit(1)
	}
}

// splitTickers parses the comma-separated ticker flag, dropping empties.
func splitTickers(raw string) []string {
	var tickers []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers
}
