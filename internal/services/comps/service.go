// Package comps orchestrates comparable-company analyses: per-ticker fan-out
// of the SEC and market data streams under a shared deadline, followed by the
// analysis stages that assemble each CompanyAnalysis.
package comps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/handspread/internal/analysis"
	"github.com/bobmcallan/handspread/internal/common"
	"github.com/bobmcallan/handspread/internal/interfaces"
	"github.com/bobmcallan/handspread/internal/models"
)

// Defaults for an analysis run.
const (
	DefaultPeriod  = "ltm"
	DefaultTimeout = 60 * time.Second
	DefaultTaxRate = 0.21
)

// Service implements CompsService
type Service struct {
	sec    interfaces.SECClient
	market interfaces.MarketClient
	logger *common.Logger
}

// NewService creates a new comps service
func NewService(sec interfaces.SECClient, market interfaces.MarketClient, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		sec:    sec,
		market: market,
		logger: logger,
	}
}

var _ interfaces.CompsService = (*Service)(nil)

// AnalyzeComps builds one CompanyAnalysis per requested ticker. Tickers run
// concurrently under a shared deadline; results preserve input order. The only
// error it returns is ErrInvalidInput for an empty ticker list or an unusable
// policy — every upstream or computation failure is recorded on the affected
// ticker instead.
func (s *Service) AnalyzeComps(ctx context.Context, tickers []string, opts ...interfaces.AnalyzeOption) ([]*models.CompanyAnalysis, error) {
	params := &interfaces.AnalyzeParams{
		Period:  DefaultPeriod,
		Policy:  models.DefaultEVPolicy(),
		Timeout: DefaultTimeout,
		TaxRate: DefaultTaxRate,
	}
	for _, opt := range opts {
		opt(params)
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol required", models.ErrInvalidInput)
	}
	if err := params.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	if params.Timeout <= 0 {
		params.Timeout = DefaultTimeout
	}

	runID := uuid.NewString()
	s.logger.Info().
		Str("run_id", runID).
		Int("tickers", len(tickers)).
		Str("period", params.Period).
		Dur("timeout", params.Timeout).
		Msg("Starting comps analysis")

	ctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	results := make([]*models.CompanyAnalysis, len(tickers))

	// One goroutine per ticker; market-side concurrency is already bounded by
	// the market client's semaphore, so the group itself is unbounded.
	var g errgroup.Group
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			results[i] = s.analyzeOne(ctx, ticker, params, runID)
			return nil
		})
	}
	g.Wait()

	s.logger.Info().Str("run_id", runID).Msg("Comps analysis complete")
	return results, nil
}

// analyzeOne gathers the three data streams for a single ticker and runs the
// analysis stages on whatever arrived. It never returns an error: failures
// become structured entries on the analysis.
func (s *Service) analyzeOne(ctx context.Context, ticker string, params *interfaces.AnalyzeParams, runID string) *models.CompanyAnalysis {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	ca := &models.CompanyAnalysis{
		Symbol:    symbol,
		Multiples: map[string]*models.ComputedValue{},
		Growth:    map[string]*models.ComputedValue{},
		Operating: map[string]*models.ComputedValue{},
	}

	var (
		secLTM, secPrior *models.SECResult
		snap             *models.MarketSnapshot
		streamErrs       [3]*models.AnalysisError
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		secLTM, err = s.sec.GetCompanyMetrics(ctx, symbol, params.Period)
		streamErrs[0] = classifyStreamError(ctx, "sec_ltm", err)
		return nil
	})
	g.Go(func() error {
		var err error
		secPrior, err = s.sec.GetCompanyMetrics(ctx, symbol, periodMinus1(params.Period))
		streamErrs[1] = classifyStreamError(ctx, "sec_ltm_minus_1", err)
		return nil
	})
	g.Go(func() error {
		var err error
		snap, err = s.market.FetchSnapshot(ctx, symbol)
		streamErrs[2] = classifyStreamError(ctx, "market", err)
		return nil
	})
	g.Wait()

	for _, se := range streamErrs {
		if se != nil {
			s.logger.Warn().
				Str("run_id", runID).
				Str("symbol", symbol).
				Str("stage", se.Stage).
				Str("kind", string(se.Kind)).
				Msg(se.Message)
			ca.Errors = append(ca.Errors, *se)
		}
	}

	ca.Market = snap
	if secLTM != nil {
		ca.SECLTM = secLTM.Metrics
		ca.CompanyName = secLTM.EntityName
		ca.CIK = secLTM.CIK
		ca.FiscalYearEnd = secLTM.FiscalYearEnd
	}
	if secPrior != nil {
		ca.SECLTMMinus1 = secPrior.Metrics
	}
	if ca.CompanyName == "" && snap != nil {
		ca.CompanyName = snap.CompanyName
	}
	if ca.CompanyName == "" {
		ca.CompanyName = symbol
	}

	// D → E → F → G. Each stage is isolated: a panic becomes an error entry
	// for that stage and later stages still run on what they have.
	adjusted := analysis.ComputeAdjustedEBITDA(
		analysis.ExtractSECValue(ca.SECLTM, "operating_income"),
		analysis.ExtractSECValue(ca.SECLTM, "depreciation_amortization"),
		analysis.ExtractSECValue(ca.SECLTM, "stock_based_compensation"),
	)

	s.runStage(ca, "ev_bridge", func() {
		if snap != nil {
			ca.EVBridge = analysis.BuildEVBridge(snap, ca.SECLTM, params.Policy)
		}
	})

	s.runStage(ca, "multiples", func() {
		var ev *models.ComputedValue
		if ca.EVBridge != nil {
			ev = ca.EVBridge.EnterpriseValue
		}
		ca.Multiples = analysis.ComputeMultiples(ev, snap, ca.SECLTM, adjusted)
	})

	s.runStage(ca, "growth", func() {
		if len(ca.SECLTM) > 0 && len(ca.SECLTMMinus1) > 0 {
			ca.Growth = analysis.ComputeGrowth(ca.SECLTM, ca.SECLTMMinus1)
		}
	})

	s.runStage(ca, "operating", func() {
		if len(ca.SECLTM) > 0 {
			ca.Operating = analysis.ComputeOperating(ca.SECLTM, snap, params.TaxRate)
		}
	})

	return ca
}

// runStage executes one analysis stage, converting a panic into a structured
// error entry so the remaining stages proceed.
func (s *Service) runStage(ca *models.CompanyAnalysis, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("symbol", ca.Symbol).
				Str("stage", stage).
				Interface("panic", r).
				Msg("Analysis stage failed")
			ca.Errors = append(ca.Errors, models.AnalysisError{
				Stage:   stage,
				Kind:    models.ErrorKindInternal,
				Message: fmt.Sprintf("%s computation failed: %v", stage, r),
			})
		}
	}()
	fn()
}

// classifyStreamError converts a stream failure into a structured entry.
// A deadline hit anywhere reads as a timeout; everything else is an upstream
// failure.
func classifyStreamError(ctx context.Context, stage string, err error) *models.AnalysisError {
	if err == nil {
		return nil
	}
	kind := models.ErrorKindUpstreamFailure
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = models.ErrorKindTimeout
	}
	return &models.AnalysisError{
		Stage:   stage,
		Kind:    kind,
		Message: err.Error(),
	}
}

// periodMinus1 maps a period selector to the same window shifted back one
// year: "ltm" -> "ltm-1", "annual:2024" -> "annual:2023".
func periodMinus1(period string) string {
	if period == "ltm" {
		return "ltm-1"
	}
	if year, ok := strings.CutPrefix(period, "annual:"); ok {
		if n, err := strconv.Atoi(year); err == nil {
			return fmt.Sprintf("annual:%d", n-1)
		}
	}
	return period + "-1"
}
