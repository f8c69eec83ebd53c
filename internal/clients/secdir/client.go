// Package secdir serves SEC XBRL metric sets from a directory of JSON
// documents, one file per symbol. It stands in for the external extraction
// library in the CLI and in tests; the engine only sees the SECClient
// contract.
package secdir

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bobmcallan/handspread/internal/common"
	"github.com/bobmcallan/handspread/internal/interfaces"
	"github.com/bobmcallan/handspread/internal/models"
)

// document is the on-disk shape of one symbol's metric sets:
// entity metadata plus cited values grouped by period selector.
type document struct {
	EntityName    string                                   `json:"entity_name"`
	CIK           string                                   `json:"cik"`
	FiscalYearEnd string                                   `json:"fiscal_year_end"`
	Periods       map[string]map[string]*models.CitedValue `json:"periods"`
}

// Client implements the SECClient interface over a fixture directory.
type Client struct {
	dir    string
	logger *common.Logger

	mu   sync.RWMutex
	docs map[string]*document
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client reading <SYMBOL>.json documents under dir.
func NewClient(dir string, opts ...ClientOption) *Client {
	c := &Client{
		dir:    dir,
		logger: common.NewSilentLogger(),
		docs:   make(map[string]*document),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ interfaces.SECClient = (*Client)(nil)

// GetCompanyMetrics returns the cited metrics for a symbol and period.
// Unknown symbols and periods are errors; the engine records them as
// upstream failures on the affected ticker.
func (c *Client) GetCompanyMetrics(ctx context.Context, symbol, period string) (*models.SECResult, error) {
	doc, err := c.load(ctx, symbol)
	if err != nil {
		return nil, err
	}

	metrics, ok := doc.Periods[period]
	if !ok {
		return nil, fmt.Errorf("period %q not available for %s", period, strings.ToUpper(symbol))
	}

	return &models.SECResult{
		EntityName:    doc.EntityName,
		CIK:           doc.CIK,
		FiscalYearEnd: doc.FiscalYearEnd,
		Metrics:       metrics,
	}, nil
}

// GetCompanyName returns the registrant name for a symbol.
func (c *Client) GetCompanyName(ctx context.Context, symbol string) (string, error) {
	doc, err := c.load(ctx, symbol)
	if err != nil {
		return "", err
	}
	return doc.EntityName, nil
}

// load reads and caches the document for a symbol. Documents are immutable
// fixtures, so a cached entry never expires.
func (c *Client) load(ctx context.Context, symbol string) (*document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := strings.ToUpper(strings.TrimSpace(symbol))
	if key == "" {
		return nil, fmt.Errorf("symbol required")
	}

	c.mu.RLock()
	doc, ok := c.docs[key]
	c.mu.RUnlock()
	if ok {
		return doc, nil
	}

	path := filepath.Join(c.dir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no SEC data for %s: %w", key, err)
	}

	doc = &document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse SEC data for %s: %w", key, err)
	}

	c.logger.Debug().Str("symbol", key).Str("path", path).Msg("Loaded SEC metric document")

	c.mu.Lock()
	c.docs[key] = doc
	c.mu.Unlock()

	return doc, nil
}
