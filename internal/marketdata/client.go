package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/config"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/httputil"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/logger"
)

// FeedClient fetches daily settlement quotes from the market data
// provider. All provider HTTP calls go through this client.
type FeedClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	limiter    *rate.Limiter
	baseURL    string
	symbol     string
	priceType  string
}

// NewFeedClient creates a feed client from config
func NewFeedClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *FeedClient {
	perSecond := rate.Limit(float64(cfg.Feed.RatePerMinute) / 60.0)
	return &FeedClient{
		httpClient: httpClient,
		logger:     log,
		limiter:    rate.NewLimiter(perSecond, 1),
		baseURL:    cfg.Feed.BaseURL,
		symbol:     cfg.Feed.Symbol,
		priceType:  cfg.Feed.PriceType,
	}
}

// FetchSettlements fetches published settlement prices in [from, to].
// Days without a publication (weekends, exchange holidays) are simply
// absent from the result.
func (c *FeedClient) FetchSettlements(ctx context.Context, from, to time.Time) ([]contracts.SettlementPrice, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", c.symbol)
	params.Set("type", c.priceType)
	params.Set("from", from.Format(contracts.DateOnly))
	params.Set("to", to.Format(contracts.DateOnly))

	fullURL := fmt.Sprintf("%s/settlements?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	prices, err := c.parseSettlementTable(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": c.symbol,
		"from":   from.Format(contracts.DateOnly),
		"to":     to.Format(contracts.DateOnly),
		"count":  len(prices),
	}).Debug("Fetched settlement prices")
	return prices, nil
}

// parseSettlementTable parses the provider's quote table. Expected
// structure: a table.quotes-table whose rows carry a date cell and a
// settlement price cell.
func (c *FeedClient) parseSettlementTable(html string) ([]contracts.SettlementPrice, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	table := doc.Find("table.quotes-table")
	if table.Length() == 0 {
		return nil, fmt.Errorf("quote table not found in response")
	}

	dateRe := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	parsePrice := func(s string) (float64, bool) {
		s = strings.TrimSpace(s)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimPrefix(s, "$")
		if s == "" || s == "-" {
			return 0, false
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	var prices []contracts.SettlementPrice
	table.Find("tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !dateRe.MatchString(dateText) {
			return
		}
		day, err := time.Parse(contracts.DateOnly, dateText)
		if err != nil {
			return
		}

		price, ok := parsePrice(cells.Eq(1).Text())
		if !ok {
			return
		}

		prices = append(prices, contracts.SettlementPrice{
			Symbol:    c.symbol,
			PriceType: c.priceType,
			Date:      contracts.Day(day),
			PriceUSD:  price,
			Source:    "feed",
		})
	})

	return prices, nil
}
