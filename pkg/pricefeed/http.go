package pricefeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// HTTPSource reads prices from a JSON endpoint shaped like
//
//	{"<id>": {"usd": 0.02, "usd_24h_change": -1.5}, ...}
//
// IDs maps token symbols to the endpoint's asset ids.
type HTTPSource struct {
	client  *retryablehttp.Client
	baseURL string
	ids     map[string]string
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source. The ids query parameter is appended to
// baseURL as a comma-separated list.
func NewHTTPSource(baseURL string, ids map[string]string, retryMax int, timeout time.Duration) (*HTTPSource, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("pricefeed: invalid url %q: %w", baseURL, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("pricefeed: at least one asset id is required")
	}
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	norm := make(map[string]string, len(ids))
	for sym, id := range ids {
		norm[strings.ToUpper(sym)] = id
	}
	return &HTTPSource{client: client, baseURL: baseURL, ids: norm}, nil
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, symbols []string) (map[string]Price, error) {
	// several symbols may share one asset id (FLR and WFLR)
	wanted := make(map[string][]string)
	var idList []string
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		id, ok := s.ids[sym]
		if !ok {
			continue
		}
		if _, seen := wanted[id]; !seen {
			idList = append(idList, id)
		}
		wanted[id] = append(wanted[id], sym)
	}
	if len(idList) == 0 {
		return map[string]Price{}, nil
	}

	reqURL, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}
	q := reqURL.Query()
	q.Set("ids", strings.Join(idList, ","))
	reqURL.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("pricefeed: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricefeed: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricefeed: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pricefeed: read body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("pricefeed: response is not valid JSON")
	}

	out := make(map[string]Price)
	for _, id := range idList {
		node := gjson.GetBytes(body, gjson.Escape(id))
		usd := node.Get("usd")
		if !usd.Exists() {
			continue
		}
		p := Price{USD: decimal.NewFromFloat(usd.Float())}
		if ch := node.Get("usd_24h_change"); ch.Exists() {
			p.Change24h = decimal.NewFromFloat(ch.Float())
		}
		for _, sym := range wanted[id] {
			out[sym] = p
		}
	}
	return out, nil
}
