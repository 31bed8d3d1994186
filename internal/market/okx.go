package market

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"algo_fleet/internal/models"
)

// ErrNoData: биржа не вернула ни одной закрытой свечи.
var ErrNoData = errors.New("no market data")

const (
	DefaultRESTURL       = "https://www.okx.com"
	maxCandlesPerRequest = 300
)

// Client: REST клиент публичных свечей OKX.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL string, rps float64, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultRESTURL
	}
	if rps <= 0 {
		rps = 10
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type candlesResp struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// Candles returns up to n closed candles, oldest first. The still-forming
// candle is dropped.
func (c *Client) Candles(ctx context.Context, instID, timeframe string, n int) ([]models.Bar, error) {
	bar, err := okxBar(timeframe)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 100
	}

	// OKX отдаёт newest-first; листаем назад через after
	var newest []models.Bar
	after := ""
	for len(newest) < n {
		limit := min(n-len(newest)+1, maxCandlesPerRequest)
		page, raw, err := c.candlesPage(ctx, instID, bar, limit, after)
		if err != nil {
			return nil, err
		}
		if len(page) > 0 {
			after = strconv.FormatInt(page[len(page)-1].Start.UnixMilli(), 10)
		}
		newest = append(newest, page...)
		if raw < limit || len(page) == 0 {
			break
		}
	}
	if len(newest) == 0 {
		return nil, errors.Wrapf(ErrNoData, "%s %s", instID, bar)
	}
	if len(newest) > n {
		newest = newest[:n]
	}

	out := make([]models.Bar, len(newest))
	for i, b := range newest {
		out[len(newest)-1-i] = b
	}
	return out, nil
}

func (c *Client) candlesPage(ctx context.Context, instID, bar string, limit int, after string) ([]models.Bar, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, errors.Wrap(err, "rate limit wait")
	}

	q := url.Values{}
	q.Set("instId", instID)
	q.Set("bar", bar)
	q.Set("limit", strconv.Itoa(limit))
	if after != "" {
		q.Set("after", after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v5/market/candles?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "new candles request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "get candles %s", instID)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "read candles body")
	}
	if resp.StatusCode/100 != 2 {
		return nil, 0, errors.Errorf("okx candles http %d: %s", resp.StatusCode, string(b))
	}

	var r candlesResp
	if err := sonic.Unmarshal(b, &r); err != nil {
		return nil, 0, errors.Wrap(err, "decode candles")
	}
	if r.Code != "0" {
		return nil, 0, errors.Errorf("okx candles error: code=%s msg=%s", r.Code, r.Msg)
	}

	out := make([]models.Bar, 0, len(r.Data))
	for _, row := range r.Data {
		b, confirmed, ok := parseRow(row)
		if !ok || !confirmed {
			continue
		}
		out = append(out, b)
	}
	return out, len(r.Data), nil
}

// parseRow разбирает строку [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm].
func parseRow(row []string) (models.Bar, bool, bool) {
	if len(row) < 6 {
		return models.Bar{}, false, false
	}
	tsMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Bar{}, false, false
	}
	open, err1 := strconv.ParseFloat(row[1], 64)
	high, err2 := strconv.ParseFloat(row[2], 64)
	low, err3 := strconv.ParseFloat(row[3], 64)
	closep, err4 := strconv.ParseFloat(row[4], 64)
	vol, err5 := strconv.ParseFloat(row[5], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || closep <= 0 {
		return models.Bar{}, false, false
	}

	// confirm всегда в последнем элементе, не хардкодим индекс 8
	confirmed := len(row) < 9 || row[len(row)-1] == "1"
	return models.Bar{
		Start:  time.UnixMilli(tsMs).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closep,
		Volume: vol,
	}, confirmed, true
}
