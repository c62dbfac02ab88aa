// internal/adapters/paystack/client.go
package paystack

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stayhub/internal/adapters/observability"
	"stayhub/internal/domain"
)

const service = "paystack"

type Client struct {
	base   string
	hc     *http.Client
	secret string
	rl     *rate.Limiter
}

func New(base, secret string, rps int, timeout time.Duration) (*Client, error) {
	if secret == "" {
		return nil, fmt.Errorf("paystack secret key is required")
	}
	if rps <= 0 {
		rps = 10
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		hc:     &http.Client{Timeout: timeout},
		secret: secret,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// envelope is the common Paystack response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string         `json:"status"`
	Reference string         `json:"reference"`
	Amount    int64          `json:"amount"`
	Metadata  map[string]any `json:"metadata"`
}

// ---- Public API ----

// InitializeTransaction is sent once; a duplicate reference would be
// rejected by the gateway, so it is never retried here.
func (c *Client) InitializeTransaction(ctx context.Context, req domain.InitTxRequest) (domain.InitTxResult, error) {
	body := map[string]any{
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"reference": req.Reference,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.InitTxResult{}, err
	}

	var env envelope
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", "initialize", payload, 1, &env); err != nil {
		return domain.InitTxResult{}, domain.Upstream("initialize transaction", err)
	}
	if !env.Status {
		return domain.InitTxResult{}, domain.Upstream("initialize transaction", fmt.Errorf("gateway refused: %s", env.Message))
	}
	var d initData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return domain.InitTxResult{}, domain.Upstream("initialize transaction", err)
	}
	if d.Reference == "" {
		d.Reference = req.Reference
	}
	return domain.InitTxResult{AuthorizationURL: d.AuthorizationURL, AccessCode: d.AccessCode, Reference: d.Reference}, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (domain.VerifyTxResult, error) {
	path := "/transaction/verify/" + url.PathEscape(reference)

	var env envelope
	if err := c.do(ctx, http.MethodGet, path, "verify", nil, 4, &env); err != nil {
		return domain.VerifyTxResult{}, domain.Upstream("verify transaction", err)
	}
	var d verifyData
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return domain.VerifyTxResult{}, domain.Upstream("verify transaction", err)
		}
	}
	var raw map[string]any
	_ = json.Unmarshal(env.Data, &raw)

	return domain.VerifyTxResult{
		Succeeded:   env.Status && d.Status == "success",
		Status:      d.Status,
		Reference:   d.Reference,
		AmountMinor: d.Amount,
		Metadata:    d.Metadata,
		Raw:         raw,
	}, nil
}

// ---- Internals ----

var (
	ErrNotFound     = errors.New("paystack: not found")
	ErrUnauthorized = errors.New("paystack: unauthorized")
)

// do sends one request with client-side rate limiting and decodes the JSON
// envelope into out. Up to attempts tries are made on 429/5xx and network
// errors, honoring Retry-After when provided.
func (c *Client) do(ctx context.Context, method, path, endpoint string, payload []byte, attempts int, out *envelope) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.secret)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "stayhub/1.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < attempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(service, endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < attempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// 400-class refusals carry {status:false, message}
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			var env envelope
			if json.Unmarshal(b, &env) == nil && env.Message != "" {
				return fmt.Errorf("bad status %d: %s", resp.StatusCode, env.Message)
			}
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
