// Package pricestf implements the price feed client against the prices.tf
// service: REST fetches for snapshots and single items, and the streaming
// socket for push updates.
package pricestf

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/httpclient"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

// APIClient talks to the upstream REST API. The bearer token is obtained
// lazily; a 401 triggers exactly one refresh-and-retry per call.
type APIClient struct {
	http             httpclient.Client
	log              logger.LoggerInterface
	serverErrorDelay time.Duration

	tokenMu sync.Mutex
	token   string
}

// NewAPIClient builds the REST client on the instrumented HTTP client.
func NewAPIClient(baseURL string, serverErrorDelay time.Duration, log logger.LoggerInterface) (*APIClient, error) {
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithProviderName("prices-tf"),
		httpclient.WithRequestTimeout(30*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &APIClient{
		http:             client,
		log:              log,
		serverErrorDelay: serverErrorDelay,
	}, nil
}

// RefreshToken fetches a fresh access token and caches it.
func (c *APIClient) RefreshToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	var access accessResponse
	resp, err := c.http.NewRequest().
		SetResult(&access).
		Post(ctx, "/auth/access")
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodePricerAuthFailed, "auth request")
	}
	if resp.IsError() || access.AccessToken == "" {
		return "", apperror.New(apperror.CodePricerAuthFailed,
			apperror.WithContext(fmt.Sprintf("auth returned status %d", resp.StatusCode)))
	}
	c.token = access.AccessToken
	return c.token, nil
}

// CachedToken returns the current token without fetching. Empty before the
// first auth round-trip.
func (c *APIClient) CachedToken() string {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.token
}

func (c *APIClient) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	token := c.token
	c.tokenMu.Unlock()
	if token != "" {
		return token, nil
	}
	return c.RefreshToken(ctx)
}

// GetPrice fetches the current price record for one SKU.
func (c *APIClient) GetPrice(ctx context.Context, sku string) (priceRecord, error) {
	var record priceRecord
	err := c.send(ctx, http.MethodGet, "/prices/"+sku, nil, &record)
	return record, err
}

// GetPricelistPage fetches one snapshot page.
func (c *APIClient) GetPricelistPage(ctx context.Context, page, limit int) (pageResponse, error) {
	var resp pageResponse
	query := map[string]string{
		"page":  fmt.Sprintf("%d", page),
		"limit": fmt.Sprintf("%d", limit),
	}
	err := c.send(ctx, http.MethodGet, "/prices", query, &resp)
	return resp, err
}

// RequestCheck asks the upstream to re-price a SKU.
func (c *APIClient) RequestCheck(ctx context.Context, sku string) (bool, error) {
	var resp refreshResponse
	if err := c.send(ctx, http.MethodPost, "/prices/"+sku+"/refresh", nil, &resp); err != nil {
		return false, err
	}
	return resp.Enqueued, nil
}

// send executes one authenticated request. 401 refreshes the token and
// retries once; 5xx waits a fixed delay before surfacing the error as light
// backpressure on the retry layer above.
func (c *APIClient) send(ctx context.Context, method, path string, query map[string]string, result any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		req := c.http.NewRequest().
			SetHeader("Authorization", "Bearer "+token).
			SetResult(result)
		for k, v := range query {
			req.SetQueryParam(k, v)
		}

		var resp *httpclient.Response
		switch method {
		case http.MethodGet:
			resp, err = req.Get(ctx, path)
		case http.MethodPost:
			resp, err = req.Post(ctx, path)
		default:
			return apperror.New(apperror.CodeInternalError,
				apperror.WithContext("unsupported method "+method))
		}
		if err != nil {
			return apperror.Wrap(err, apperror.CodePricerFetchFailed, method+" "+path)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && attempt == 0:
			token, err = c.RefreshToken(ctx)
			if err != nil {
				return err
			}
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return apperror.New(apperror.CodePricerUnauthorized,
				apperror.WithContext(method+" "+path))
		case resp.StatusCode >= http.StatusInternalServerError:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.serverErrorDelay):
			}
			return apperror.New(apperror.CodePricerServerError,
				apperror.WithContext(fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)))
		case resp.IsError():
			return apperror.New(apperror.CodePricerAPIError,
				apperror.WithStatusCode(resp.StatusCode),
				apperror.WithContext(fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, resp.String())))
		}
		return nil
	}
}
