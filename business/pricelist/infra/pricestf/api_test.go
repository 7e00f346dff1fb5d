package pricestf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(discardWriter{}, logger.LevelError, "test", nil)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestAPI(t *testing.T, handler http.Handler) (*APIClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api, err := NewAPIClient(server.URL, 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	return api, server
}

func writeToken(w http.ResponseWriter, token string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"accessToken": token})
}

func TestAPIClient_RefreshToken(t *testing.T) {
	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/access", r.URL.Path)
		writeToken(w, "tok-1")
	}))

	token, err := api.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "tok-1", api.CachedToken())
}

func TestAPIClient_RefreshToken_EmptyToken(t *testing.T) {
	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "")
	}))

	_, err := api.RefreshToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperror.CodePricerAuthFailed, apperror.GetCode(err))
}

func TestAPIClient_GetPrice_RefreshesExpiredTokenOnce(t *testing.T) {
	var authCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/access", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, fmt.Sprintf("tok-%d", authCalls.Add(1)))
	})
	mux.HandleFunc("GET /prices/5002;6", func(w http.ResponseWriter, r *http.Request) {
		// The first token is stale; only the refreshed one passes.
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		half := int64(18)
		json.NewEncoder(w).Encode(priceRecord{
			SKU: "5002;6", BuyHalfScrap: &half, SellHalfScrap: &half,
			UpdatedAt: "2026-01-02T15:04:05Z",
		})
	})

	api, _ := newTestAPI(t, mux)

	record, err := api.GetPrice(context.Background(), "5002;6")
	require.NoError(t, err)
	assert.Equal(t, "5002;6", record.SKU)
	assert.Equal(t, int64(2), authCalls.Load())
	assert.Equal(t, "tok-2", api.CachedToken())
}

func TestAPIClient_GetPrice_PersistentUnauthorized(t *testing.T) {
	var priceCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/access", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok")
	})
	mux.HandleFunc("GET /prices/{sku}", func(w http.ResponseWriter, r *http.Request) {
		priceCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	api, _ := newTestAPI(t, mux)

	_, err := api.GetPrice(context.Background(), "5002;6")
	require.Error(t, err)
	assert.Equal(t, apperror.CodePricerUnauthorized, apperror.GetCode(err))
	assert.Equal(t, int64(2), priceCalls.Load(), "one refresh-and-retry, then give up")
}

func TestAPIClient_ServerErrorWaitsBeforeSurfacing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/access", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok")
	})
	mux.HandleFunc("GET /prices", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	api, _ := newTestAPI(t, mux)

	start := time.Now()
	_, err := api.GetPricelistPage(context.Background(), 1, 100)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, apperror.CodePricerServerError, apperror.GetCode(err))
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestAPIClient_ClientErrorSurfacesImmediately(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/access", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok")
	})
	mux.HandleFunc("GET /prices/{sku}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such item", http.StatusNotFound)
	})

	api, _ := newTestAPI(t, mux)

	_, err := api.GetPrice(context.Background(), "99999;6")
	require.Error(t, err)
	assert.Equal(t, apperror.CodePricerAPIError, apperror.GetCode(err))
	assert.Equal(t, http.StatusNotFound, apperror.StatusOf(err))
}

func TestAPIClient_RequestCheck(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/access", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok")
	})
	mux.HandleFunc("POST /prices/5021;6/refresh", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(refreshResponse{Enqueued: true})
	})

	api, _ := newTestAPI(t, mux)

	enqueued, err := api.RequestCheck(context.Background(), "5021;6")
	require.NoError(t, err)
	assert.True(t, enqueued)
}

func TestAPIClient_GetPricelistPage_Query(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/access", func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "tok")
	})
	mux.HandleFunc("GET /prices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(pageResponse{
			Meta: pageMeta{TotalPages: 5, CurrentPage: 3},
		})
	})

	api, _ := newTestAPI(t, mux)

	resp, err := api.GetPricelistPage(context.Background(), 3, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Meta.TotalPages)
}
