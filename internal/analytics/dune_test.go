package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuneClient_QueryOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query/get_gas_regime", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Dune-API-Key"))

		var req duneRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "get_gas_regime", req.Method)

		json.NewEncoder(w).Encode(duneResponse{Rows: Rows{{"median_gwei": 25.0}}})
	}))
	defer srv.Close()

	client := NewDuneClient(srv.URL, "secret", 5*time.Second, nil)
	rows, err := client.Query(context.Background(), "get_gas_regime", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 25.0, rows[0]["median_gwei"])
}

func TestDuneClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(duneResponse{Error: "invalid api key"})
	}))
	defer srv.Close()

	client := NewDuneClient(srv.URL, "bad", 5*time.Second, nil)
	_, err := client.Query(context.Background(), "get_gas_regime", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestDuneClient_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewDuneClient(srv.URL, "key", 5*time.Second, nil)
	_, err := client.Query(context.Background(), "get_gas_regime", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http status 502")
}

func TestDuneClient_BreakerRejectsWhenOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewDuneClient(srv.URL, "key", 5*time.Second, nil)
	client.SetBreaker(circuitbreaker.New(circuitbreaker.Config{Name: "dune", FailureThreshold: 2}))

	for i := 0; i < 2; i++ {
		_, err := client.Query(context.Background(), "get_gas_regime", nil)
		require.Error(t, err)
	}

	_, err := client.Query(context.Background(), "get_gas_regime", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}
