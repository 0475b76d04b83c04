package contactverify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindContact_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/email-finder", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-KEY"))

		var fr FindRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fr))
		assert.Equal(t, "Jane Doe", fr.FullName)
		assert.Equal(t, "acme.com", fr.Domain)

		json.NewEncoder(w).Encode(Contact{
			Email:      "jane.doe@acme.com",
			EmailState: "valid",
			Score:      0.97,
			Phone:      "+1-555-0100",
			Charged:    true,
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.FindContact(context.Background(), FindRequest{FullName: "Jane Doe", Domain: "acme.com"})

	require.NoError(t, err)
	assert.Equal(t, "jane.doe@acme.com", got.Email)
	assert.Equal(t, "valid", got.EmailState)
	assert.True(t, got.Charged)
}

func TestFindContact_MissStillReportsCharge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"charged": true})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.FindContact(context.Background(), FindRequest{FullName: "Nobody", Domain: "acme.com"})

	require.NoError(t, err)
	assert.Empty(t, got.Email)
	assert.True(t, got.Charged, "a charged miss must be visible to the ledger")
}

func TestFindContact_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.FindContact(context.Background(), FindRequest{FullName: "Jane Doe", Domain: "acme.com"})

	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
}
