package peopledata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichPerson_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/person/enrich", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "Jane Doe", r.URL.Query().Get("name"))
		assert.Equal(t, "Acme Corp", r.URL.Query().Get("company"))

		json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"data": Person{
				ID:          "pdl-1",
				FullName:    "Jane Doe",
				Title:       "Chief Financial Officer",
				Company:     "Acme Corp",
				Emails:      []string{"jane@acme.com"},
				Connections: 1200,
				Experience: []Experience{
					{Title: "VP Finance", Company: "Globex", StartDate: "2018-01", EndDate: "2022-06"},
				},
				Likelihood: 0.92,
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.EnrichPerson(context.Background(), PersonQuery{Name: "Jane Doe", Company: "Acme Corp"})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Chief Financial Officer", got.Title)
	assert.Equal(t, []string{"jane@acme.com"}, got.Emails)
	assert.Len(t, got.Experience, 1)
	assert.InDelta(t, 0.92, got.Likelihood, 0.001)
}

func TestEnrichPerson_NoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.EnrichPerson(context.Background(), PersonQuery{Name: "Nobody"})

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEnrichPerson_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.EnrichPerson(context.Background(), PersonQuery{Name: "Jane Doe"})

	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
}
