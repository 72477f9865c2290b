package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluemoonski/bluemoon-data/internal/fetch"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

func testResort(url string) store.Resort {
	return store.Resort{ID: 1, Slug: "wolf-basin", Timezone: "UTC", SourceURL: url}
}

func TestFetchReport_ParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"date":"2026-01-15","runs":[
			{"name":"Jackpot","difficulty":"blue"},
			{"name":"Glades"},
			{"name":""}
		]}`))
	}))
	defer srv.Close()

	c := fetch.NewClient(5*time.Second, 600, nil)
	date, runs, err := c.FetchReport(context.Background(), testResort(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), date)
	require.Len(t, runs, 2, "nameless entries are dropped")
	assert.Equal(t, "Jackpot", runs[0].Name)
	require.NotNil(t, runs[0].Difficulty)
	assert.Equal(t, "blue", *runs[0].Difficulty)
	assert.Nil(t, runs[1].Difficulty)
}

func TestFetchReport_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := fetch.NewClient(5*time.Second, 600, nil)
	_, _, err := c.FetchReport(context.Background(), testResort(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchReport_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := fetch.NewClient(5*time.Second, 600, nil)
	_, _, err := c.FetchReport(context.Background(), testResort(srv.URL))
	require.Error(t, err)
}

func TestFetchReport_BadDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"date":"01/15/2026","runs":[]}`))
	}))
	defer srv.Close()

	c := fetch.NewClient(5*time.Second, 600, nil)
	_, _, err := c.FetchReport(context.Background(), testResort(srv.URL))
	require.Error(t, err)
}
