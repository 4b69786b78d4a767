package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionClient_ServerErrorIsNotTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := NewDecisionClient(srv.URL+"/", time.Second)

	res, err := c.Decide(context.Background(), "111", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.False(t, res.Granted)

	err = c.Probe(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestDecisionClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := NewDecisionClient(url, time.Second)

	_, err := c.Decide(context.Background(), "111", 1)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, c.Probe(context.Background()), ErrTransport)
}

func TestDecisionClient_GrantRequiresFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"access_granted":false}`))
	}))
	defer srv.Close()

	res, err := NewDecisionClient(srv.URL, time.Second).Decide(context.Background(), "111", 1)
	require.NoError(t, err)
	assert.False(t, res.Granted)
}
