package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_DrainsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	shuttingDown := make(chan struct{})
	ctxErr := make(chan error, 1)

	srv := newServer("0", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-shuttingDown
		time.Sleep(20 * time.Millisecond)
		ctxErr <- r.Context().Err()
		_, _ = io.WriteString(w, "done")
	}))
	srv.RegisterOnShutdown(func() { close(shuttingDown) })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()

	type result struct {
		status int
		body   string
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			resCh <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		resCh <- result{status: resp.StatusCode, body: string(b)}
	}()

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "done", res.body)
	assert.NoError(t, <-ctxErr)
}

func TestNewServer_Timeouts(t *testing.T) {
	srv := newServer("8080", http.NotFoundHandler())
	assert.Equal(t, ":8080", srv.Addr)
	assert.Nil(t, srv.BaseContext)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 15*time.Second, srv.WriteTimeout)
}
