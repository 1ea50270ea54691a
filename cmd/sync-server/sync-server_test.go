package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServeDrainsInFlightRequests(t *testing.T) {
	addr := freeAddr(t)

	started := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Write([]byte("done"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- serve(ctx, srv, zap.NewNop()) }()

	var resp *http.Response
	reqDone := make(chan error, 1)
	go func() {
		for i := 0; i < 100; i++ {
			r, err := http.Get("http://" + addr + "/slow")
			if err == nil {
				resp = r
				reqDone <- nil
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		reqDone <- errors.New("server never accepted the request")
	}()
	<-started

	cancel()

	select {
	case <-serveDone:
		t.Fatal("serve returned while a request was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-reqDone)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "done", string(body))

	require.NoError(t, <-serveDone, "a drained shutdown is a clean exit")
}

func TestServeReportsBindFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{Addr: l.Addr().String()}
	require.Error(t, serve(ctx, srv, zap.NewNop()))
}
