package soquetic_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soquetic/soquetic-go/internal/sio/siotest"
	"github.com/soquetic/soquetic-go/pkg/soquetic"
)

func startClient(t *testing.T, srv *siotest.Server, opts soquetic.Options) *soquetic.Client {
	t.Helper()
	opts.ReconnectDelay = 10 * time.Millisecond
	opts.ReconnectDelayMax = 40 * time.Millisecond
	opts.HandshakeTimeout = time.Second
	c := soquetic.New(opts)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Connect(srv.Port()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitConnected(ctx))
	return c
}

func ok(data any) []any {
	return []any{map[string]any{"status": 200, "data": data}}
}

func TestRoundTrip(t *testing.T) {
	srv := siotest.NewServer()
	defer srv.Close()

	srv.Handle("GET:users", func(args []json.RawMessage) []any {
		var req soquetic.Request
		_ = json.Unmarshal(args[0], &req)
		if req.Query["active"] != "true" {
			return []any{map[string]any{"status": 400, "message": "active required"}}
		}
		return ok([]string{"ana", "bob"})
	})
	srv.Handle("POST:users", func(args []json.RawMessage) []any {
		var req struct {
			Data struct {
				Name string `json:"name"`
			} `json:"data"`
		}
		_ = json.Unmarshal(args[0], &req)
		return ok(map[string]any{"id": 1, "name": req.Data.Name})
	})

	var (
		mu   sync.Mutex
		errs []error
	)
	c := startClient(t, srv, soquetic.Options{OnError: func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	users, err := c.Get(ctx, "users?active=true")
	require.NoError(t, err)
	assert.JSONEq(t, `["ana","bob"]`, users.String())

	created, err := c.Post(ctx, "users", map[string]string{"name": "eve"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"eve"}`, created.String())

	_, err = c.Get(ctx, "users")
	var remote *soquetic.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 400, remote.Status)
	assert.Equal(t, "active required", remote.Message)

	got := make(chan soquetic.Data, 1)
	require.NoError(t, c.GetEvent("users?active=true", func(d soquetic.Data) { got <- d }))
	select {
	case d := <-got:
		assert.JSONEq(t, `["ana","bob"]`, d.String())
	case <-time.After(2 * time.Second):
		t.Fatal("no GetEvent response")
	}

	require.NoError(t, c.GetEvent("users", func(soquetic.Data) { t.Error("callback on failed response") }))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	events := srv.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "GET:users", events[0].Name)
	assert.JSONEq(t, `{"query":{"active":"true"}}`, string(events[0].Args[0]))
	assert.True(t, events[0].HasID)
}

func TestRealTimeBroadcast(t *testing.T) {
	srv := siotest.NewServer()
	defer srv.Close()
	c := startClient(t, srv, soquetic.Options{})

	got := make(chan string, 4)
	require.NoError(t, c.SubscribeRealTimeEvent("chat", func(d soquetic.Data) { got <- "a:" + d.String() }))
	require.NoError(t, c.SubscribeRealTimeEvent("chat", func(d soquetic.Data) { got <- "b:" + d.String() }))

	require.NoError(t, srv.Broadcast("RT:chat", map[string]string{"text": "hi"}))
	require.NoError(t, srv.Broadcast("RT:other", 1))

	for _, want := range []string{`a:{"text":"hi"}`, `b:{"text":"hi"}`} {
		select {
		case s := <-got:
			assert.Equal(t, want, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing %s", want)
		}
	}
	select {
	case s := <-got:
		t.Fatalf("unexpected delivery %s", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPendingRequestFailsOnDrop(t *testing.T) {
	srv := siotest.NewServer()
	defer srv.Close()
	c := startClient(t, srv, soquetic.Options{})

	// без обработчика сервер не отвечает на ack
	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "slow")
		done <- err
	}()
	require.Eventually(t, func() bool { return len(srv.Events()) == 1 }, 2*time.Second, 5*time.Millisecond)
	srv.Drop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, soquetic.ErrConnectionLost)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request was not failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitConnected(ctx))
	assert.Equal(t, 2, srv.Sessions())
}

func TestNotConnectedBeforeConnect(t *testing.T) {
	c := soquetic.New(soquetic.Options{})
	assert.False(t, c.Connected())
	assert.Equal(t, soquetic.StateIdle, c.State())
	assert.ErrorIs(t, c.GetEvent("users", func(soquetic.Data) {}), soquetic.ErrNotConnected)
}

func TestConnectRefused(t *testing.T) {
	srv := siotest.NewServer()
	port := srv.Port()
	srv.Close()

	c := soquetic.New(soquetic.Options{DisableReconnect: true, HandshakeTimeout: time.Second})
	defer c.Close()
	require.NoError(t, c.Connect(port))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.ErrorIs(t, c.WaitConnected(ctx), soquetic.ErrConnectionFailed)
	assert.False(t, c.Connected())
}

func TestReconnectAfterClose(t *testing.T) {
	srv := siotest.NewServer()
	defer srv.Close()
	c := startClient(t, srv, soquetic.Options{})
	require.NoError(t, c.Close())

	for i := 0; i < 20; i++ {
		require.NoError(t, c.Connect(srv.Port()))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.WaitConnected(ctx)
		cancel()
		require.NoError(t, err, "iteration %d", i)
		assert.True(t, c.Connected())
		require.NoError(t, c.Close())
	}
}

func TestRetryAfterRejectedConnect(t *testing.T) {
	srv := siotest.NewServer()
	defer srv.Close()
	srv.Reject("maintenance")

	c := soquetic.New(soquetic.Options{DisableReconnect: true, HandshakeTimeout: time.Second})
	defer c.Close()

	require.NoError(t, c.Connect(srv.Port()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.WaitConnected(ctx)
	assert.ErrorIs(t, err, soquetic.ErrConnectionFailed)
	assert.ErrorContains(t, err, "maintenance")

	srv.Reject("")
	require.NoError(t, c.Connect(srv.Port()))
	require.NoError(t, c.WaitConnected(ctx))
	assert.Equal(t, 1, srv.Sessions())
}

func TestGetInsideCallbackTimesOut(t *testing.T) {
	srv := siotest.NewServer()
	defer srv.Close()
	srv.Handle("GET:users", func(args []json.RawMessage) []any { return ok(1) })
	c := startClient(t, srv, soquetic.Options{})

	// ответ читает та же горутина, что сейчас выполняет callback
	done := make(chan error, 1)
	require.NoError(t, c.SubscribeRealTimeEvent("chat", func(soquetic.Data) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.Get(ctx, "users")
		done <- err
	}))
	require.NoError(t, srv.Broadcast("RT:chat", "hi"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not finish")
	}

	// вне callback'а тот же запрос проходит
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Get(ctx, "users")
	assert.NoError(t, err)
}
