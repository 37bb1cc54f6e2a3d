package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/db"
	"github.com/ether/easysync/lib/events"
	modelpad "github.com/ether/easysync/lib/models/pad"
	"github.com/ether/easysync/lib/models/ws"
	"github.com/ether/easysync/lib/server"
	"github.com/ether/easysync/lib/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	*server.Server
	baseURL string
}

// startServer serves an in-memory pad server until the test ends.
func startServer(t *testing.T) *testServer {
	t.Helper()
	s := server.New(&settings.Settings{
		IP:                 "127.0.0.1",
		DBType:             settings.MEMORY,
		DefaultPadText:     "hello",
		PadTextMaxLength:   10000,
		SocketIo:           settings.SocketIoSettings{MaxHttpBufferSize: 50000},
		CommitRateLimiting: settings.CommitRateLimiting{Duration: 1, Points: 1000},
	}, db.NewMemoryDataStore(), events.NopDispatcher{}, zap.NewNop().Sugar())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- s.Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-served:
		case <-time.After(10 * time.Second):
			t.Error("server did not shut down")
		}
	})

	baseURL := fmt.Sprintf("http://%s", listener.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	return &testServer{Server: s, baseURL: baseURL}
}

func (s *testServer) padURL(padId string) string {
	return s.baseURL + "/p/" + padId
}

func (s *testServer) padText(t *testing.T, padId string) string {
	t.Helper()
	var text string
	require.NoError(t, s.PadManager.ReadPad(padId, func(p *modelpad.Pad) error {
		text = p.Text()
		return nil
	}))
	return text
}

func randomPadId() string {
	return gofakeit.LetterN(10)
}

// join connects a client to padId and waits for the pad to load.
func join(t *testing.T, s *testServer, padId string) *Client {
	t.Helper()
	client, err := NewClient(s.padURL(padId), zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() {
		_ = client.Close()
	})
	select {
	case <-client.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("pad did not load")
	}
	return client
}

func waitSettled(t *testing.T, client *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.WaitSettled(ctx))
}

func TestParsePadURL(t *testing.T) {
	testCases := []struct {
		name      string
		url       string
		wantWsURL string
		wantPadId string
	}{
		{name: "http", url: "http://127.0.0.1:9001/p/test", wantWsURL: "ws://127.0.0.1:9001/socket.io/", wantPadId: "test"},
		{name: "https", url: "https://pads.example.com/p/notes", wantWsURL: "wss://pads.example.com/socket.io/", wantPadId: "notes"},
		{name: "path prefix", url: "http://example.com/easysync/p/test/", wantWsURL: "ws://example.com/easysync/socket.io/", wantPadId: "test"},
		{name: "websocket scheme", url: "ws://example.com/p/test", wantWsURL: "ws://example.com/socket.io/", wantPadId: "test"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wsURL, padId, err := ParsePadURL(tc.url)
			require.NoError(t, err)
			assert.Equal(t, tc.wantWsURL, wsURL)
			assert.Equal(t, tc.wantPadId, padId)
		})
	}
}

func TestParsePadURLWithoutPad(t *testing.T) {
	wsURL, padId, err := ParsePadURL("http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/socket.io/", wsURL)
	assert.NotEmpty(t, padId)
}

func TestParsePadURLRejectsBadURLs(t *testing.T) {
	for _, rawURL := range []string{"ftp://example.com/p/test", "http:///p/test", "://"} {
		_, _, err := ParsePadURL(rawURL)
		assert.Error(t, err, rawURL)
	}
}

func TestTransformX(t *testing.T) {
	client, server, err := transformX("Z:1>1+1$a", "Z:1>1+1$b", nil)
	require.NoError(t, err)
	assert.Equal(t, "Z:2>1=1+1$a", client)
	assert.Equal(t, "Z:2>1+1$b", server)
}

func TestClientLoadsPad(t *testing.T) {
	s := startServer(t)
	padId := randomPadId()

	client, err := NewClient(s.padURL(padId), zap.NewNop().Sugar())
	require.NoError(t, err)
	connected := make(chan int, 1)
	client.OnNumConnectedUsers(func(count int) {
		connected <- count
	})
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	select {
	case count := <-connected:
		assert.Equal(t, 1, count)
	case <-time.After(5 * time.Second):
		t.Fatal("pad did not load")
	}
	assert.Equal(t, "hello\n", client.Text())
	assert.Equal(t, 0, client.Rev())
	assert.Equal(t, padId, client.PadId())
	assert.True(t, strings.HasPrefix(client.UserId(), "a."))
	assert.False(t, client.Pending())
}

func TestClientAppend(t *testing.T) {
	s := startServer(t)
	padId := randomPadId()
	client := join(t, s, padId)

	accepted := make(chan int, 1)
	client.OnAcceptCommit(func(rev int) {
		accepted <- rev
	})
	require.NoError(t, client.Append(" world"))
	assert.Equal(t, "hello world\n", client.Text())
	waitSettled(t, client)

	assert.Equal(t, 1, <-accepted)
	assert.Equal(t, 1, client.Rev())
	assert.Equal(t, "hello world\n", s.padText(t, padId))
}

func TestClientSpliceText(t *testing.T) {
	s := startServer(t)
	padId := randomPadId()
	client := join(t, s, padId)

	require.NoError(t, client.SpliceText(0, 1, "J"))
	require.NoError(t, client.SpliceText(5, 0, "!"))
	assert.Equal(t, "Jello!\n", client.Text())
	waitSettled(t, client)
	assert.Equal(t, "Jello!\n", s.padText(t, padId))

	atext := client.AText()
	assert.Equal(t, "Jello!\n", atext.Text)
	assert.NotEmpty(t, atext.Attribs)
}

func TestClientRejectsBadSplices(t *testing.T) {
	s := startServer(t)
	client := join(t, s, randomPadId())

	assert.ErrorIs(t, client.SpliceText(5, 1, ""), ErrOutOfRange)
	assert.ErrorIs(t, client.SpliceText(-1, 0, "x"), ErrOutOfRange)
	assert.ErrorIs(t, client.SpliceText(2, -1, "x"), ErrOutOfRange)
	assert.ErrorIs(t, client.SpliceText(7, 0, "x"), ErrOutOfRange)
	assert.NoError(t, client.SpliceText(2, 0, ""))
	assert.False(t, client.Pending())
}

func TestClientEditsBeforeLoad(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1/p/test", zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.ErrorIs(t, client.Append("x"), ErrNotReady)

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Append("x"), ErrClosed)
}

func TestClientReceivesChangesOfOthers(t *testing.T) {
	s := startServer(t)
	padId := randomPadId()
	writer := join(t, s, padId)
	reader := join(t, s, padId)

	contents := make(chan apool.AText, 10)
	reader.OnNewContents(func(atext apool.AText) {
		contents <- atext
	})

	require.NoError(t, writer.Append(", reader"))
	select {
	case atext := <-contents:
		assert.Equal(t, "hello, reader\n", atext.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("reader got no changes")
	}
	assert.Equal(t, 1, reader.Rev())
}

func TestConcurrentEditsConverge(t *testing.T) {
	s := startServer(t)
	padId := randomPadId()
	first := join(t, s, padId)
	second := join(t, s, padId)

	for i := 0; i < 5; i++ {
		require.NoError(t, first.SpliceText(0, 0, "A"))
		require.NoError(t, second.Append("B"))
	}
	waitSettled(t, first)
	waitSettled(t, second)

	require.Eventually(t, func() bool {
		serverText := s.padText(t, padId)
		return first.Text() == serverText && second.Text() == serverText
	}, 5*time.Second, 10*time.Millisecond)

	text := first.Text()
	assert.Equal(t, 5, strings.Count(text, "A"))
	assert.Equal(t, 5, strings.Count(text, "B"))
	assert.True(t, strings.HasPrefix(text, "AAAAAhello"))
	assert.True(t, strings.HasSuffix(text, "BBBBB\n"))
}

func TestClientIsKickedWhenPadIsDeleted(t *testing.T) {
	s := startServer(t)
	padId := randomPadId()
	client := join(t, s, padId)

	disconnected := make(chan error, 1)
	client.OnDisconnect(func(err error) {
		disconnected <- err
	})
	s.Handler.KickSessionsFromPad(padId)

	select {
	case err := <-disconnected:
		var disconnectErr *DisconnectError
		require.True(t, errors.As(err, &disconnectErr))
		assert.Equal(t, ws.DisconnectDeleted, disconnectErr.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("client was not disconnected")
	}
	<-client.Done()
	assert.ErrorIs(t, client.Append("x"), ErrClosed)
}

func TestClientClose(t *testing.T) {
	s := startServer(t)
	client := join(t, s, randomPadId())

	disconnected := make(chan error, 1)
	client.OnDisconnect(func(err error) {
		disconnected <- err
	})
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	assert.NoError(t, <-disconnected)
	<-client.Done()
	assert.NoError(t, client.Err())
}

func TestCallbackCanRegisterCallbacks(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:9001/p/test", zap.NewNop().Sugar())
	require.NoError(t, err)

	var seen []int
	client.OnAcceptCommit(func(rev int) {
		seen = append(seen, rev)
		client.OnAcceptCommit(func(rev int) {
			seen = append(seen, -rev)
		})
	})

	done := make(chan struct{})
	go func() {
		emit(client, &client.onAcceptCommit, 1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("emit blocked on a callback registering another callback")
	}
	assert.Equal(t, []int{1}, seen)

	emit(client, &client.onAcceptCommit, 2)
	assert.Equal(t, []int{1, 2, -2}, seen)
}

func TestConnectFailsWithoutServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	client, err := NewClient(fmt.Sprintf("http://%s/p/test", addr), zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Error(t, client.Connect(context.Background()))
}
