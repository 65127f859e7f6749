package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func drain(ch chan string) []string {
	var out []string
	for {
		select {
		case line, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, line)
		default:
			return out
		}
	}
}

func TestSerialMux_SubscribeUnique(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, SubscriberBuffer, cap(ch1))
	assert.NotNil(t, ch2)
	assert.Equal(t, 2, mux.Stats().Subscribers)
}

func TestSerialMux_Unsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	id, ch := mux.Subscribe()

	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	// Unknown ids are ignored.
	mux.Unsubscribe("missing")
	assert.Equal(t, 0, mux.Stats().Subscribers)
}

func TestSerialMux_MonitorFansOut(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("first\r\n\n   \nsecond\nthird"))
	mux := NewSerialMux(port)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))

	want := []string{"first", "second", "third"}
	assert.Equal(t, want, drain(a))
	assert.Equal(t, want, drain(b))
	assert.Equal(t, uint64(3), mux.Stats().Lines)
}

func TestSerialMux_MonitorCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, mux.Close())
}

func TestSerialMux_MonitorDropsForSlowSubscriber(t *testing.T) {
	port := NewTestableSerialPort()
	var sb strings.Builder
	for i := 0; i < SubscriberBuffer+44; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	port.AddReadData([]byte(sb.String()))
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))

	st := mux.Stats()
	assert.Equal(t, uint64(SubscriberBuffer+44), st.Lines)
	assert.Equal(t, uint64(44), st.Dropped)
	got := drain(ch)
	require.Len(t, got, SubscriberBuffer)
	assert.Equal(t, "line 0", got[0])
}

func TestSerialMux_PrimarySubscriberIsLossless(t *testing.T) {
	port := NewTestableSerialPort()
	const n = SubscriberBuffer + 44
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	port.AddReadData([]byte(sb.String()))
	mux := NewSerialMux(port)
	_, lossy := mux.Subscribe()
	_, primary := mux.SubscribePrimary()
	assert.Equal(t, 2, mux.Stats().Subscribers)

	got := make(chan []string, 1)
	go func() {
		var lines []string
		for line := range primary {
			time.Sleep(10 * time.Microsecond)
			lines = append(lines, line)
		}
		got <- lines
	}()

	require.NoError(t, mux.Monitor(context.Background()))
	st := mux.Stats()
	assert.Equal(t, uint64(n), st.Lines)
	assert.Equal(t, uint64(44), st.Dropped)
	assert.Len(t, drain(lossy), SubscriberBuffer)

	require.NoError(t, mux.Close())
	lines := <-got
	require.Len(t, lines, n)
	assert.Equal(t, "line 0", lines[0])
	assert.Equal(t, fmt.Sprintf("line %d", n-1), lines[n-1])
}

func TestSerialMux_UnsubscribePrimaryReleasesMonitor(t *testing.T) {
	port := NewTestableSerialPort()
	var sb strings.Builder
	for i := 0; i < SubscriberBuffer+10; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	port.AddReadData([]byte(sb.String()))
	mux := NewSerialMux(port)
	id, primary := mux.SubscribePrimary()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	// The line after a full buffer waits for the primary subscriber.
	require.Eventually(t, func() bool { return mux.Stats().Lines == SubscriberBuffer+1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("Monitor returned while a primary subscriber was behind")
	case <-time.After(20 * time.Millisecond):
	}

	mux.Unsubscribe(id)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not resume after Unsubscribe")
	}
	assert.Len(t, drain(primary), SubscriberBuffer)
	assert.Equal(t, uint64(0), mux.Stats().Dropped)
}

func TestSerialMux_CloseReleasesBlockedPrimary(t *testing.T) {
	lines := make([]string, SubscriberBuffer+10)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	mux := NewReplaySerialMux(lines, 0, false)
	_, primary := mux.SubscribePrimary()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	require.Eventually(t, func() bool { return len(primary) == SubscriberBuffer }, time.Second, time.Millisecond)
	require.NoError(t, mux.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}
	assert.Len(t, drain(primary), SubscriberBuffer)
	_, ok := <-primary
	assert.False(t, ok)
}

func TestSerialMux_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("reset"))
	require.NoError(t, mux.SendCommand("ping\n"))
	assert.Equal(t, "reset\nping\n", port.GetWrittenData())

	port.WriteError = errors.New("io")
	assert.EqualError(t, mux.SendCommand("x"), "io")

	port.ShortWrite = true
	assert.ErrorIs(t, mux.SendCommand("x"), ErrWriteFailed)
}

func TestSerialMux_Close(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, port.Closed)

	// Second close is a no-op and late subscribers get a closed channel.
	require.NoError(t, mux.Close())
	_, late := mux.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestReplaySerialMux(t *testing.T) {
	lines := []string{`{"pose":{}}`, `{"status_list":[]}`, "tail"}
	mux := NewReplaySerialMux(lines, 0, false)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))
	assert.Equal(t, lines, drain(ch))

	require.NoError(t, mux.SendCommand("hello"))
	assert.Equal(t, "hello\n", mux.port.Written())
	require.NoError(t, mux.Close())
}

func TestReplaySerialMux_LoopUntilClosed(t *testing.T) {
	mux := NewReplaySerialMux([]string{"a", "b"}, time.Millisecond, true)
	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	var got []string
	for len(got) < 5 {
		select {
		case line := <-ch:
			got = append(got, line)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %v", got)
		}
	}
	assert.Equal(t, []string{"a", "b", "a", "b", "a"}, got)

	require.NoError(t, mux.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop after Close")
	}
}

func TestParseFixtures(t *testing.T) {
	in := "# recorded run\n\n  {\"pose\":{}}  \n#{\"status_list\":[]}\nlast\n"
	lines, err := ParseFixtures(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{`{"pose":{}}`, "last"}, lines)

	_, err = ReadFixtures("does/not/exist.jsonl")
	assert.Error(t, err)
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()
	id, ch := d.Subscribe()
	assert.Equal(t, 1, d.Stats().Subscribers)
	assert.NoError(t, d.SendCommand("x"))

	d.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)

	_, ch = d.Subscribe()
	_, primary := d.SubscribePrimary()
	assert.Equal(t, 2, d.Stats().Subscribers)
	require.NoError(t, d.Close())
	_, ok = <-ch
	assert.False(t, ok)
	_, ok = <-primary
	assert.False(t, ok)
	require.NoError(t, d.Close())
}

// localHostRequest creates a request that passes tsweb's loopback check.
func localHostRequest(method, path string, form url.Values) *http.Request {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAttachAdminRoutes_SendCommandAPI(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name   string
		method string
		form   url.Values
		status int
	}{
		{"valid", http.MethodPost, url.Values{"command": {"reset"}}, http.StatusOK},
		{"empty", http.MethodPost, url.Values{"command": {"  "}}, http.StatusBadRequest},
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, localHostRequest(tt.method, "/debug/send-command-api", tt.form))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, "reset\n", port.GetWrittenData())
}

func TestAttachAdminRoutes_SerialStats(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("one\ntwo\n"))
	mux := NewSerialMux(port)
	require.NoError(t, mux.Monitor(context.Background()))

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)
	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/serial-stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lines 2")
}

func TestAttachAdminRoutes_Tail(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	ping, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", ping)

	port.AddReadData([]byte(`{"status_list":[]}` + "\n"))

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			assert.Equal(t, "data: {\"status_list\":[]}\n", line)
			break
		}
	}
	require.NoError(t, mux.Close())
}
