package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dxdrive/internal/backend"
	"dxdrive/internal/driver"
	"dxdrive/internal/testkit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T, be backend.Backend, opts Options) *httptest.Server {
	t.Helper()
	opts.Driver = driver.New(driver.Options{Backend: be})
	srv := httptest.NewServer(New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postCompile(t *testing.T, srv *httptest.Server, body any) (*http.Response, CompileResponse) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := srv.Client().Post(srv.URL+"/api/compile", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out CompileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func validBody() CompileRequest {
	return CompileRequest{Source: "valid-program", Entry: "main", Profile: "profileA"}
}

func TestCompileEndpointSuccess(t *testing.T) {
	be := testkit.NewBackend(testkit.Success([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	srv := newTestServer(t, be, Options{})

	resp, out := postCompile(t, srv, validBody())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, resp.Header.Get("X-Request-ID"), out.RequestID)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, out.Object)
	assert.Nil(t, out.RootSignature)
	assert.Zero(t, out.Diagnostics.Count)
	assert.NotEmpty(t, out.CallID)
	assert.Contains(t, out.Timings, driver.StageInvoke)
}

func TestCompileEndpointCompileErrors(t *testing.T) {
	be := testkit.NewResponderBackend(testkit.DevResponder)
	srv := newTestServer(t, be, Options{})

	body := validBody()
	body.Name = "blur.hlsl"
	body.Source = "void main() {}\n#error bad radius\n"
	resp, out := postCompile(t, srv, body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "compile-errors", out.Status)
	assert.Nil(t, out.Object)
	require.Equal(t, 1, out.Diagnostics.Errors)
	assert.Equal(t, "blur.hlsl", out.Diagnostics.Diagnostics[0].Location.File)
	assert.EqualValues(t, 2, out.Diagnostics.Diagnostics[0].Location.Line)
}

func TestCompileEndpointExtras(t *testing.T) {
	be := testkit.NewResponderBackend(testkit.DevResponder)
	srv := newTestServer(t, be, Options{})

	body := validBody()
	body.Extras = []string{"disassembly", "shader-hash"}
	body.Defines = []string{"RADIUS=4"}
	body.Flags = []string{"warnings-as-errors"}
	_, out := postCompile(t, srv, body)
	require.Equal(t, "success", out.Status)
	assert.Contains(t, string(out.Extras["disassembly"]), "-D RADIUS=4")
	assert.Len(t, out.Extras["shader-hash"], backend.ShaderHashSize)
	assert.Contains(t, be.LastArgs(), "-WX")
}

func TestCompileEndpointRejectsBadInput(t *testing.T) {
	be := testkit.NewBackend(testkit.Success([]byte{1}))
	srv := newTestServer(t, be, Options{})

	cases := map[string]CompileRequest{
		"empty source":    {Entry: "main", Profile: "p"},
		"bad encoding":    {Source: "x", Entry: "main", Profile: "p", Encoding: "ebcdic"},
		"bad flag":        {Source: "x", Entry: "main", Profile: "p", Flags: []string{"turbo"}},
		"object as extra": {Source: "x", Entry: "main", Profile: "p", Extras: []string{"object"}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, out := postCompile(t, srv, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "invalid-argument", out.Status)
			assert.NotEmpty(t, out.Error)
		})
	}
	assert.Zero(t, be.Invocations())

	resp, err := srv.Client().Post(srv.URL+"/api/compile", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompileEndpointBackendFailure(t *testing.T) {
	be := testkit.NewBackend(testkit.Script{Status: -2147024809})
	srv := newTestServer(t, be, Options{})

	resp, out := postCompile(t, srv, validBody())
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "invocation-failed", out.Status)
	assert.Equal(t, "0x80070057", out.BackendCode)
}

func TestCompileEndpointRateLimited(t *testing.T) {
	be := testkit.NewBackend(testkit.Success([]byte{1}))
	srv := newTestServer(t, be, Options{RatePerSecond: 0.001, Burst: 1})

	resp, _ := postCompile(t, srv, validBody())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := json.Marshal(validBody())
	require.NoError(t, err)
	resp, err = srv.Client().Post(srv.URL+"/api/compile", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 1, be.Invocations())
}

func TestHealthAndCORS(t *testing.T) {
	srv := newTestServer(t, testkit.NewBackend(testkit.Success([]byte{1})), Options{})

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "scripted", health["backend"])

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/compile", nil)
	require.NoError(t, err)
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebsocketCompiles(t *testing.T) {
	be := testkit.NewResponderBackend(testkit.DevResponder)
	srv := newTestServer(t, be, Options{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var bad errorResponse
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Contains(t, bad.Error, "invalid message")

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteJSON(validBody()))
		var out CompileResponse
		require.NoError(t, conn.ReadJSON(&out))
		assert.Equal(t, "success", out.Status)
		assert.Equal(t, "DXBC", string(out.Object[:4]))
	}
	assert.Equal(t, 2, be.Invocations())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}

func TestLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Visitors())

	now = now.Add(visitorTimeout + cleanupInterval + time.Second)
	assert.True(t, l.Allow("c"))
	assert.Equal(t, 1, l.Visitors())
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("a"))
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", clientIP(r, false))
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "10.0.0.7", clientIP(r, false), "forwarded header ignored without a trusted proxy")
	assert.Equal(t, "203.0.113.9", clientIP(r, true))
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	be := testkit.NewBackend(testkit.Success([]byte{1}))
	srv := newTestServer(t, be, Options{RatePerSecond: 0.001, Burst: 1})

	data, err := json.Marshal(validBody())
	require.NoError(t, err)
	post := func(fwd string) int {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/compile", bytes.NewReader(data))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fwd)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusOK, post("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("198.51.100.2"))
}
