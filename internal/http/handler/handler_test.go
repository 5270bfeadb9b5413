package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edirooss/scriptd/internal/host"
	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
	"github.com/edirooss/scriptd/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

type fixture struct {
	r      *gin.Engine
	interp *service.InterpService
	sys    *host.System
}

func newFixture(t *testing.T, cfg processmgr.Config, drive bool) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	sys := host.NewSystem(log, nil)
	t.Cleanup(sys.Close)

	interp := service.NewInterpService(log, processmgr.New(log, sys, cfg), sys.Outputs(), 5)
	summary := service.NewSummaryService(log, interp, service.SummaryOptions{TTL: time.Millisecond})

	if drive {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = interp.Run(ctx)
		}()
		t.Cleanup(func() { cancel(); <-done })
	}

	r := gin.New()
	api := r.Group("/api")
	NewProcsHandler(log, interp, summary).Mount(api)
	NewLimitsHandler(interp).Mount(api)
	api.GET("/exits", NewExitsHandler(service.NewExitService(log, nil, sys)).Recent)
	return &fixture{r: r, interp: interp, sys: sys}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func (f *fixture) create(t *testing.T, body string) int64 {
	t.Helper()
	w := f.do(http.MethodPost, "/api/procs", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out struct {
		PID int64 `json:"pid"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "/api/procs/"+jsonInt(out.PID), w.Header().Get("Location"))
	return out.PID
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, processmgr.Config{MaxProcs: 1}, false)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"malformed", `{"source":`, http.StatusBadRequest},
		{"unknown field", `{"source":"halt","bogus":1}`, http.StatusBadRequest},
		{"trailing data", `{"source":"halt"} {}`, http.StatusBadRequest},
		{"missing source", `{"name":"x"}`, http.StatusBadRequest},
		{"negative limit", `{"source":"halt","cycle_limit":-1}`, http.StatusBadRequest},
		{"syntax error", `{"source":"frob"}`, http.StatusBadRequest},
		{"unknown entry", `{"source":"halt","entry":"nope"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/procs", tc.body)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}

	f.create(t, `{"source":"sleep","cycle_limit":null,"max_stack":8}`)
	w := f.do(http.MethodPost, "/api/procs", `{"source":"sleep"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProcessLifecycle(t *testing.T) {
	f := newFixture(t, processmgr.DefaultConfig, true)

	pid := f.create(t, `{"source":"print \"hi\"\nsleep\nprint \"bye\"\ntext \"done\"\nhalt","name":"demo"}`)

	require.Eventually(t, func() bool {
		return f.interp.Status(pid).State.Kind == processmgr.Sleeping
	}, 2*time.Second, 5*time.Millisecond)

	path := "/api/procs/" + jsonInt(pid)
	w := f.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pid":`+jsonInt(pid)+`,"state":"Sleeping","cycles":6}`, w.Body.String())

	w = f.do(http.MethodGet, "/api/procs?force=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Total-Count"))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = f.do(http.MethodPost, path+"/wake", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		return f.do(http.MethodGet, path, "").Code == http.StatusNotFound
	}, 2*time.Second, 5*time.Millisecond)
	w = f.do(http.MethodGet, path, "")
	assert.Contains(t, w.Body.String(), `"state":"Gone"`)

	w = f.do(http.MethodGet, path+"/output?lines=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["bye"]`, w.Body.String())

	w = f.do(http.MethodGet, "/api/exits?n=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var exits []host.ExitRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exits))
	require.Len(t, exits, 1)
	assert.Equal(t, "done", exits[0].Text)
	assert.Equal(t, "memory", w.Header().Get("X-Exit-Source"))
}

func TestKillAndNotFound(t *testing.T) {
	f := newFixture(t, processmgr.DefaultConfig, true)

	pid := f.create(t, `{"source":"loop:\nyield\njmp loop"}`)
	path := "/api/procs/" + jsonInt(pid)

	w := f.do(http.MethodDelete, path+"?reason=enough", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		return f.do(http.MethodGet, path, "").Code == http.StatusNotFound
	}, 2*time.Second, 5*time.Millisecond)

	exits := f.sys.RecentExits(1)
	require.Len(t, exits, 1)
	assert.Equal(t, "Killed", exits[0].State)
	assert.Equal(t, "enough", exits[0].Reason)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/procs/999/output", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/procs/0", "").Code)
	for _, q := range []string{"x", "0", "-1"} {
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, path+"/output?lines="+q, "").Code, q)
	}
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/exits?n=0", "").Code)
	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/procs/999/wake", "").Code)
}

func TestLimits(t *testing.T) {
	f := newFixture(t, processmgr.Config{MaxProcs: 1}, false)

	w := f.do(http.MethodGet, "/api/limits", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"max_procs":1,"live":0}`, w.Body.String())

	f.create(t, `{"source":"sleep"}`)
	w = f.do(http.MethodPost, "/api/procs", `{"source":"halt"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	for _, body := range []string{``, `{}`, `{"max_procs":null}`, `{"max_procs":-1}`, `{"max_procs":"2"}`, `{"max":2}`} {
		w = f.do(http.MethodPut, "/api/limits", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	w = f.do(http.MethodPut, "/api/limits", `{"max_procs":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"max_procs":2,"live":1}`, w.Body.String())
	f.create(t, `{"source":"halt"}`)
}
