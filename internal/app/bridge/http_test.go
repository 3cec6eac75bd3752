package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelzgniq/cap-android-steps/internal/adapters/hostperm"
	"github.com/yelzgniq/cap-android-steps/internal/domain"
)

type recordedResult struct {
	code   int
	grants []domain.PermissionState
}

type fakeResults struct {
	mu    sync.Mutex
	calls []recordedResult
}

func (f *fakeResults) HandleResult(code int, _ []string, grants []domain.PermissionState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedResult{code: code, grants: grants})
	return code == 100
}

func (f *fakeResults) recorded() []recordedResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedResult(nil), f.calls...)
}

type decoded struct {
	CallID string          `json:"callId"`
	Data   json.RawMessage `json:"data"`
	Error  *errorBody      `json:"error"`
}

func newServer(t *testing.T, f *fixture, prompts PromptQueue, results ResultHandler) *httptest.Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	mux := http.NewServeMux()
	NewHandler(f.plugin(t), prompts, results, logger).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, body string, hdr http.Header) (*http.Response, decoded) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/plugins/CapAndroidSteps/"+method, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header[k] = v
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out decoded
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestCallResolves(t *testing.T) {
	f := newFixture()
	srv := newServer(t, f, nil, nil)

	resp, out := call(t, srv, "invertString", `{"value":"steps"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	_, err := uuid.Parse(out.CallID)
	assert.NoError(t, err)
	assert.Nil(t, out.Error)
	assert.JSONEq(t, `{"value":"spets"}`, string(out.Data))
}

func TestCallEchoesCallerID(t *testing.T) {
	f := newFixture()
	srv := newServer(t, f, nil, nil)

	id := uuid.NewString()
	_, out := call(t, srv, "invertString", `{"value":"a"}`, http.Header{CallIDHeader: {id}})
	assert.Equal(t, id, out.CallID)

	_, out = call(t, srv, "invertString", `{"value":"a"}`, http.Header{CallIDHeader: {"not-a-uuid"}})
	assert.NotEqual(t, "not-a-uuid", out.CallID)
}

func TestCallRejectionStatus(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		setup  func(*fixture)
		status int
		code   Code
		msg    string
	}{
		{
			name:   "no window data",
			method: "getStepsForPeriod",
			body:   `{"period":"hour"}`,
			status: http.StatusNotFound,
			code:   CodeNoData,
			msg:    MsgNoWindowData,
		},
		{
			name:   "permission missing",
			method: "getStepsForPeriod",
			setup:  func(f *fixture) { f.perms.granted = false },
			status: http.StatusForbidden,
			code:   CodePermissionDenied,
			msg:    MsgPermissionNotGranted,
		},
		{
			name:   "sensor missing",
			method: "getRawSensorValues",
			setup:  func(f *fixture) { f.sensors.ok = false },
			status: http.StatusServiceUnavailable,
			code:   CodeSensorUnavailable,
			msg:    MsgSensorUnavailable,
		},
		{
			name:   "missing value",
			method: "invertString",
			body:   `{}`,
			status: http.StatusBadRequest,
			code:   CodeInvalidArgument,
			msg:    MsgMissingValue,
		},
		{
			name:   "malformed options",
			method: "invertString",
			body:   `[1,2`,
			status: http.StatusBadRequest,
			code:   CodeInvalidArgument,
		},
		{
			name:   "unknown method",
			method: "echo",
			status: http.StatusNotImplemented,
			code:   CodeUnimplemented,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			srv := newServer(t, f, nil, nil)

			resp, out := call(t, srv, tt.method, tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			require.NotNil(t, out.Error)
			assert.Equal(t, tt.code, out.Error.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, out.Error.Message)
			}
			assert.NotEmpty(t, out.CallID)
		})
	}
}

func TestGetStepsOverHTTP(t *testing.T) {
	f := newFixture()
	f.agg.Ingest(t0.Add(-10*time.Minute), 100)
	f.agg.Ingest(t0, 175)
	srv := newServer(t, f, nil, nil)

	resp, out := call(t, srv, "getStepsForPeriod", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res StepCountResult
	require.NoError(t, json.Unmarshal(out.Data, &res))
	assert.Equal(t, int64(75), res.Count)
	assert.Equal(t, domain.PeriodDay, res.Period)
}

func TestHostPermissionEndpoints(t *testing.T) {
	f := newFixture()
	host := hostperm.NewDeferred(1)
	results := &fakeResults{}
	srv := newServer(t, f, host, results)

	require.NoError(t, host.Prompt(context.Background(), 100, []string{domain.ActivityRecognition}))

	resp, err := srv.Client().Get(srv.URL + "/host/permissions/prompts")
	require.NoError(t, err)
	var prompt domain.PermissionRequest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&prompt))
	resp.Body.Close()
	assert.Equal(t, 100, prompt.RequestCode)
	assert.Equal(t, []string{domain.ActivityRecognition}, prompt.Permissions)

	body := `{"requestCode":100,"permissions":["` + domain.ActivityRecognition + `"],"grantResults":[0]}`
	resp, err = srv.Client().Post(srv.URL+"/host/permissions/result", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var matched map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&matched))
	resp.Body.Close()

	assert.True(t, matched["matched"])
	calls := results.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, []domain.PermissionState{domain.PermissionGranted}, calls[0].grants)
	assert.Equal(t, domain.PermissionGranted, host.Check(domain.ActivityRecognition))

	body = `{"requestCode":7,"permissions":["` + domain.ActivityRecognition + `"],"grantResults":[-1]}`
	resp, err = srv.Client().Post(srv.URL+"/host/permissions/result", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&matched))
	resp.Body.Close()
	assert.False(t, matched["matched"])
	assert.Equal(t, domain.PermissionDenied, host.Check(domain.ActivityRecognition))
}

func TestHostEndpointsAbsentWithoutQueue(t *testing.T) {
	srv := newServer(t, newFixture(), nil, nil)

	resp, err := srv.Client().Get(srv.URL + "/host/permissions/prompts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
