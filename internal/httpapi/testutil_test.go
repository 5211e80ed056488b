package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"servingd/internal/manager"
	"servingd/pkg/types"
)

type mockService struct {
	serveRes   manager.ServeResult
	serveErr   error
	killRes    manager.KillResult
	killErr    error
	sweep      manager.SweepReport
	endpoints  []types.EndpointInfo
	predictOut []byte
	predictErr error
	status     types.StatusResponse
	ready      bool

	// predictBlocks makes Predict wait for its context to end.
	predictBlocks bool

	gotPayload []byte
	gotName    string
	gotVersion int
}

func (m *mockService) Serve(ctx context.Context, name string, version int) (manager.ServeResult, error) {
	m.gotName, m.gotVersion = name, version
	return m.serveRes, m.serveErr
}

func (m *mockService) Kill(name string, version int) (manager.KillResult, error) {
	m.gotName, m.gotVersion = name, version
	return m.killRes, m.killErr
}

func (m *mockService) SweepExpired() manager.SweepReport  { return m.sweep }
func (m *mockService) ListEndpoints() []types.EndpointInfo { return m.endpoints }
func (m *mockService) Status() types.StatusResponse        { return m.status }
func (m *mockService) Ready() bool                         { return m.ready }

func (m *mockService) Predict(ctx context.Context, name string, version int, payload []byte) ([]byte, error) {
	m.gotName, m.gotVersion, m.gotPayload = name, version, payload
	if m.predictBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.predictOut, m.predictErr
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// resetGlobals restores package settings changed by a test.
func resetGlobals(t *testing.T) {
	t.Cleanup(func() {
		SetMaxBodyBytes(0)
		SetMaxBatchSize(0)
		SetCORSOptions(false, nil, nil, nil)
		SetAuthenticator(nil)
		SetBaseContext(nil)
		SetPredictTimeout(0)
	})
}

var testTime = time.Unix(1_700_000_000, 0)
