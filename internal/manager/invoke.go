package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	"servingd/pkg/types"
)

// maxResponseBytes bounds what is read back from a model process.
const maxResponseBytes = 32 << 20

// invoke performs one scoring call against the process on port.
func (m *Manager) invoke(ctx context.Context, key types.ModelKey, port int, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.InvokeTimeout)
	defer cancel()
	url := "http://" + net.JoinHostPort(m.cfg.Host, strconv.Itoa(port)) + "/invocations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, transportError{key: key, port: port, cause: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError{key: key, port: port, cause: fmt.Errorf("read response: %w", err)}
	}
	return classifyInvocation(key, port, resp.StatusCode, body)
}

// classifyInvocation sorts a model response into success, a terminal model
// error, or a retryable transport failure.
func classifyInvocation(key types.ModelKey, port, status int, body []byte) ([]byte, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, transportError{key: key, port: port, cause: fmt.Errorf("empty response (http %d)", status)}
	}
	if !gjson.ValidBytes(body) {
		return nil, transportError{key: key, port: port, cause: fmt.Errorf("malformed response (http %d)", status)}
	}
	res := gjson.ParseBytes(body)
	if res.IsObject() {
		code, msg := res.Get("error_code"), res.Get("error_message")
		if code.Exists() || msg.Exists() {
			return nil, &ModelExecutionError{Key: key, Code: code.String(), Message: msg.String(), HTTPStatus: status}
		}
	}
	if status < 200 || status > 299 {
		return nil, transportError{key: key, port: port, cause: fmt.Errorf("http %d", status)}
	}
	if res.IsArray() || res.IsObject() {
		return body, nil
	}
	return nil, transportError{key: key, port: port, cause: errors.New("response is not a JSON array or object")}
}
