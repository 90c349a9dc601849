package common

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const HeaderRequestId = "X-Request-Id"

// Exact error bodies mandated by the wire contract.
const (
	MsgNoQuery     = "No query provided"
	MsgInvalidMode = "Invalid mode"
)

// NewHTTPClient returns a client bounded by the given overall timeout.
// A zero timeout means the call is bounded only by the peer.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// RequestId stamps a request id on requests that arrive without one, so a
// query can be traced across every hop of the chain.
func RequestId(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestId)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(HeaderRequestId, id)
		}
		w.Header().Set(HeaderRequestId, id)
		next.ServeHTTP(w, r)
	})
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		Log().Error("Failed to encode response body.", zap.Error(err))
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteRawJSON relays an already-encoded JSON body unchanged.
func WriteRawJSON(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// DecodeQuery reads a /query body. A missing or empty query field is
// answered with the mandatory 400 body and reported as not ok; such a
// request must never be forwarded downstream.
func DecodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		WriteError(w, http.StatusBadRequest, MsgNoQuery)
		return "", false
	}
	return req.Query, true
}

// PostJSON posts a JSON body to url and returns the peer's status code and
// raw response body. A non-nil error means the peer was never reached or
// the connection broke mid-response.
func PostJSON(client *http.Client, url string, body interface{}, requestId string) (int, []byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "marshal request")
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if requestId != "" {
		req.Header.Set(HeaderRequestId, requestId)
	}
	return do(client, req)
}

// GetJSON issues a GET against url and returns status code and raw body.
func GetJSON(client *http.Client, url string, requestId string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, errors.Wrap(err, "build request")
	}
	if requestId != "" {
		req.Header.Set(HeaderRequestId, requestId)
	}
	return do(client, req)
}

func do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", req.Method, req.URL)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "read response from %s", req.URL)
	}
	return resp.StatusCode, raw, nil
}
