package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Address: srv.URL, Token: strings.Repeat("a", 64)}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestClient_Status(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"last-round": 42}`)
	})

	round, err := c.Ping(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(42), round)
}

func TestClient_Compile(t *testing.T) {
	program := []byte{0x08, 0x81, 0x01, 0x43}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/teal/compile", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"hash": "HASHXYZ", "result": %q}`, base64.StdEncoding.EncodeToString(program))
	})

	res, err := c.Compile(context.Background(), "#pragma version 8\nint 1\nreturn\n")

	require.NoError(t, err)
	assert.Equal(t, "HASHXYZ", res.Hash)
	assert.Equal(t, program, res.Bytecode)
}

func TestClient_CompileRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message": "1: unknown opcode: frobnicate"}`)
	})

	_, err := c.Compile(context.Background(), "frobnicate")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestClient_ServerFault(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message": "boom"}`)
	})

	_, err := c.Status(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_AccountBalanceRejectsBadAddress(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("node must not be called")
	})

	_, err := c.AccountBalance(context.Background(), "not-an-address")

	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{errors.New("HTTP 400: {\"message\":\"overspend\"}"), ErrBadRequest},
		{errors.New("HTTP 404: {\"message\":\"txn not found\"}"), ErrNotFound},
		{errors.New("HTTP 503: upstream"), ErrUnavailable},
		{errors.New("dial tcp: connection refused"), ErrUnavailable},
		{context.DeadlineExceeded, ErrUnavailable},
	}
	for _, tt := range tests {
		got := classify("op", tt.err)
		assert.ErrorIs(t, got, tt.want, tt.err.Error())
		assert.ErrorIs(t, got, tt.err)
	}
	assert.NoError(t, classify("op", nil))
}

func TestExplorer(t *testing.T) {
	e := Explorer{BaseURL: "https://testnet.explorer.perawallet.app/"}

	assert.Equal(t, "https://testnet.explorer.perawallet.app/tx/ABC", e.TransactionURL("ABC"))
	assert.Equal(t, "https://testnet.explorer.perawallet.app/application/7", e.ApplicationURL(7))
	assert.Empty(t, Explorer{}.TransactionURL("ABC"))
	assert.Equal(t, "1.500000", MicroAlgosToAlgos(1_500_000))
}
