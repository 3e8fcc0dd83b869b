package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/solanapredict/service/config"
	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/metrics"
	"github.com/brojonat/solanapredict/service/nats"
	"github.com/brojonat/solanapredict/service/program"
	"github.com/brojonat/solanapredict/service/solana"
	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const programAddress = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"

type testEnv struct {
	server    *httptest.Server
	client    *http.Client
	rpc       *solana.MockRPCClient
	conn      *solana.Connection
	publisher *nats.MockPublisher
	sessions  *SessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	doc := idl.MustDefault()
	mock := solana.NewMockRPCClient()
	conn := solana.NewConnection(mock, "http://localhost:8899", "localnet", rpc.CommitmentConfirmed, nil, logger)
	pub := nats.NewMockPublisher()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	sessions := NewSessionStore(doc, rpc.CommitmentConfirmed, time.Hour, pub, m, logger)

	srv := New(":0", &config.Config{SessionTTL: time.Hour}, doc, conn, sessions, m, logger)
	require.NoError(t, srv.WithTemplates())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		server:    ts,
		client:    &http.Client{Jar: jar},
		rpc:       mock,
		conn:      conn,
		publisher: pub,
		sessions:  sessions,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) connect(t *testing.T, key solanago.PublicKey) program.Status {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/session", map[string]string{"public_key": key.String()})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out sessionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Status
}

// session returns the server-side session behind the client's cookie.
func (e *testEnv) session(t *testing.T) *Session {
	t.Helper()
	u, err := url.Parse(e.server.URL)
	require.NoError(t, err)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == SessionCookieName {
			sess, ok := e.sessions.Get(c.Value)
			require.True(t, ok)
			return sess
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestLandingPage_NoWallet(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	page := string(body)
	assert.Contains(t, page, `<html lang="en">`)
	assert.Contains(t, page, "<title>SolanaPredict</title>")
	assert.Contains(t, page, `<meta name="description" content="A decentralized prediction market built on Solana where users can bet on real-world events with cryptocurrency.">`)
	assert.Contains(t, page, "Connect your wallet to get started.")
	assert.NotContains(t, page, `id="signer"`)

	resp, body = env.do(t, http.MethodGet, "/api/v1/program", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status program.Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.False(t, status.Ready)
	assert.Empty(t, status.ProgramID)
}

func TestConnect_BindsProgramAndSigner(t *testing.T) {
	env := newTestEnv(t)
	key := solanago.NewWallet().PublicKey()

	status := env.connect(t, key)
	assert.True(t, status.Ready)
	assert.Equal(t, programAddress, status.ProgramID)
	assert.Equal(t, key.String(), status.Signer)

	resp, body := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(body)
	assert.Contains(t, page, key.String())
	assert.Contains(t, page, programAddress)
	assert.NotContains(t, page, "Connect your wallet to get started.")

	events := env.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, nats.SessionConnected, events[0].Type)
	assert.Equal(t, key.String(), events[0].PublicKey)
	assert.Equal(t, programAddress, events[0].ProgramID)
	assert.Equal(t, "localnet", events[0].Network)
}

func TestConnect_SameWalletKeepsHandle(t *testing.T) {
	env := newTestEnv(t)
	key := solanago.NewWallet().PublicKey()

	env.connect(t, key)
	_, first := env.session(t).Bind(env.conn)

	env.connect(t, key)
	env.do(t, http.MethodGet, "/api/v1/program", nil)
	_, second := env.session(t).Bind(env.conn)

	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Len(t, env.publisher.Events(), 1, "reconnecting the same key is not a new event")
}

func TestConnect_WalletChangeRebinds(t *testing.T) {
	env := newTestEnv(t)
	k1 := solanago.NewWallet().PublicKey()
	k2 := solanago.NewWallet().PublicKey()

	env.connect(t, k1)
	_, first := env.session(t).Bind(env.conn)

	status := env.connect(t, k2)
	assert.Equal(t, k2.String(), status.Signer)
	_, second := env.session(t).Bind(env.conn)

	assert.NotSame(t, first, second)
	assert.Equal(t, first.ProgramID(), second.ProgramID())

	events := env.publisher.Events()
	require.Len(t, events, 3)
	assert.Equal(t, nats.SessionConnected, events[0].Type)
	assert.Equal(t, nats.SessionDisconnected, events[1].Type)
	assert.Equal(t, k1.String(), events[1].PublicKey)
	assert.Equal(t, nats.SessionConnected, events[2].Type)
	assert.Equal(t, k2.String(), events[2].PublicKey)
}

func TestConnect_InvalidPublicKey(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		body    interface{}
		wantMsg string
	}{
		{"missing", map[string]string{}, "address is required"},
		{"not base58", map[string]string{"public_key": "0OIl"}, "base58"},
		{"control characters", map[string]string{"public_key": "abc\u0000def"}, "control characters"},
		{"wrong length", map[string]string{"public_key": "abc"}, "invalid public key"},
		{"zero key", map[string]string{"public_key": "11111111111111111111111111111111"}, "zero key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/v1/session", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantMsg)
		})
	}

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/session", strings.NewReader(`{"public_key":`))
	require.NoError(t, err)
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, env.publisher.Events())
}

func TestDisconnect(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodDelete, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "disconnecting without a session is fine")

	key := solanago.NewWallet().PublicKey()
	env.connect(t, key)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body := env.do(t, http.MethodGet, "/api/v1/program", nil)
	var status program.Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.False(t, status.Ready)

	_, page := env.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, string(page), "Connect your wallet to get started.")

	disconnected := env.publisher.EventsOfType(nats.SessionDisconnected)
	require.Len(t, disconnected, 1)
	assert.Equal(t, key.String(), disconnected[0].PublicKey)
}

func TestDisconnect_ReconnectBuildsFreshHandle(t *testing.T) {
	env := newTestEnv(t)
	key := solanago.NewWallet().PublicKey()

	env.connect(t, key)
	_, before := env.session(t).Bind(env.conn)
	require.NotNil(t, before)

	resp, _ := env.do(t, http.MethodDelete, "/api/v1/session", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	env.connect(t, key)
	_, after := env.session(t).Bind(env.conn)
	require.NotNil(t, after)
	assert.NotSame(t, before, after, "the handle is discarded on disconnect")
	assert.Equal(t, before.ProgramID(), after.ProgramID())
}

func TestMarkets_RequireWallet(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/markets", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "wallet not connected")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/transactions/claim_winnings", map[string]string{"market": programAddress})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMarkets_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	user := solanago.NewWallet().PublicKey()

	market := &program.Market{
		Creator:     solanago.NewWallet().PublicKey(),
		Question:    "Will it rain?",
		Description: "Resolves yes on any rain.",
		EndTime:     time.Now().Add(time.Hour).Unix(),
		YesPool:     100,
		NoPool:      50,
		TotalBets:   2,
		CreatedAt:   time.Now().Unix(),
	}
	data, err := program.EncodeAccount(market)
	require.NoError(t, err)
	marketAddr := solanago.NewWallet().PublicKey()
	env.rpc.SetAccount(marketAddr, data)

	betAddr, _, err := program.BetAddress(solanago.MustPublicKeyFromBase58(programAddress), marketAddr, user)
	require.NoError(t, err)
	betData, err := program.EncodeAccount(&program.Bet{Market: marketAddr, User: user, Amount: 50, Option: program.BetNo})
	require.NoError(t, err)
	env.rpc.SetAccount(betAddr, betData)

	env.connect(t, user)

	resp, body := env.do(t, http.MethodGet, "/api/v1/markets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list struct {
		Markets []map[string]interface{} `json:"markets"`
		Count   int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, marketAddr.String(), list.Markets[0]["address"])
	assert.Equal(t, "Will it rain?", list.Markets[0]["question"])
	assert.Equal(t, float64(150), list.Markets[0]["total_pool"])
	assert.Equal(t, false, list.Markets[0]["ended"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/markets/"+marketAddr.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Resolves yes on any rain.", got["description"])
	myBet, ok := got["my_bet"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, betAddr.String(), myBet["address"])
	assert.Equal(t, "no", myBet["option"])

	resp, _ = env.do(t, http.MethodGet, "/api/v1/markets/"+solanago.NewWallet().PublicKey().String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/markets/"+betAddr.String(), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/markets/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func decodeTransaction(t *testing.T, encoded string) *solanago.Transaction {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	return tx
}

func TestBuildTransaction_CreateMarket(t *testing.T) {
	env := newTestEnv(t)
	creator := solanago.NewWallet().PublicKey()
	env.connect(t, creator)

	resp, body := env.do(t, http.MethodPost, "/api/v1/transactions/create_market", map[string]interface{}{
		"question":    "Will it rain?",
		"description": "Resolves yes on any rain.",
		"end_time":    time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out transactionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "create_market", out.Instruction)
	assert.Equal(t, creator.String(), out.Signer)
	assert.Equal(t, env.rpc.Blockhash.String(), out.RecentBlockhash)

	wantMarket, _, err := program.MarketAddress(solanago.MustPublicKeyFromBase58(programAddress), creator, "Will it rain?")
	require.NoError(t, err)
	assert.Equal(t, wantMarket.String(), out.Address)

	tx := decodeTransaction(t, out.Transaction)
	assert.Equal(t, creator, tx.Message.AccountKeys[0])
	require.Len(t, tx.Message.Instructions, 1)
	assert.Empty(t, env.rpc.Sent(), "unsigned transactions are never submitted by the server")
}

func TestBuildTransaction_CamelCaseName(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, solanago.NewWallet().PublicKey())

	resp, body := env.do(t, http.MethodPost, "/api/v1/transactions/placeBet", map[string]interface{}{
		"market": programAddress,
		"amount": 1000,
		"option": "yes",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out transactionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "place_bet", out.Instruction)
	assert.NotEmpty(t, out.Address)
}

func TestBuildTransaction_Rejected(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, solanago.NewWallet().PublicKey())

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "unknown instruction",
			path:       "/api/v1/transactions/withdraw",
			body:       map[string]string{},
			wantStatus: http.StatusNotFound,
			wantMsg:    "unknown instruction",
		},
		{
			name:       "zero amount",
			path:       "/api/v1/transactions/place_bet",
			body:       map[string]interface{}{"market": programAddress, "amount": 0, "option": "yes"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid amount",
		},
		{
			name:       "bad option",
			path:       "/api/v1/transactions/place_bet",
			body:       map[string]interface{}{"market": programAddress, "amount": 1, "option": "maybe"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid bet option",
		},
		{
			name:       "end time in the past",
			path:       "/api/v1/transactions/create_market",
			body:       map[string]interface{}{"question": "q", "end_time": time.Now().Add(-time.Hour).Format(time.RFC3339)},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid end time",
		},
		{
			name:       "question too long",
			path:       "/api/v1/transactions/create_market",
			body:       map[string]interface{}{"question": strings.Repeat("q", 201), "end_time": time.Now().Add(time.Hour).Format(time.RFC3339)},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "question too long",
		},
		{
			name:       "bad market address",
			path:       "/api/v1/transactions/resolve_market",
			body:       map[string]interface{}{"market": "nope!", "winning_option": "yes"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "base58",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			assert.Contains(t, string(body), tt.wantMsg)
		})
	}
}

func TestHealthAndCORS(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, _ = env.do(t, http.MethodOptions, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
