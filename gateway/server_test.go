package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"countingchain/core"
	"countingchain/core/events"
	"countingchain/core/types"
	"countingchain/crypto"
	"countingchain/gateway"
	"countingchain/gateway/auth"
	"countingchain/indexer"
	"countingchain/native/counting"
	"countingchain/observability/logging"
	"countingchain/storage"
)

const chainID = "counting-gateway-test"

type fixture struct {
	t        *testing.T
	app      *core.App
	server   *gateway.Server
	handler  http.Handler
	donorKey *crypto.PrivateKey
	donor    crypto.Address
	owner    crypto.Address
	contract crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newLoggedFixture(t, nil)
}

func newLoggedFixture(t *testing.T, logger *slog.Logger) *fixture {
	t.Helper()
	db, err := indexer.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	idx, err := indexer.New(db, nil)
	require.NoError(t, err)
	broker := gateway.NewBroker(nil)

	app, err := core.NewApp(storage.NewMemDB(), core.Config{
		ChainID: chainID,
		Emitter: events.Fanout{broker, idx},
	})
	require.NoError(t, err)
	codeID := app.StoreCode(counting.New())

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	f := &fixture{
		t:        t,
		app:      app,
		donorKey: key,
		donor:    key.PubKey().Address(app.Prefix()),
		owner:    crypto.DeriveAddress(app.Prefix(), []byte("owner")),
	}
	require.NoError(t, app.InitBalance(f.donor, types.NewCoins(types.NewCoin("atom", 100))))

	raw, err := json.Marshal(counting.InstantiateMsg{MinimalDonation: types.NewCoin("atom", 10)})
	require.NoError(t, err)
	f.contract, _, err = app.Instantiate(context.Background(), codeID, f.owner, raw, nil, "gateway", f.owner)
	require.NoError(t, err)

	authn := auth.NewAuthenticator(chainID, app.Prefix(), auth.NewNonceStore(storage.NewMemDB()), time.Minute, nil)
	f.server = gateway.NewServer(app, authn, broker, idx, gateway.Config{RateLimitPerMinute: 6000, Burst: 100}, logger)
	f.handler = f.server.Handler()
	return f
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	f.t.Helper()
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func (f *fixture) envelope(msg []byte, funds types.Coins, nonce string) auth.Envelope {
	f.t.Helper()
	env := auth.Envelope{
		Sender:    f.donor.String(),
		Msg:       msg,
		Funds:     funds,
		Nonce:     nonce,
		Timestamp: time.Now().Unix(),
	}
	require.NoError(f.t, env.Sign(f.donorKey, chainID, f.contract.String()))
	return env
}

func (f *fixture) execute(env auth.Envelope) *httptest.ResponseRecorder {
	f.t.Helper()
	body, err := json.Marshal(env)
	require.NoError(f.t, err)
	req := httptest.NewRequest(http.MethodPost, "/contracts/"+f.contract.String()+"/execute", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func (f *fixture) counter() uint64 {
	f.t.Helper()
	res := f.get("/contracts/" + f.contract.String() + "/query?msg=" + url.QueryEscape(string(counting.ValueQuery())))
	require.Equal(f.t, http.StatusOK, res.Code, res.Body.String())
	var resp counting.ValueResp
	require.NoError(f.t, json.Unmarshal(res.Body.Bytes(), &resp))
	return resp.Value
}

func TestHealthAndReadRoutes(t *testing.T) {
	f := newFixture(t)

	res := f.get("/healthz")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), chainID)

	res = f.get("/bank/" + f.donor.String())
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, fmt.Sprintf(`{"address":%q,"balances":[{"denom":"atom","amount":"100"}]}`, f.donor), res.Body.String())

	res = f.get("/contracts/" + f.contract.String())
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"label":"gateway"`)

	require.Equal(t, uint64(0), f.counter())
}

func TestReadRouteErrors(t *testing.T) {
	f := newFixture(t)
	unknown := crypto.ContractAddress(f.app.Prefix(), 9, 9)

	require.Equal(t, http.StatusBadRequest, f.get("/bank/not-an-address").Code)
	require.Equal(t, http.StatusNotFound, f.get("/contracts/"+unknown.String()).Code)
	require.Equal(t, http.StatusNotFound,
		f.get("/contracts/"+unknown.String()+"/query?msg="+url.QueryEscape(`{"value":{}}`)).Code)
	require.Equal(t, http.StatusBadRequest, f.get("/contracts/"+f.contract.String()+"/query?msg=nope").Code)
	require.Equal(t, http.StatusUnprocessableEntity,
		f.get("/contracts/"+f.contract.String()+"/query?msg="+url.QueryEscape(`{"bogus":{}}`)).Code)
}

func TestSignedExecuteDonates(t *testing.T) {
	f := newFixture(t)
	env := f.envelope(counting.DonateMsg(), types.NewCoins(types.NewCoin("atom", 10)), "donate-1")

	res := f.execute(env)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var out gateway.ExecuteResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	require.NotEmpty(t, out.CallID)
	require.Equal(t, uint64(1), f.counter())

	replay := f.execute(env)
	require.Equal(t, http.StatusConflict, replay.Code)
	require.Equal(t, uint64(1), f.counter())
}

func TestSignedExecuteRejections(t *testing.T) {
	f := newFixture(t)

	forged := f.envelope(counting.DonateMsg(), nil, "forged")
	forged.Funds = types.NewCoins(types.NewCoin("atom", 50))
	require.Equal(t, http.StatusUnauthorized, f.execute(forged).Code)

	withdraw := f.envelope(counting.WithdrawMsg(), nil, "withdraw")
	res := f.execute(withdraw)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	require.Contains(t, res.Body.String(), "unauthorized")

	broke := f.envelope(counting.DonateMsg(), types.NewCoins(types.NewCoin("atom", 1000)), "broke")
	require.Equal(t, http.StatusUnprocessableEntity, f.execute(broke).Code)

	req := httptest.NewRequest(http.MethodPost, "/contracts/"+f.contract.String()+"/execute", strings.NewReader(`{"unknown":1}`))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectedEnvelopeIsLoggedWithoutSignature(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: logging.RedactAttr}))
	f := newLoggedFixture(t, logger)

	env := f.envelope(counting.DonateMsg(), nil, "stale")
	env.Timestamp = time.Now().Add(-time.Hour).Unix()
	require.NoError(t, env.Sign(f.donorKey, chainID, f.contract.String()))
	res := f.execute(env)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	var line map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var candidate map[string]any
		require.NoError(t, json.Unmarshal(raw, &candidate))
		if candidate["msg"] == "gateway: envelope rejected" {
			line = candidate
		}
	}
	require.NotNil(t, line, buf.String())
	envelope, ok := line["envelope"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, f.donor.String(), envelope["sender"])
	require.Equal(t, "stale", envelope["nonce"])
	require.Equal(t, logging.RedactedValue, envelope["signature"])
	require.NotContains(t, buf.String(), env.Signature)
}

func TestEventsRouteServesIndexedEvents(t *testing.T) {
	f := newFixture(t)
	res := f.execute(f.envelope(counting.DonateMsg(), types.NewCoins(types.NewCoin("atom", 10)), "idx"))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = f.get("/contracts/" + f.contract.String() + "/events?limit=10")
	require.Equal(t, http.StatusOK, res.Code)
	var views []gateway.EventView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &views))
	require.NotEmpty(t, views)
	require.Equal(t, core.EventTypeWasm, views[0].Type)

	var action string
	for _, attr := range views[0].Attributes {
		if attr.Key == counting.AttrAction {
			action = attr.Value
		}
	}
	require.Equal(t, counting.ActionPoke, action)

	require.Equal(t, http.StatusBadRequest, f.get("/contracts/"+f.contract.String()+"/events?limit=x").Code)
}

func TestEventStreamDeliversCalls(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/ws?contract=" + f.contract.String()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	require.Eventually(t, func() bool { return f.server.Broker().Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	res := f.execute(f.envelope(counting.DonateMsg(), types.NewCoins(types.NewCoin("atom", 10)), "stream"))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var frame gateway.CallFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, "execute", frame.Operation)
	require.Equal(t, f.contract.String(), frame.Contract)
	require.Empty(t, frame.Error)
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t)
	f.get("/healthz")
	res := f.get("/metrics")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "counting_gateway_requests_total")
}
