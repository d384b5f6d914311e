package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"expense/internal/events"
	hub "expense/internal/events/websocket"
	"expense/transaction"
	"expense/transaction/options"
)

func TestServer(t *testing.T) {
	cases := map[string]func(t *testing.T, client *client, config *Config){
		"success: health check":                          testHealth,
		"success: create a transaction":                  testCreate,
		"success: description defaults to empty":         testCreateWithoutDescription,
		"fail: create without amount":                    testCreateMissingAmount,
		"fail: create with nothing":                      testCreateMissingEverything,
		"fail: create with unknown type":                 testCreateInvalidType,
		"fail: create with non numeric amount":           testCreateInvalidAmount,
		"fail: malformed json":                           testInvalidJSON,
		"success: list newest first":                     testListOrder,
		"success: list empty":                            testListEmpty,
		"success: list filters":                          testListFilters,
		"fail: list with bad filter":                     testListBadFilter,
		"fail: get unknown id":                           testGetNotFound,
		"success: update category keeps the rest":        testUpdateCategory,
		"fail: update with invalid values":               testUpdateInvalid,
		"fail: update unknown id":                        testUpdateNotFound,
		"success: delete then get":                       testDelete,
		"success: created, updated and deleted streamed": testStream,
		"success: trailing slash":                        testTrailingSlash,
	}
	for description, fn := range cases {
		t.Run(description, func(t *testing.T) {
			client, config, teardown := testSetup(t, nil)
			defer teardown()
			fn(t, client, config)
		})
	}
}

type client struct {
	t   *testing.T
	url string
}

func (c *client) do(method, path, body string) (*http.Response, []byte) {
	c.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.url+path, reader)
	require.NoError(c.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, b
}

func (c *client) create(body string) *transaction.Transaction {
	c.t.Helper()

	resp, b := c.do(http.MethodPost, "/api/transactions", body)
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, string(b))

	var got transaction.Transaction
	require.NoError(c.t, json.Unmarshal(b, &got))
	return &got
}

func testSetup(t *testing.T, fn func(*Config)) (c *client, cfg *Config, teardown func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	stream := hub.NewHub(zerolog.Nop())
	go stream.Run(ctx)

	service, err := transaction.NewService(&transaction.Config{
		Repo:      transaction.NewMemoryRepo(),
		Publisher: events.Multi{stream},
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	cfg = &Config{
		Service: service,
		Stream:  stream,
		Logger:  zerolog.Nop(),
	}
	if fn != nil {
		fn(cfg)
	}

	srv := httptest.NewServer(NewHandler(cfg))
	c = &client{t: t, url: srv.URL}

	return c, cfg, func() {
		cancel()
		srv.Close()
	}
}

func decodeError(t *testing.T, b []byte) ErrorResponse {
	t.Helper()
	var got ErrorResponse
	require.NoError(t, json.Unmarshal(b, &got), string(b))
	return got
}

func testHealth(t *testing.T, c *client, _ *Config) {
	resp, b := c.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, healthMessage, string(b))
	require.NotEmpty(t, resp.Header.Get("Request-Id"))
}

func testCreate(t *testing.T, c *client, _ *Config) {
	before := time.Now()
	got := c.create(`{"type":"Credit","amount":250.75,"category":"Salary","description":"March pay"}`)

	require.NotEmpty(t, got.ID)
	require.Equal(t, transaction.Credit, got.Type)
	require.True(t, decimal.RequireFromString("250.75").Equal(got.Amount), got.Amount.String())
	require.Equal(t, "Salary", got.Category)
	require.Equal(t, "March pay", got.Description)
	require.WithinDuration(t, before, got.Timestamp, 5*time.Second)

	// the stored record is what came back
	resp, b := c.do(http.MethodGet, "/api/transactions/"+got.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stored transaction.Transaction
	require.NoError(t, json.Unmarshal(b, &stored))
	require.Equal(t, got.ID, stored.ID)
	require.True(t, got.Amount.Equal(stored.Amount))
}

func testCreateWithoutDescription(t *testing.T, c *client, _ *Config) {
	got := c.create(`{"type":"Debit","amount":0,"category":"Misc"}`)
	require.Equal(t, "", got.Description)
	require.True(t, got.Amount.IsZero())
}

func testCreateMissingAmount(t *testing.T, c *client, _ *Config) {
	resp, b := c.do(http.MethodPost, "/api/transactions", `{"type":"Debit","category":"Food"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got := decodeError(t, b)
	require.Equal(t, "Missing required fields", got.Error)
	require.Equal(t, []string{"amount"}, got.Missing)
}

func testCreateMissingEverything(t *testing.T, c *client, _ *Config) {
	resp, b := c.do(http.MethodPost, "/api/transactions", `{"amount":null,"category":""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, []string{"type", "amount", "category"}, decodeError(t, b).Missing)

	resp, b = c.do(http.MethodPost, "/api/transactions", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, []string{"type", "amount", "category"}, decodeError(t, b).Missing)
}

func testCreateInvalidType(t *testing.T, c *client, _ *Config) {
	resp, b := c.do(http.MethodPost, "/api/transactions", `{"type":"Invalid","amount":10,"category":"Food"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got := decodeError(t, b)
	require.Equal(t, "Invalid transaction data", got.Error)
	require.Equal(t, []string{"type"}, got.Invalid)
	require.Empty(t, got.Missing)

	// nothing was stored
	_, b = c.do(http.MethodGet, "/api/transactions", "")
	require.JSONEq(t, `[]`, string(b))
}

func testCreateInvalidAmount(t *testing.T, c *client, _ *Config) {
	resp, b := c.do(http.MethodPost, "/api/transactions", `{"type":"Debit","amount":"lots","category":"Food"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got := decodeError(t, b)
	require.Equal(t, "Invalid transaction data", got.Error)
	require.Equal(t, []string{"amount"}, got.Invalid)

	resp, b = c.do(http.MethodPost, "/api/transactions", `{"type":"Debit","amount":"lots"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got = decodeError(t, b)
	require.Equal(t, "Missing required fields", got.Error)
	require.Equal(t, []string{"category"}, got.Missing)
	require.Equal(t, []string{"amount"}, got.Invalid)
}

func testTrailingSlash(t *testing.T, c *client, _ *Config) {
	resp, b := c.do(http.MethodPost, "/api/transactions/", `{"type":"Credit","amount":5,"category":"Gift"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(b))
	var created transaction.Transaction
	require.NoError(t, json.Unmarshal(b, &created))

	resp, b = c.do(http.MethodGet, "/api/transactions/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []transaction.Transaction
	require.NoError(t, json.Unmarshal(b, &all))
	require.Len(t, all, 1)

	resp, _ = c.do(http.MethodGet, "/api/transactions/"+created.ID+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func testInvalidJSON(t *testing.T, c *client, _ *Config) {
	for _, body := range []string{`{"type": "Credit",`, `[1, 2]`, `null`} {
		resp, b := c.do(http.MethodPost, "/api/transactions", body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		require.JSONEq(t, `{"error":"Invalid JSON"}`, string(b))
	}

	created := c.create(`{"type":"Credit","amount":1,"category":"Gift"}`)
	resp, b := c.do(http.MethodPut, "/api/transactions/"+created.ID, `{"category":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.JSONEq(t, `{"error":"Invalid JSON"}`, string(b))
}

func testListOrder(t *testing.T, c *client, _ *Config) {
	older := c.create(`{"type":"Debit","amount":5,"category":"Coffee","timestamp":"2024-01-01T08:00:00Z"}`)
	newer := c.create(`{"type":"Debit","amount":7,"category":"Lunch","timestamp":"2024-01-02T12:00:00Z"}`)

	resp, b := c.do(http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []transaction.Transaction
	require.NoError(t, json.Unmarshal(b, &got))
	require.Len(t, got, 2)
	require.Equal(t, newer.ID, got[0].ID)
	require.Equal(t, older.ID, got[1].ID)
}

func testListEmpty(t *testing.T, c *client, _ *Config) {
	resp, b := c.do(http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.JSONEq(t, `[]`, string(b))
}

func testListFilters(t *testing.T, c *client, _ *Config) {
	c.create(`{"type":"Credit","amount":1000,"category":"Salary","timestamp":"2024-02-01T00:00:00Z"}`)
	rent := c.create(`{"type":"Debit","amount":800,"category":"Rent","timestamp":"2024-02-02T00:00:00Z"}`)
	c.create(`{"type":"Debit","amount":12.5,"category":"Food","timestamp":"2024-02-03T00:00:00Z"}`)

	list := func(query string) []transaction.Transaction {
		resp, b := c.do(http.MethodGet, "/api/transactions?"+query, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(b))
		var got []transaction.Transaction
		require.NoError(t, json.Unmarshal(b, &got))
		return got
	}

	require.Len(t, list("type=Debit"), 2)
	require.Len(t, list("type=Debit&type=Credit"), 3)
	require.Len(t, list("category=Food&category=Salary"), 2)

	got := list("type=Debit&min_amount=100")
	require.Len(t, got, 1)
	require.Equal(t, rent.ID, got[0].ID)

	got = list("from=2024-02-02T00:00:00Z&to=2024-02-02T23:59:59Z")
	require.Len(t, got, 1)
	require.Equal(t, rent.ID, got[0].ID)
}

func testListBadFilter(t *testing.T, c *client, _ *Config) {
	resp, b := c.do(http.MethodGet, "/api/transactions?type=Refund&min_amount=ten&from=yesterday", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, []string{"type", "min_amount", "from"}, decodeError(t, b).Invalid)
}

func testGetNotFound(t *testing.T, c *client, _ *Config) {
	for _, id := range []string{"0b4bd1a8-3f40-4fd1-9a2c-6a0a6b2f1c11", "not-an-id"} {
		resp, b := c.do(http.MethodGet, "/api/transactions/"+id, "")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.JSONEq(t, `{"error":"Transaction not found"}`, string(b))
	}
}

func testUpdateCategory(t *testing.T, c *client, _ *Config) {
	created := c.create(`{"type":"Debit","amount":42,"category":"Food","description":"pizza"}`)

	resp, b := c.do(http.MethodPut, "/api/transactions/"+created.ID, `{"category":"Dining out"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(b))

	var updated transaction.Transaction
	require.NoError(t, json.Unmarshal(b, &updated))
	require.Equal(t, "Dining out", updated.Category)

	resp, b = c.do(http.MethodGet, "/api/transactions/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stored transaction.Transaction
	require.NoError(t, json.Unmarshal(b, &stored))

	require.Equal(t, "Dining out", stored.Category)
	require.Equal(t, created.ID, stored.ID)
	require.Equal(t, created.Type, stored.Type)
	require.True(t, created.Amount.Equal(stored.Amount))
	require.Equal(t, created.Description, stored.Description)
	require.True(t, created.Timestamp.Equal(stored.Timestamp))
}

func testUpdateInvalid(t *testing.T, c *client, _ *Config) {
	created := c.create(`{"type":"Debit","amount":42,"category":"Food"}`)

	resp, b := c.do(http.MethodPut, "/api/transactions/"+created.ID, `{"type":"Refund"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got := decodeError(t, b)
	require.Equal(t, "Invalid update data", got.Error)
	require.Equal(t, []string{"type"}, got.Invalid)

	resp, b = c.do(http.MethodPut, "/api/transactions/"+created.ID, `{"amount":null,"category":""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, []string{"amount", "category"}, decodeError(t, b).Missing)

	resp, b = c.do(http.MethodPut, "/api/transactions/"+created.ID, `{"amount":"lots"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got = decodeError(t, b)
	require.Equal(t, "Invalid update data", got.Error)
	require.Equal(t, []string{"amount"}, got.Invalid)
	require.Empty(t, got.Missing)

	// the record is untouched
	_, b = c.do(http.MethodGet, "/api/transactions/"+created.ID, "")
	var stored transaction.Transaction
	require.NoError(t, json.Unmarshal(b, &stored))
	require.Equal(t, transaction.Debit, stored.Type)
	require.Equal(t, "Food", stored.Category)
}

func testUpdateNotFound(t *testing.T, c *client, _ *Config) {
	resp, _ := c.do(http.MethodPut, "/api/transactions/0b4bd1a8-3f40-4fd1-9a2c-6a0a6b2f1c11", `{"category":"x"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func testDelete(t *testing.T, c *client, _ *Config) {
	created := c.create(`{"type":"Credit","amount":3,"category":"Refund"}`)

	resp, b := c.do(http.MethodDelete, "/api/transactions/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"message":"Transaction deleted successfully"}`, string(b))

	resp, _ = c.do(http.MethodGet, "/api/transactions/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = c.do(http.MethodDelete, "/api/transactions/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func testStream(t *testing.T, c *client, config *Config) {
	conn, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(c.url, "http")+"/api/transactions/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	stream := config.Stream.(*hub.Hub)
	require.Eventually(t, func() bool { return stream.Len() == 1 }, time.Second, 10*time.Millisecond)

	created := c.create(`{"type":"Credit","amount":9,"category":"Gift"}`)
	c.do(http.MethodPut, "/api/transactions/"+created.ID, `{"description":"from grandma"}`)
	c.do(http.MethodDelete, "/api/transactions/"+created.ID, "")

	for _, want := range []transaction.EventType{
		transaction.EventCreated,
		transaction.EventUpdated,
		transaction.EventDeleted,
	} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var got transaction.Event
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, want, got.Type)
		require.Equal(t, created.ID, got.ID)
	}
}

func TestServerStoreFailure(t *testing.T) {
	service, err := transaction.NewService(&transaction.Config{
		Repo:   brokenRepo{},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(&Config{Service: service, Logger: zerolog.Nop()}))
	defer srv.Close()
	c := &client{t: t, url: srv.URL}

	cases := []struct {
		method, path, body, want string
	}{
		{http.MethodGet, "/api/transactions", "", "Server error while fetching transactions"},
		{http.MethodGet, "/api/transactions/x", "", "Server error while fetching transaction"},
		{http.MethodPost, "/api/transactions", `{"type":"Credit","amount":1,"category":"a"}`, "Server error while creating transaction"},
		{http.MethodPut, "/api/transactions/x", `{"category":"b"}`, "Server error while updating transaction"},
		{http.MethodDelete, "/api/transactions/x", "", "Server error while deleting transaction"},
	}
	for _, tc := range cases {
		resp, b := c.do(tc.method, tc.path, tc.body)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode, tc.method+" "+tc.path)
		require.Equal(t, tc.want, decodeError(t, b).Error)
	}
}

func TestServerCORS(t *testing.T) {
	c, _, teardown := testSetup(t, func(cfg *Config) {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	})
	defer teardown()

	req, err := http.NewRequest(http.MethodGet, c.url+"/api/transactions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:27017: connect: connection refused")

type brokenRepo struct{}

func (brokenRepo) Create(context.Context, *transaction.Transaction) error { return errConnRefused }
func (brokenRepo) FindById(context.Context, string) (*transaction.Transaction, error) {
	return nil, errConnRefused
}
func (brokenRepo) Find(context.Context, ...*options.TransactionOptions) ([]*transaction.Transaction, error) {
	return nil, errConnRefused
}
func (brokenRepo) UpdateById(context.Context, string, transaction.Fields) (*transaction.Transaction, error) {
	return nil, errConnRefused
}
func (brokenRepo) DeleteById(context.Context, string) (*transaction.Transaction, error) {
	return nil, errConnRefused
}
