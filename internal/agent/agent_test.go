package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"expense/transaction"
)

func TestAgent(t *testing.T) {
	port := dynaport.Get(1)[0]

	agent, err := New(Config{
		BindAddr:        fmt.Sprintf("127.0.0.1:%d", port),
		DatabaseDriver:  DriverMemory,
		ShutdownTimeout: time.Second,
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, agent.Shutdown())
	}()

	baseURL := "http://" + agent.Addr().String()

	resp, err := http.Get(baseURL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "Expense Tracker API is running", string(body))

	resp, err = http.Post(baseURL+"/api/transactions", "application/json",
		strings.NewReader(`{"type":"Debit","amount":19.99,"category":"Books"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created transaction.Transaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp, err = http.Get(baseURL + "/api/transactions/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAgentShutdownIsIdempotent(t *testing.T) {
	port := dynaport.Get(1)[0]

	agent, err := New(Config{
		BindAddr:       fmt.Sprintf("127.0.0.1:%d", port),
		DatabaseDriver: DriverMemory,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, agent.Shutdown())
	require.NoError(t, agent.Shutdown())

	select {
	case <-agent.Done():
	default:
		t.Fatal("agent not marked as shut down")
	}

	_, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
	require.Error(t, err)
}

func TestAgentRejectsUnknownDriver(t *testing.T) {
	_, err := New(Config{
		BindAddr:       "127.0.0.1:0",
		DatabaseDriver: "sqlite",
		Logger:         zerolog.Nop(),
	})
	require.ErrorContains(t, err, `unknown database driver "sqlite"`)
}

func TestAgentRequiresKafkaTopic(t *testing.T) {
	_, err := New(Config{
		BindAddr:       "127.0.0.1:0",
		DatabaseDriver: DriverMemory,
		KafkaBrokers:   []string{"127.0.0.1:9092"},
		Logger:         zerolog.Nop(),
	})
	require.ErrorContains(t, err, "kafka topic is required")
}
