package live

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	hub := NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		server.Close()
	})

	require.Eventually(t, func() bool {
		clients, _ := hub.Stats()
		return clients == 1
	}, 2*time.Second, 5*time.Millisecond)

	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var message Message
	require.NoError(t, json.Unmarshal(data, &message))
	return message
}

func TestHub_BroadcastLocation(t *testing.T) {
	hub, conn := startHub(t)

	hub.BroadcastLocation(models.LocationUpdate{
		Fix:   models.LocationFix{Latitude: 37.5665, Longitude: 126.978},
		Count: 7,
	})

	message := readMessage(t, conn)
	assert.Equal(t, "location", message.Type)

	data, ok := message.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), data["count"])

	_, lastCount := hub.Stats()
	assert.Equal(t, int64(7), lastCount)
}

func TestHub_PumpForwardsUpdates(t *testing.T) {
	hub, conn := startHub(t)
	updates := make(chan models.LocationUpdate, 1)

	done := make(chan struct{})
	go func() {
		hub.Pump(context.Background(), updates)
		close(done)
	}()

	updates <- models.LocationUpdate{Count: 1}
	message := readMessage(t, conn)
	assert.Equal(t, "location", message.Type)

	close(updates)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after channel close")
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, conn := startHub(t)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool {
		clients, _ := hub.Stats()
		return clients == 0
	}, 2*time.Second, 5*time.Millisecond)
}
