package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musekit/muse-bridge/internal/session"
)

func TestStreamDeliversSnapshotAndRevealFrames(t *testing.T) {
	r, _, _ := newTestRouter(t, "Hi", nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/chat-ws/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first session.Frame
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Snapshot)
	assert.Len(t, first.Snapshot.Messages, 1)

	w := postJSON(t, r, "/api/sessions/chat-ws/messages", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusAccepted, w.Code)

	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	var prefixes []string
	for {
		var f session.Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type != "reveal" {
			continue
		}
		prefixes = append(prefixes, f.Prefix)
		if f.Complete {
			break
		}
	}
	assert.Equal(t, []string{"H", "Hi"}, prefixes)
}
