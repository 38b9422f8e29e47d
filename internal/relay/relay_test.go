package relay

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcode-scanner/internal/domain"
	"barcode-scanner/internal/infrastructure/logger"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	log := logger.NewWithWriter(logger.Config{Level: "error", Format: "json"}, io.Discard)
	server := httptest.NewServer(NewServer(dir, log).Handler())
	t.Cleanup(server.Close)
	return server, dir
}

func readScans(t *testing.T, dir string) []domain.ScanResult {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "scans_*.jsonl"))
	require.NoError(t, err)
	if len(files) == 0 {
		return nil
	}

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	var scans []domain.ScanResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r domain.ScanResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		scans = append(scans, r)
	}
	return scans
}

func TestRelayRecordsScans(t *testing.T) {
	server, dir := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(domain.ScanResult{Text: "123456789012", Format: "UPC_A"}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"text":""}`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x00, 0x01}))
	require.NoError(t, conn.WriteJSON(domain.ScanResult{Text: "4006381333931"}))
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool { return len(readScans(t, dir)) == 2 }, 2*time.Second, 10*time.Millisecond)

	scans := readScans(t, dir)
	assert.Equal(t, "123456789012", scans[0].Text)
	assert.Equal(t, "4006381333931", scans[1].Text)
	assert.False(t, scans[1].ScannedAt.IsZero())
}

func TestRelayStatusPage(t *testing.T) {
	server, dir := newTestServer(t)

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), dir)
}

func TestScanWriterClosed(t *testing.T) {
	w, err := NewScanWriter(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Write(domain.ScanResult{Text: "x"}), os.ErrClosed)
	assert.NoError(t, w.Close())
}
