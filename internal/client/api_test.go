package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*APIClient, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := &APIClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	return c, srv.Close
}

func TestStartFlashPostsAndDecodes(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/flash", r.URL.Path)
		var req FlashRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "write_partition", req.Operation)
		json.NewEncoder(w).Encode(FlashAcceptedResponse{TaskID: "task-1"})
	})
	defer closeFn()

	resp, err := c.StartFlash(FlashRequest{Operation: "write_partition", Partition: "boot"})
	require.NoError(t, err)
	require.Equal(t, "task-1", resp.TaskID)
}

func TestStatusDecodesProgress(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/status/task-1", r.URL.Path)
		json.NewEncoder(w).Encode(TaskStatusResponse{TaskID: "task-1", Phase: "provision", Done: 5, Total: 10})
	})
	defer closeFn()

	resp, err := c.Status("task-1")
	require.NoError(t, err)
	require.Equal(t, "provision", resp.Phase)
	require.Equal(t, int64(5), resp.Done)
}

func TestGetHealthSurfacesServerError(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "no device attached"})
	})
	defer closeFn()

	_, err := c.GetHealth()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "no device attached"))
}

func TestCancelPostsWithNilBody(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/cancel/task-9", r.URL.Path)
		w.Write([]byte("null"))
	})
	defer closeFn()

	require.NoError(t, c.Cancel("task-9"))
}
