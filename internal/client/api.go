// Package client provides the HTTP API client flash-cli uses to drive a
// flashd daemon, generalizing the teacher's api.go (hasher-host JSON API
// client) to the flashing operator surface (§6).
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient talks to a flashd instance's JSON API.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewAPIClient builds a client for flashd listening on the given port.
func NewAPIClient(port int) *APIClient {
	return &APIClient{
		BaseURL: fmt.Sprintf("http://localhost:%d", port),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StartFlash submits a read/write/erase/backup_gpt/restore_gpt/dump_memory
// task against the named partition/LUN (§6).
func (c *APIClient) StartFlash(req FlashRequest) (*FlashAcceptedResponse, error) {
	resp, err := c.post("/api/v1/flash", req)
	if err != nil {
		return nil, err
	}
	var result FlashAcceptedResponse
	if err := json.Unmarshal(*resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// Status polls a running task's progress.
func (c *APIClient) Status(taskID string) (*TaskStatusResponse, error) {
	resp, err := c.get("/api/v1/status/" + taskID)
	if err != nil {
		return nil, err
	}
	var result TaskStatusResponse
	if err := json.Unmarshal(*resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// Devices lists currently attached EDL devices.
func (c *APIClient) Devices() (*DevicesResponse, error) {
	resp, err := c.get("/api/v1/devices")
	if err != nil {
		return nil, err
	}
	var result DevicesResponse
	if err := json.Unmarshal(*resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// GetHealth calls flashd's health endpoint.
func (c *APIClient) GetHealth() (*HealthResponse, error) {
	resp, err := c.get("/api/v1/health")
	if err != nil {
		return nil, err
	}
	var result HealthResponse
	if err := json.Unmarshal(*resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// Cancel requests that a running task's transport be force-closed.
func (c *APIClient) Cancel(taskID string) error {
	_, err := c.post("/api/v1/cancel/"+taskID, nil)
	return err
}

func (c *APIClient) post(endpoint string, data interface{}) (*json.RawMessage, error) {
	var body []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = b
	}

	resp, err := c.HTTPClient.Post(c.BaseURL+endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp)
}

func (c *APIClient) get(endpoint string) (*json.RawMessage, error) {
	resp, err := c.HTTPClient.Get(c.BaseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp)
}

func decodeOrError(resp *http.Response) (*json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		preview := string(respBody)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, preview)
	}

	var result json.RawMessage
	if err := json.Unmarshal(respBody, &result); err != nil {
		preview := string(respBody)
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		return nil, fmt.Errorf("failed to decode JSON response: %w (response: %s)", err, preview)
	}
	return &result, nil
}

// FlashRequest is the JSON body flash-cli posts to /api/v1/flash.
type FlashRequest struct {
	Operation     string `json:"operation"` // read_partition/write_partition/erase_partition/backup_gpt/restore_gpt/dump_memory/reboot
	Partition     string `json:"partition,omitempty"`
	LUN           int    `json:"lun"`
	FilePath      string `json:"file_path,omitempty"`
	MemoryAddress uint64 `json:"memory_address,omitempty"`
	MemorySize    uint64 `json:"memory_size,omitempty"`
	RebootMode    string `json:"reboot_mode,omitempty"`
	Vendor        string `json:"vendor,omitempty"`
}

// FlashAcceptedResponse is returned immediately; the task runs async.
type FlashAcceptedResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatusResponse reports one task's progress.
type TaskStatusResponse struct {
	TaskID   string `json:"task_id"`
	Phase    string `json:"phase"`
	Done     int64  `json:"done"`
	Total    int64  `json:"total"`
	Finished bool   `json:"finished"`
	Error    string `json:"error,omitempty"`
}

// DevicesResponse lists attached EDL devices.
type DevicesResponse struct {
	Devices []DeviceInfo `json:"devices"`
}

// DeviceInfo summarizes one attached device.
type DeviceInfo struct {
	Path    string `json:"path"`
	Chip    string `json:"chip,omitempty"`
	MsmID   uint32 `json:"msm_id,omitempty"`
	Vendor  string `json:"vendor,omitempty"`
}

// HealthResponse is flashd's liveness/readiness payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	ActiveTasks  int    `json:"active_tasks"`
}
