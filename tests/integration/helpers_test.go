//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
}

func uniqueHandle(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func registerPlayer(t *testing.T, baseURL, instanceID, handle string) {
	t.Helper()

	resp := postJSON(t, baseURL+"/api/registerPlayer", map[string]string{
		"handle":     handle,
		"instanceId": instanceID,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected register response status: %d", resp.StatusCode)
	}
}

func createInstance(t *testing.T, baseURL string) string {
	t.Helper()

	resp := postJSON(t, baseURL+"/api/instances", map[string]string{})
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		t.Fatalf("unexpected create instance status: %d", resp.StatusCode)
	}

	var out struct {
		InstanceID string `json:"instanceId"`
	}
	decodeBody(t, resp, &out)
	if out.InstanceID == "" {
		t.Fatal("empty instance id in create response")
	}
	return out.InstanceID
}
