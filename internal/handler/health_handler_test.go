package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"denguespot-chat/internal/testutil"
)

func TestHealth_ReturnsOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	Health(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
	testutil.AssertHeader(t, w, "Content-Type", "application/json")

	var response map[string]string
	err := json.NewDecoder(w.Body).Decode(&response)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, response["status"], "ok")
}

func TestHealthCheckResult_JSON(t *testing.T) {
	result := HealthCheckResult{
		Status:    "down",
		LatencyMs: 100,
		Error:     "connection refused",
	}

	data, err := json.Marshal(result)
	testutil.AssertNoError(t, err)

	var decoded map[string]interface{}
	err = json.Unmarshal(data, &decoded)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, decoded["status"].(string), "down")
	testutil.AssertEqual(t, decoded["latency_ms"].(float64), float64(100))
	testutil.AssertEqual(t, decoded["error"].(string), "connection refused")
}

func TestHealthCheckResult_OmitsEmptyFields(t *testing.T) {
	result := HealthCheckResult{Status: "up"}

	data, err := json.Marshal(result)
	testutil.AssertNoError(t, err)

	jsonStr := string(data)
	testutil.AssertNotContains(t, jsonStr, "latency_ms")
	testutil.AssertNotContains(t, jsonStr, "error")
	testutil.AssertNotContains(t, jsonStr, "metadata")
}
