package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetBrokers(t *testing.T) {
	h := NewBrokerHandler()

	req := httptest.NewRequest("GET", "/api/v1/brokers", nil)
	rec := httptest.NewRecorder()
	h.GetBrokers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var brokers []struct {
		Name    string   `json:"name"`
		Servers []string `json:"servers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &brokers); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(brokers) == 0 {
		t.Fatal("broker directory is empty")
	}
	for _, b := range brokers {
		if b.Name == "" || len(b.Servers) == 0 {
			t.Errorf("broker %+v has no name or servers", b)
		}
	}
}
