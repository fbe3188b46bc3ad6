package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/pose-guard/internal/pipeline"
)

func TestGuardHandler_Events(t *testing.T) {
	guard := newFakeGuard()
	guard.status = pipeline.Status{Initialized: true}
	h := NewGuardHandler(guard, t.TempDir(), nil)

	server := httptest.NewServer(http.HandlerFunc(h.Events))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	guard.events <- pipeline.Event{Type: pipeline.EventFrameProcessed, FrameNo: 1}
	guard.events <- pipeline.Event{Type: pipeline.EventAlertRaised, Message: "Alert: Ann"}

	var names []string
	var alertData string
	scanner := bufio.NewScanner(resp.Body)
	for alertData == "" && scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		} else if data, ok := strings.CutPrefix(line, "data: "); ok && len(names) == 2 {
			alertData = data
		}
	}

	if len(names) != 2 || names[0] != "status" || names[1] != "alert_raised" {
		t.Fatalf("events = %v, frame events should be skipped", names)
	}
	if !strings.Contains(alertData, `"message":"Alert: Ann"`) {
		t.Errorf("alert data = %s", alertData)
	}
}
