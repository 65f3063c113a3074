package server

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestRespondJSONLogsEncodeFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := New(nil, nil, nil, logger.WithField("component", "server"))

	rec := httptest.NewRecorder()
	// +Inf has no JSON encoding, so the encoder fails after headers are sent.
	s.respondJSON(rec, http.StatusOK, map[string]float64{"v": math.Inf(1)})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if entries[0].Level != logrus.ErrorLevel {
		t.Errorf("level = %s, want error", entries[0].Level)
	}
}

func TestRespondJSONNilLogger(t *testing.T) {
	s := New(nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	s.respondJSON(rec, http.StatusOK, map[string]float64{"v": math.Inf(1)})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
