package betshare_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vigorish/oddscore/internal/betshare"
	"github.com/vigorish/oddscore/pkg/models"
)

func TestFeedTracksLatestShare(t *testing.T) {
	upgrader := websocket.Upgrader{}

	messages := []string{
		`{"event_id":"game-1","market_type":"moneyline","side":"home","share":0.55}`,
		`{"event_id":"game-1","market_type":"moneyline","side":"home","share":0.65}`,
		`not json`,
		`{"event_id":"game-1","market_type":"moneyline","side":"away","share":1.5}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	feed := betshare.New(wsURL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if v, ok := feed.Share("game-1", models.MarketMoneyline, models.SideHome); ok && v == 0.65 {
			break
		}
		if time.Now().After(deadline) {
			v, ok := feed.Share("game-1", models.MarketMoneyline, models.SideHome)
			t.Fatalf("share = %v (present=%v), want 0.65", v, ok)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Out-of-range shares never land.
	if _, ok := feed.Share("game-1", models.MarketMoneyline, models.SideAway); ok {
		t.Error("share outside [0,1] should be dropped")
	}

	// Unknown sides report absence, not a zero value.
	if _, ok := feed.Share("game-2", models.MarketMoneyline, models.SideHome); ok {
		t.Error("unknown market side should report no data")
	}
}

// A dropped connection is reconnected promptly: the backoff resets after a
// successful connection instead of compounding across the feed's lifetime.
func TestFeedReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var conns int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		if atomic.AddInt32(&conns, 1) == 1 {
			// First connection: one update, then hang up.
			conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"event_id":"game-1","market_type":"moneyline","side":"home","share":0.55}`))
			conn.Close()
			return
		}

		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event_id":"game-1","market_type":"moneyline","side":"home","share":0.70}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	feed := betshare.New(wsURL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if v, ok := feed.Share("game-1", models.MarketMoneyline, models.SideHome); ok && v == 0.70 {
			break
		}
		if time.Now().After(deadline) {
			v, ok := feed.Share("game-1", models.MarketMoneyline, models.SideHome)
			t.Fatalf("share = %v (present=%v) after reconnect window, want 0.70", v, ok)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if atomic.LoadInt32(&conns) < 2 {
		t.Errorf("connections = %d, want at least 2", atomic.LoadInt32(&conns))
	}
}
