package websocket

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// ============================================================
// Unit Tests
// ============================================================

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := NewOriginChecker([]string{"http://localhost:3000", "https://example.com"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},                       // empty origin allowed
		{"http://localhost:3000", true},  // allowed
		{"https://example.com", true},    // allowed
		{"http://evil.com", false},       // not allowed
		{"http://localhost:8080", false}, // not in list
	}

	for _, tt := range tests {
		got := checker.Check(tt.origin)
		if got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	for _, list := range [][]string{nil, {"*"}} {
		checker := NewOriginChecker(list)
		for _, origin := range []string{"http://localhost:3000", "https://evil.com"} {
			if !checker.Check(origin) {
				t.Errorf("origins=%v: Check(%q) = false", list, origin)
			}
		}
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := NewHub(utils.NewNopLogger())

	// Run не запущен: очередь заполняется и остальное отбрасывается
	for i := 0; i < broadcastBufferSize+10; i++ {
		hub.Broadcast(map[string]int{"i": i})
	}

	if hub.DroppedMessages() != 10 {
		t.Errorf("DroppedMessages = %d, want 10", hub.DroppedMessages())
	}
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	hub.Stop()
	hub.Stop() // повторный вызов безопасен

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("Hub.Run() did not exit after Stop()")
	}

	// После остановки Broadcast ничего не делает
	hub.Broadcast(map[string]string{"type": "late"})
	if hub.DroppedMessages() != 0 {
		t.Errorf("DroppedMessages = %d after stop, want 0", hub.DroppedMessages())
	}
}

func TestHub_SlowClientRemoved(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	// Буфер на одно сообщение, никто не читает
	slow := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- slow

	hub.BroadcastRaw([]byte(`{"n":1}`))
	hub.BroadcastRaw([]byte(`{"n":2}`))

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("slow client was not removed, clients = %d", hub.ClientCount())
	}

	// Канал закрыт хабом
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("send channel should be closed")
	}
}

// ============================================================
// Messages
// ============================================================

func TestNewPositionUpdateMessage(t *testing.T) {
	entry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pos := &models.Position{
		Symbol:           "BTCUSDT",
		State:            models.StateOpen,
		Side:             models.SideLong,
		Quantity:         0.002857,
		EntryPrice:       35000,
		UnrealizedPnl:    -10.00432,
		UnrealizedPnlPct: -10.004,
		EntryTime:        entry,
	}

	msg := NewPositionUpdateMessage(pos)
	if msg.Type != MessageTypePositionUpdate {
		t.Errorf("Type = %q", msg.Type)
	}
	if msg.Data.CurrentPrice != 35000 {
		t.Errorf("CurrentPrice = %v, want entry price for unmarked position", msg.Data.CurrentPrice)
	}
	if msg.Data.UnrealizedPnl != -10 {
		t.Errorf("UnrealizedPnl = %v, want -10", msg.Data.UnrealizedPnl)
	}
	if msg.Data.EntryTime != entry.UnixMilli() {
		t.Errorf("EntryTime = %d", msg.Data.EntryTime)
	}
	if msg.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}
}

func TestNewStatsUpdateMessage(t *testing.T) {
	stats := &models.LedgerStats{
		TotalTrades:   3,
		WinningTrades: 2,
		LosingTrades:  1,
		WinRate:       66.6666,
		TotalPnl:      12.345,
		ByReason:      map[string]int{models.CloseReasonSignal: 3},
	}

	msg := NewStatsUpdateMessage(stats)
	if msg.Data.WinRate != 66.67 {
		t.Errorf("WinRate = %v, want 66.67", msg.Data.WinRate)
	}
	if msg.Data.ByReason[models.CloseReasonSignal] != 3 {
		t.Errorf("ByReason = %v", msg.Data.ByReason)
	}
}

// ============================================================
// End-to-end через реальное соединение
// ============================================================

func TestHub_Handler_DeliversEvents(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub.Handler(nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("clients = %d, want 1", hub.ClientCount())
	}

	hub.BroadcastTradeClosed(&models.TradeRecord{
		ID:          "t-1",
		Symbol:      "ETHUSDT",
		Pnl:         4.2,
		CloseReason: models.CloseReasonTakeProfit,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got struct {
		Type string             `json:"type"`
		Data models.TradeRecord `json:"data"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if got.Type != string(MessageTypeTradeClosed) {
		t.Errorf("type = %q, want tradeClosed", got.Type)
	}
	if got.Data.ID != "t-1" || got.Data.CloseReason != models.CloseReasonTakeProfit {
		t.Errorf("data = %+v", got.Data)
	}
}

func TestHub_Handler_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub.Handler(NewOriginChecker([]string{"https://trader.example.com"})))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected handshake to fail for foreign origin")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("clients = %d, want 0", hub.ClientCount())
	}
}

func TestHub_NilEventsIgnored(t *testing.T) {
	hub := NewHub(nil)
	hub.BroadcastPositionUpdate(nil)
	hub.BroadcastTradeClosed(nil)
	hub.BroadcastStatsUpdate(nil)

	if len(hub.broadcast) != 0 {
		t.Errorf("queued %d messages for nil events", len(hub.broadcast))
	}
}

// ============================================================
// Parallel Stress Test
// ============================================================

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.BroadcastStatsUpdate(&models.LedgerStats{TotalTrades: id*operations + j})
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}

// ============================================================
// Benchmarks
// ============================================================

func BenchmarkHub_BroadcastPositionUpdate(b *testing.B) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	pos := &models.Position{
		Symbol:        "BTCUSDT",
		State:         models.StateOpen,
		Side:          models.SideLong,
		Quantity:      0.01,
		EntryPrice:    50000,
		CurrentPrice:  50100,
		UnrealizedPnl: 1,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastPositionUpdate(pos)
	}
}

func BenchmarkOriginChecker_Check(b *testing.B) {
	checker := NewOriginChecker([]string{"http://localhost:3000"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		checker.Check("http://localhost:3000")
	}
}
