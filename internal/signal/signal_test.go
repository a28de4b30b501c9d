package signal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"autotrader/internal/models"
)

type fixedPrice struct {
	price float64
	err   error
}

func (f fixedPrice) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return f.price, f.err
}

// ============ SimulatedSource Tests ============

func TestSimulatedSource_Targets(t *testing.T) {
	src := NewSimulatedSource(fixedPrice{price: 100}, 1)

	for i := 0; i < 50; i++ {
		sig, err := src.GetSignal(context.Background(), "BTCUSDT")
		if err != nil {
			t.Fatalf("GetSignal() error = %v", err)
		}
		if !models.IsValidAction(sig.Action) {
			t.Fatalf("invalid action %q", sig.Action)
		}
		if sig.Confidence < 0.5 || sig.Confidence >= 1 {
			t.Fatalf("confidence %v out of [0.5, 1)", sig.Confidence)
		}
		if sig.StopLoss >= 100 || sig.TakeProfit <= 100 {
			t.Fatalf("targets SL=%v TP=%v must surround price 100", sig.StopLoss, sig.TakeProfit)
		}
		if sig.Symbol != "BTCUSDT" {
			t.Fatalf("symbol = %s", sig.Symbol)
		}
	}
}

func TestSimulatedSource_AllActions(t *testing.T) {
	src := NewSimulatedSource(fixedPrice{price: 100}, 3)
	seen := map[string]bool{}

	for i := 0; i < 200; i++ {
		sig, _ := src.GetSignal(context.Background(), "ETHUSDT")
		seen[sig.Action] = true
	}
	for _, a := range []string{models.ActionBuy, models.ActionSell, models.ActionHold} {
		if !seen[a] {
			t.Errorf("action %s never generated", a)
		}
	}
}

func TestSimulatedSource_PriceError(t *testing.T) {
	priceErr := errors.New("exchange down")
	src := NewSimulatedSource(fixedPrice{err: priceErr}, 1)

	_, err := src.GetSignal(context.Background(), "BTCUSDT")
	if !errors.Is(err, priceErr) {
		t.Errorf("GetSignal() error = %v, want wrapped %v", err, priceErr)
	}
}

// Цели строятся от переданной цены, без обращения к бирже
func TestSimulatedSource_GetSignalAt(t *testing.T) {
	src := NewSimulatedSource(fixedPrice{err: errors.New("must not be called")}, 1)

	sig, err := src.GetSignalAt(context.Background(), "BTCUSDT", 200)
	if err != nil {
		t.Fatalf("GetSignalAt() error = %v", err)
	}
	if sig.StopLoss != 200*stopLossRatio || sig.TakeProfit != 200*takeProfitRatio {
		t.Errorf("targets SL=%v TP=%v, want derived from 200", sig.StopLoss, sig.TakeProfit)
	}

	if _, err := src.GetSignalAt(context.Background(), "BTCUSDT", 0); err == nil {
		t.Error("GetSignalAt() expected error for zero price")
	}

	var _ QuotedSource = src
}

// ============ HTTPSource Tests ============

func TestHTTPSource_GetSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"symbol":"BTCUSDT"`) {
			t.Errorf("request body = %s", body)
		}
		w.Write([]byte(`{
			"prediction": "buy",
			"confidence": 0.82,
			"reason": "momentum",
			"targets": {"short_term": 35700, "medium_term": 36750, "stop_loss": 33950}
		}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.Client())
	sig, err := src.GetSignal(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetSignal() error = %v", err)
	}

	if sig.Action != models.ActionBuy {
		t.Errorf("Action = %s, want BUY", sig.Action)
	}
	if sig.Confidence != 0.82 {
		t.Errorf("Confidence = %v, want 0.82", sig.Confidence)
	}
	if sig.StopLoss != 33950 || sig.TakeProfit != 35700 || sig.TargetPrice != 36750 {
		t.Errorf("targets = SL %v TP %v target %v", sig.StopLoss, sig.TakeProfit, sig.TargetPrice)
	}
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"bad json", http.StatusOK, `not json`},
		{"unknown action", http.StatusOK, `{"prediction":"SHORT","confidence":0.9}`},
		{"confidence out of range", http.StatusOK, `{"prediction":"BUY","confidence":1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			src := NewHTTPSource(srv.URL, srv.Client())
			if _, err := src.GetSignal(context.Background(), "BTCUSDT"); err == nil {
				t.Error("GetSignal() expected error")
			}
		})
	}
}

func TestHTTPSource_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"prediction":"HOLD","confidence":0.6}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.Client())
	src.retryCfg.InitialDelay = time.Millisecond

	sig, err := src.GetSignal(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("GetSignal() error = %v", err)
	}
	if sig.Action != models.ActionHold {
		t.Errorf("Action = %s, want HOLD", sig.Action)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestHTTPSource_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.Client())
	if _, err := src.GetSignal(context.Background(), "ETHUSDT"); err == nil {
		t.Fatal("GetSignal() expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}
