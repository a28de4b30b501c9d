package websocket

import (
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// broadcastBufferSize - ёмкость очереди broadcast; при переполнении сообщения отбрасываются
const broadcastBufferSize = 256

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Рассылает клиентам события торгового движка в реальном времени:
// обновления позиций, закрытые сделки и статистику.
//
// Функции:
// - Регистрация и отмена регистрации клиентов
// - Broadcast сообщений всем активным клиентам
// - Отключение медленных клиентов (переполнен буфер отправки)
// - Неблокирующая публикация: торговые циклы никогда не ждут hub
//
// Hub реализует bot.EventBroadcaster.
//
// Использование:
//
//	hub := NewHub(logger)
//	go hub.Run()
//	engine.SetBroadcaster(hub)
//	defer hub.Stop()
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Очередь сериализованных сообщений
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client

	// Закрывается в Stop
	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex

	dropped atomic.Int64

	log *utils.Logger
}

// NewHub создает новый Hub
func NewHub(log *utils.Logger) *Hub {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.WithComponent("ws_hub"),
	}
}

// Run запускает главный цикл Hub до вызова Stop
//
// Отправка идёт по копии списка клиентов без блокировки,
// медленные клиенты удаляются под write lock.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client connected", utils.Int("clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client disconnected", utils.Int("clients", total))

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// deliver отправляет сообщение всем клиентам и удаляет не успевающих
func (h *Hub) deliver(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) == 0 {
		return
	}

	h.mu.Lock()
	for _, client := range toRemove {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Warn("removed slow clients", utils.Int("removed", len(toRemove)), utils.Int("clients", total))
}

// closeAll закрывает каналы отправки всех клиентов (writePump отправит close frame)
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// Stop останавливает Run. Повторный вызов безопасен.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast сериализует сообщение и ставит его в очередь
//
// Не блокирует: если очередь заполнена, сообщение отбрасывается
// и увеличивается счётчик DroppedMessages.
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal broadcast message", utils.Err(err))
		return
	}
	h.BroadcastRaw(data)
}

// BroadcastRaw ставит в очередь уже сериализованное сообщение
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}

// ============ bot.EventBroadcaster ============

// BroadcastPositionUpdate отправляет снимок позиции
func (h *Hub) BroadcastPositionUpdate(pos *models.Position) {
	if pos == nil {
		return
	}
	h.Broadcast(NewPositionUpdateMessage(pos))
}

// BroadcastTradeClosed отправляет закрытую сделку
func (h *Hub) BroadcastTradeClosed(trade *models.TradeRecord) {
	if trade == nil {
		return
	}
	h.Broadcast(NewTradeClosedMessage(trade))
}

// BroadcastStatsUpdate отправляет статистику журнала
func (h *Hub) BroadcastStatsUpdate(stats *models.LedgerStats) {
	if stats == nil {
		return
	}
	h.Broadcast(NewStatsUpdateMessage(stats))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages - число сообщений, отброшенных из-за переполнения очереди
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
