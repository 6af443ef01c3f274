package realtime

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/senyabanana/insurance-marketplace/internal/utils"

	"github.com/gorilla/websocket"
)

// envelope - событие, доставляемое в сокет-комнату.
type envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type routedMessage struct {
	room string
	data []byte
}

// Hub раздает события по комнатам подключенных клиентов.
// Доставка best-effort: нет подключения - событие теряется, долговременной
// записью остается уведомление в базе.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	emit       chan routedMessage
	rooms      map[string]map[*Client]bool
	logger     *log.Logger
	upgrader   websocket.Upgrader
}

// NewHub создает новый экземпляр Hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		emit:       make(chan routedMessage, 256),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run обслуживает регистрацию клиентов и рассылку событий.
// Запускается одной горутиной из main.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			clients := h.rooms[client.room]
			if clients == nil {
				clients = make(map[*Client]bool)
				h.rooms[client.room] = clients
			}
			clients[client] = true
		case client := <-h.unregister:
			if clients, ok := h.rooms[client.room]; ok {
				if clients[client] {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
		case message := <-h.emit:
			for client := range h.rooms[message.room] {
				select {
				case client.send <- message.data:
				default:
					// Медленный клиент не должен задерживать остальных.
					delete(h.rooms[message.room], client)
					close(client.send)
				}
			}
		}
	}
}

// Emit отправляет событие в комнату. Никогда не блокирует вызывающего:
// при переполнении канала событие отбрасывается с записью в лог.
func (h *Hub) Emit(room, event string, payload interface{}) {
	data, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		h.logger.Printf("realtime: failed to marshal %s event: %v", event, err)
		return
	}
	select {
	case h.emit <- routedMessage{room: room, data: data}:
	default:
		h.logger.Printf("realtime: emit buffer full, dropping %s event for %s", event, room)
	}
}

// ServeWS обрабатывает подключение клиента к своей сокет-комнате.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userId := utils.GetUserID(r)
	if userId == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "userId is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("realtime: upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		room: "user_" + userId,
		send: make(chan []byte, 64),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
