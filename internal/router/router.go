package router

import (
	"net/http"

	"github.com/senyabanana/insurance-marketplace/internal/handlers"
	"github.com/senyabanana/insurance-marketplace/internal/realtime"
)

// InitRoutes регистрирует маршруты приложения. Каждый шаблон несет явный
// метод: безметодный литерал и одиночный метод с wildcard на той же глубине
// конфликтуют для ServeMux, и регистрация паникует.
func InitRoutes(requestHandler *handlers.RequestHandler, bidHandler *handlers.BidHandler, notificationHandler *handlers.NotificationHandler, chatHandler *handlers.ChatHandler, hub *realtime.Hub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", handlers.PingHandler)

	mux.HandleFunc("POST /api/requests/new", requestHandler.CreateRequest)
	mux.HandleFunc("GET /api/requests/my", requestHandler.GetUserRequests)
	mux.HandleFunc("GET /api/requests", requestHandler.GetRequests)
	mux.HandleFunc("GET /api/requests/{requestId}", requestHandler.GetRequest)
	mux.HandleFunc("DELETE /api/requests/{requestId}", requestHandler.DeleteRequest)
	mux.HandleFunc("PUT /api/requests/{requestId}/status", requestHandler.UpdateRequestStatus)
	mux.HandleFunc("PUT /api/requests/{requestId}/finalize", requestHandler.FinalizeRequest)
	mux.HandleFunc("PUT /api/requests/{requestId}/bids/{bidId}/respond", bidHandler.RespondToBid)

	mux.HandleFunc("POST /api/bids/new", bidHandler.CreateBid)
	mux.HandleFunc("GET /api/bids/my", bidHandler.GetUserBids)
	mux.HandleFunc("GET /api/bids/{requestId}/list", bidHandler.GetRequestBids)
	mux.HandleFunc("PUT /api/bids/{bidId}/accept", bidHandler.AcceptBid)
	mux.HandleFunc("PUT /api/bids/{bidId}/reject", bidHandler.RejectBid)
	mux.HandleFunc("PUT /api/bids/{bidId}/withdraw", bidHandler.WithdrawBid)

	mux.HandleFunc("GET /api/notifications", notificationHandler.GetNotifications)
	mux.HandleFunc("GET /api/notifications/unread_count", notificationHandler.GetUnreadCount)
	mux.HandleFunc("PUT /api/notifications/read_all", notificationHandler.MarkAllAsRead)
	mux.HandleFunc("PUT /api/notifications/{notificationId}/read", notificationHandler.MarkAsRead)
	mux.HandleFunc("DELETE /api/notifications/{notificationId}", notificationHandler.DeleteNotification)

	mux.HandleFunc("POST /api/chat/rooms", chatHandler.CreateRoom)
	mux.HandleFunc("GET /api/chat/rooms", chatHandler.GetRooms)
	mux.HandleFunc("GET /api/chat/rooms/{roomId}/messages", chatHandler.GetMessages)
	mux.HandleFunc("POST /api/chat/rooms/{roomId}/messages", chatHandler.SendMessage)
	mux.HandleFunc("PUT /api/chat/rooms/{roomId}/read", chatHandler.MarkRoomRead)

	mux.HandleFunc("GET /api/ws", hub.ServeWS)

	return mux
}
