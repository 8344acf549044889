package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/daehwan-kim/tradeflow/pkg/engine"
	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/portfolio"
)

// Server exposes the engine's order state over REST and streams order events
// over WebSocket.
type Server struct {
	handler   *engine.TransactionHandler
	portfolio *portfolio.Portfolio
	router    *mux.Router
	hub       *Hub
	logger    *zap.Logger
}

func NewServer(handler *engine.TransactionHandler, p *portfolio.Portfolio, hub *Hub, logger *zap.Logger) *Server {
	s := &Server{
		handler:   handler,
		portfolio: p,
		router:    mux.NewRouter(),
		hub:       hub,
		logger:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/events", s.handleGetOrderEvents).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/cash", s.handleGetCash).Methods("GET")

	s.router.HandleFunc("/ws", s.hub.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub and serves HTTP until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	s.logger.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	open := s.handler.OpenOrders()
	out := make([]orderInfo, len(open))
	for i, o := range open {
		out[i] = toOrderInfo(o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, found := s.handler.Order(id)
	if !found {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, toOrderInfo(order))
}

func (s *Server) handleGetOrderEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	ticket, found := s.handler.Ticket(id)
	if !found {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	events := ticket.Events()
	out := make([]orderEventMessage, len(events))
	for i, e := range events {
		out[i] = orderEventMessage{
			Type:         "orderEvent",
			OrderID:      e.OrderID,
			Symbol:       e.Symbol,
			Status:       e.Status,
			FillPrice:    e.FillPrice.String(),
			FillQuantity: e.FillQuantity,
			Message:      e.Message,
			Time:         e.Time,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var body submitOrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := orders.OrderKindFromString(body.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	request := orders.NewSubmitOrderRequest(s.handler.NextOrderID(), body.Symbol, body.Quantity, kind, nowUTC())
	request.Tag = body.Tag
	if body.Duration != "" {
		duration, err := orders.OrderDurationFromString(body.Duration)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		request.Duration = duration
	}
	if body.Expiry != nil {
		request.DurationValue = *body.Expiry
	}
	if body.LimitPrice != "" {
		p, err := decimal.NewFromString(body.LimitPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit price")
			return
		}
		request.LimitPrice = p
	}
	if body.StopPrice != "" {
		p, err := decimal.NewFromString(body.StopPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid stop price")
			return
		}
		request.StopPrice = p
	}

	ticket := s.handler.AddOrder(request)
	resp, _ := request.Response()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"orderId":  ticket.OrderID(),
		"status":   ticket.Status().String(),
		"response": toResponseInfo(resp),
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var body cancelOrderBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	ticket, found := s.handler.Ticket(id)
	if !found {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	resp := ticket.Cancel(body.Tag)
	writeJSON(w, http.StatusOK, toResponseInfo(resp))
}

func (s *Server) handleGetCash(w http.ResponseWriter, r *http.Request) {
	balances := s.portfolio.CashBook.All()
	out := make([]cashInfo, len(balances))
	for i, c := range balances {
		out[i] = cashInfo{
			Symbol:         c.Symbol,
			Amount:         c.Amount.String(),
			ConversionRate: c.ConversionRate.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
