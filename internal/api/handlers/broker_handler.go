package handlers

import (
	"net/http"

	"mt5bridge/internal/broker"
)

// BrokerHandler отдаёт справочник поддерживаемых брокеров
//
// Endpoints:
// - GET /api/v1/brokers - список брокеров с их торговыми серверами
type BrokerHandler struct{}

// NewBrokerHandler создает новый BrokerHandler
func NewBrokerHandler() *BrokerHandler {
	return &BrokerHandler{}
}

// GetBrokers возвращает справочник брокеров
// GET /api/v1/brokers
//
// Frontend использует список для выпадающих меню при регистрации счёта.
func (h *BrokerHandler) GetBrokers(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, broker.List())
}
