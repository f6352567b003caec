package models

import (
	"sort"
	"time"
)

// Snapshot представляет неизменяемое состояние торгового счёта на момент
// успешной синхронизации. Заменяется целиком при каждом цикле, никогда
// не патчится по полям.
type Snapshot struct {
	AccountName string  `json:"account_name,omitempty"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	FreeMargin  float64 `json:"free_margin"`
	MarginLevel float64 `json:"margin_level"`
	Leverage    int     `json:"leverage"`
	Currency    string  `json:"currency"`

	Positions []Position     `json:"positions"` // упорядочены по ticket
	Orders    []PendingOrder `json:"orders"`    // упорядочены по ticket

	AsOf time.Time `json:"as_of"`
}

// Position представляет открытую позицию на счёте
type Position struct {
	Ticket       string     `json:"ticket"`
	Symbol       string     `json:"symbol"`
	Type         string     `json:"type"` // BUY, SELL
	Volume       float64    `json:"volume"`
	OpenPrice    float64    `json:"open_price"`
	CurrentPrice float64    `json:"current_price"`
	SL           *float64   `json:"sl,omitempty"`
	TP           *float64   `json:"tp,omitempty"`
	Profit       float64    `json:"profit"`
	Swap         float64    `json:"swap"`
	Commission   float64    `json:"commission"`
	OpenTime     time.Time  `json:"open_time"`
}

// PendingOrder представляет отложенный ордер на счёте
type PendingOrder struct {
	Ticket    string    `json:"ticket"`
	Symbol    string    `json:"symbol"`
	Type      string    `json:"type"` // BUY_LIMIT, SELL_STOP, etc
	Volume    float64   `json:"volume"`
	Price     float64   `json:"price"`
	SL        *float64  `json:"sl,omitempty"`
	TP        *float64  `json:"tp,omitempty"`
	TimeSetup time.Time `json:"time_setup"`
}

// Normalize сортирует позиции и ордера по ticket.
// Вызывается при построении снапшота, чтобы сравнение и сериализация
// были детерминированными.
func (s *Snapshot) Normalize() {
	sort.Slice(s.Positions, func(i, j int) bool {
		return s.Positions[i].Ticket < s.Positions[j].Ticket
	})
	sort.Slice(s.Orders, func(i, j int) bool {
		return s.Orders[i].Ticket < s.Orders[j].Ticket
	})
}
