// Package broker содержит справочник поддерживаемых брокеров.
package broker

import "sort"

// Broker - запись справочника: имя брокера и его торговые серверы.
type Broker struct {
	Name    string   `json:"name"`
	Servers []string `json:"servers"`
}

// Статический справочник. Список редактируется здесь,
// отдельного хранилища для него нет.
var directory = map[string]Broker{
	"XM": {
		Name:    "XM",
		Servers: []string{"XMGlobal-MT5", "XMGlobal-MT5 2", "XMGlobal-MT5 5"},
	},
	"Exness": {
		Name:    "Exness",
		Servers: []string{"Exness-MT5Real", "Exness-MT5Real2", "Exness-MT5Trial"},
	},
	"FXTM": {
		Name:    "FXTM",
		Servers: []string{"ForexTimeFXTM-ECN", "ForexTimeFXTM-Standard"},
	},
	"IC Markets": {
		Name:    "IC Markets",
		Servers: []string{"ICMarketsSC-MT5", "ICMarketsSC-MT5-2", "ICMarketsSC-Demo"},
	},
	"Pepperstone": {
		Name:    "Pepperstone",
		Servers: []string{"Pepperstone-MT5-Live01", "Pepperstone-MT5-Demo"},
	},
}

// List возвращает всех брокеров, упорядоченных по имени.
func List() []Broker {
	out := make([]Broker, 0, len(directory))
	for _, b := range directory {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Get возвращает брокера по имени.
func Get(name string) (Broker, bool) {
	b, ok := directory[name]
	return b, ok
}

// Known сообщает, есть ли брокер в справочнике.
func Known(name string) bool {
	_, ok := directory[name]
	return ok
}

// KnownServer сообщает, принадлежит ли сервер указанному брокеру.
// Для неизвестного брокера всегда false.
func KnownServer(brokerName, server string) bool {
	b, ok := directory[brokerName]
	if !ok {
		return false
	}
	for _, s := range b.Servers {
		if s == server {
			return true
		}
	}
	return false
}
