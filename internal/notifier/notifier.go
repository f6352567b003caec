// Package notifier публикует события об изменениях счетов.
//
// После каждой синхронизации нотификатор сравнивает новое состояние
// счёта с последним разосланным. По умолчанию события без изменений
// подавляются, чтобы подписчики не получали идентичные кадры каждые
// две секунды; поведение переключается конфигурацией.
package notifier

import (
	"sync"

	jsoniter "github.com/json-iterator/go"

	"mt5bridge/internal/models"
	"mt5bridge/internal/store"
	"mt5bridge/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher доставляет событие подписчикам владельца счёта.
// Доставка fire-and-forget: медленный подписчик не должен
// блокировать синхронизацию.
type Publisher interface {
	PublishToUser(userID int, message []byte)
}

// AccountUpdate - событие об изменении счёта.
type AccountUpdate struct {
	Type      string                `json:"type"` // всегда "account_update"
	Account   models.Account        `json:"account"`
	Positions []models.Position     `json:"positions"`
	Orders    []models.PendingOrder `json:"orders"`
}

// fingerprint - сериализованная проекция состояния для сравнения.
// Отметки времени исключены: сам по себе факт синхронизации
// изменением не считается.
type fingerprint struct {
	Status       string                `json:"status"`
	ErrorMessage string                `json:"error_message"`
	Balance      float64               `json:"balance"`
	Equity       float64               `json:"equity"`
	Margin       float64               `json:"margin"`
	FreeMargin   float64               `json:"free_margin"`
	MarginLevel  float64               `json:"margin_level"`
	Leverage     int                   `json:"leverage"`
	Positions    []models.Position     `json:"positions"`
	Orders       []models.PendingOrder `json:"orders"`
}

// Notifier отслеживает последнее разосланное состояние каждого счёта.
type Notifier struct {
	pub           Publisher
	emitUnchanged bool
	log           *utils.Logger

	mu   sync.Mutex
	last map[int]string // id счёта -> отпечаток последнего события
}

// New создаёт нотификатор.
func New(pub Publisher, emitUnchanged bool, log *utils.Logger) *Notifier {
	return &Notifier{
		pub:           pub,
		emitUnchanged: emitUnchanged,
		log:           log.WithComponent("notifier"),
		last:          make(map[int]string),
	}
}

// AccountChanged публикует событие по итогам синхронизации или смены
// статуса. Если состояние не отличается от последнего разосланного и
// подавление включено, событие не уходит.
func (n *Notifier) AccountChanged(sess store.Session) {
	fp := n.fingerprintOf(sess)

	n.mu.Lock()
	prev, seen := n.last[sess.Account.ID]
	unchanged := seen && prev == fp
	if !unchanged {
		n.last[sess.Account.ID] = fp
	}
	n.mu.Unlock()

	if unchanged && !n.emitUnchanged {
		return
	}

	payload, err := json.Marshal(n.eventOf(sess))
	if err != nil {
		n.log.Error("Не удалось сериализовать событие счёта",
			utils.AccountID(sess.Account.ID), utils.Err(err))
		return
	}

	n.pub.PublishToUser(sess.Account.UserID, payload)
}

// Forget стирает память о счёте. Вызывается при удалении: если счёт
// зарегистрируют заново под тем же id, первое событие уйдёт всегда.
func (n *Notifier) Forget(accountID int) {
	n.mu.Lock()
	delete(n.last, accountID)
	n.mu.Unlock()
}

// Event возвращает сериализованное текущее состояние счёта.
// Используется для выдачи начального состояния новому подписчику.
func (n *Notifier) Event(sess store.Session) ([]byte, error) {
	return json.Marshal(n.eventOf(sess))
}

func (n *Notifier) eventOf(sess store.Session) AccountUpdate {
	ev := AccountUpdate{
		Type:      "account_update",
		Account:   sess.Account,
		Positions: []models.Position{},
		Orders:    []models.PendingOrder{},
	}
	if sess.Snapshot != nil {
		ev.Positions = sess.Snapshot.Positions
		ev.Orders = sess.Snapshot.Orders
	}
	return ev
}

func (n *Notifier) fingerprintOf(sess store.Session) string {
	fp := fingerprint{
		Status:       sess.Account.Status,
		ErrorMessage: sess.Account.ErrorMessage,
		Balance:      sess.Account.Balance,
		Equity:       sess.Account.Equity,
		Margin:       sess.Account.Margin,
		FreeMargin:   sess.Account.FreeMargin,
		MarginLevel:  sess.Account.MarginLevel,
		Leverage:     sess.Account.Leverage,
	}
	if sess.Snapshot != nil {
		fp.Positions = sess.Snapshot.Positions
		fp.Orders = sess.Snapshot.Orders
	}

	buf, err := json.Marshal(fp)
	if err != nil {
		// Снапшот состоит из простых типов, сюда попадать не должны
		return ""
	}
	return string(buf)
}
