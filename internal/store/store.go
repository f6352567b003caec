// Package store хранит сессии торговых счетов в памяти.
//
// Хранилище - единственный источник текущего состояния счёта для
// API и синхронизатора. Записи обновляются атомарно, читатели
// всегда получают копию и не видят промежуточных состояний.
package store

import (
	"sort"
	"sync"
	"time"

	"mt5bridge/internal/models"
)

// Session - запись хранилища: счёт и его последний снапшот.
// Снапшот с позициями и ордерами живёт только в памяти,
// в БД уходят лишь скалярные поля счёта.
type Session struct {
	Account  models.Account
	Snapshot *models.Snapshot
}

// clone возвращает глубокую копию записи.
func (s *Session) clone() Session {
	return Session{
		Account:  s.Account.Clone(),
		Snapshot: s.Snapshot.Clone(),
	}
}

// Store - потокобезопасное хранилище сессий.
type Store struct {
	mu       sync.RWMutex
	sessions map[int]*Session
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		sessions: make(map[int]*Session),
	}
}

// Put добавляет или замещает запись счёта.
func (s *Store) Put(acc models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[acc.ID]
	if ok {
		// Снапшот сохраняем: замена метаданных счёта не должна
		// стирать последнее известное состояние терминала
		existing.Account = acc.Clone()
		return
	}
	s.sessions[acc.ID] = &Session{Account: acc.Clone()}
}

// Restore кладёт счёт, прочитанный из БД при старте сервиса.
// Снапшота в памяти после рестарта нет, поэтому счёт не может
// числиться подключённым: живые статусы сбрасываются в PENDING
// до первого цикла синхронизации.
func (s *Store) Restore(acc models.Account) {
	if acc.Status == models.StatusConnected || acc.Status == models.StatusConnecting {
		acc.Status = models.StatusPending
		acc.ErrorMessage = ""
	}
	s.Put(acc)
}

// Get возвращает копию записи счёта.
func (s *Store) Get(id int) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return sess.clone(), true
}

// List возвращает копии всех записей, упорядоченные по id счёта.
func (s *Store) List() []Session {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Account.ID < out[j].Account.ID
	})
	return out
}

// ListByUser возвращает копии записей счетов пользователя.
func (s *Store) ListByUser(userID int) []Session {
	s.mu.RLock()
	var out []Session
	for _, sess := range s.sessions {
		if sess.Account.UserID == userID {
			out = append(out, sess.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Account.ID < out[j].Account.ID
	})
	return out
}

// Update атомарно изменяет запись счёта через fn.
// Возвращает false, если счёта нет.
func (s *Store) Update(id int, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	fn(sess)
	return true
}

// ApplySnapshot атомарно записывает результат успешной синхронизации:
// снапшот, скалярные поля счёта, статус и отметки времени.
func (s *Store) ApplySnapshot(id int, snap *models.Snapshot) bool {
	now := time.Now().UTC()
	return s.Update(id, func(sess *Session) {
		sess.Snapshot = snap.Clone()
		sess.Account.ApplySnapshot(snap)
		sess.Account.Status = models.StatusConnected
		sess.Account.ErrorMessage = ""
		sess.Account.LastConnected = &now
		sess.Account.LastSync = &now
	})
}

// SetStatus атомарно меняет статус счёта и текст ошибки.
func (s *Store) SetStatus(id int, status, errorMessage string) bool {
	return s.Update(id, func(sess *Session) {
		sess.Account.Status = status
		sess.Account.ErrorMessage = errorMessage
	})
}

// Delete удаляет запись счёта.
func (s *Store) Delete(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len возвращает количество записей.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
