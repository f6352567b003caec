package models

import "time"

// Clone возвращает глубокую копию счёта.
// Читатели хранилища сессий получают копии и не могут
// повлиять на оригинал.
func (a *Account) Clone() Account {
	cp := *a
	cp.LastConnected = cloneTime(a.LastConnected)
	cp.LastSync = cloneTime(a.LastSync)
	return cp
}

// Clone возвращает глубокую копию снапшота.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	cp := *s
	cp.Positions = make([]Position, len(s.Positions))
	for i, p := range s.Positions {
		cp.Positions[i] = p
		cp.Positions[i].SL = cloneFloat(p.SL)
		cp.Positions[i].TP = cloneFloat(p.TP)
	}
	cp.Orders = make([]PendingOrder, len(s.Orders))
	for i, o := range s.Orders {
		cp.Orders[i] = o
		cp.Orders[i].SL = cloneFloat(o.SL)
		cp.Orders[i].TP = cloneFloat(o.TP)
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}
