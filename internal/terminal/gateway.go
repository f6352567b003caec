package terminal

import (
	"context"
	"fmt"
	"time"

	"mt5bridge/internal/models"
)

// Gateway выдаёт эксклюзивный доступ к терминалу.
//
// Слот ровно один: пока идёт синхронизация одного счёта, остальные
// ждут. Если слот не освободился за acquireTimeout, вызывающий
// получает ErrGatewayBusy и решает сам, повторять ли попытку.
type Gateway struct {
	term           Terminal
	slot           chan struct{}
	acquireTimeout time.Duration
}

// NewGateway создаёт gateway поверх терминала.
func NewGateway(term Terminal, acquireTimeout time.Duration) *Gateway {
	return &Gateway{
		term:           term,
		slot:           make(chan struct{}, 1),
		acquireTimeout: acquireTimeout,
	}
}

// Acquire захватывает слот терминала.
// Возвращает функцию освобождения; её обязан вызвать захвативший.
func (g *Gateway) Acquire(ctx context.Context) (release func(), err error) {
	timer := time.NewTimer(g.acquireTimeout)
	defer timer.Stop()

	start := time.Now()

	select {
	case g.slot <- struct{}{}:
		AcquireWait.Observe(time.Since(start).Seconds())
		return func() { <-g.slot }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: slot not released within %v", ErrGatewayBusy, g.acquireTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrGatewayBusy, ctx.Err())
	}
}

// Session выполняет fn под эксклюзивным слотом терминала.
func (g *Gateway) Session(ctx context.Context, fn func(Terminal) error) error {
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return fn(g.term)
}

// Sync выполняет полный цикл синхронизации счёта под слотом:
// логин и чтение состояния одной сессией, без чужих логинов между ними.
func (g *Gateway) Sync(ctx context.Context, creds Credentials) (*models.Snapshot, error) {
	var snap *models.Snapshot

	err := g.Session(ctx, func(t Terminal) error {
		if err := t.Authenticate(ctx, creds); err != nil {
			return err
		}

		var err error
		snap, err = t.FetchSnapshot(ctx, creds)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
