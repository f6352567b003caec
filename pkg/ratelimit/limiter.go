package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - token bucket для темпа обращений к торговому терминалу.
//
// Ведро наполняется со скоростью rate токенов/сек до ёмкости burst,
// каждый вызов потребляет один токен. Burst пропускает пачку логинов
// при старте сервиса, постоянный поток выравнивается до rate.
// Брокеры блокируют счёт за частые попытки входа, поэтому логины
// проходят через limiter всегда.
//
// Использование:
//
//	limiter := NewRateLimiter(2, 5) // 2 логина/сек, burst 5
//	err := limiter.Wait(ctx)        // блокирующее ожидание
//	if limiter.Allow() { ... }      // неблокирующая проверка
type RateLimiter struct {
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter создаёт limiter со скоростью rate токенов/сек и
// ёмкостью burst. Неположительные значения заменяются умолчаниями.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < rate {
		burst = rate
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // полное ведро на старте
		lastRefill: time.Now(),
	}
}

// refill пополняет токены за прошедшее время. Вызывается под lock.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}

	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow пытается взять токен без блокировки.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	return false
}

// Tokens возвращает текущее количество доступных токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}
