// Package syncer периодически синхронизирует счета с терминалом.
//
// Движок работает от одного тикера: каждый тик он выбирает счета,
// которым пора синхронизироваться, и раздаёт их ограниченному пулу
// воркеров. Один счёт никогда не синхронизируется в два потока, а
// доступ к терминалу сериализует gateway.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mt5bridge/internal/config"
	"mt5bridge/internal/models"
	"mt5bridge/internal/store"
	"mt5bridge/internal/terminal"
	"mt5bridge/pkg/retry"
	"mt5bridge/pkg/utils"
)

var (
	// ErrSyncInFlight - по счёту уже идёт синхронизация.
	ErrSyncInFlight = errors.New("sync already in flight for this account")

	// ErrAccountNotFound - счёта нет в хранилище сессий.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountDisabled - счёт отключен и не синхронизируется.
	ErrAccountDisabled = errors.New("account is disabled")
)

// TerminalGateway выполняет цикл синхронизации под слотом терминала.
type TerminalGateway interface {
	Sync(ctx context.Context, creds terminal.Credentials) (*models.Snapshot, error)
}

// CredentialOpener восстанавливает учётные данные счёта.
// Пароль расшифровывается только на время операции терминала.
type CredentialOpener interface {
	Open(acc models.Account) (terminal.Credentials, error)
}

// Persister записывает результаты синхронизации в долговременное
// хранилище. Ошибки записи не прерывают синхронизацию.
type Persister interface {
	SaveSyncResult(ctx context.Context, acc models.Account) error
	SaveStatus(ctx context.Context, id int, status, errorMessage string) error
}

// ChangeNotifier публикует события об изменениях счёта.
type ChangeNotifier interface {
	AccountChanged(sess store.Session)
}

// accountRuntime - счётчики синхронизации одного счёта.
// Живут только в памяти движка.
type accountRuntime struct {
	attempts     int       // неудачные попытки подряд
	nextEligible time.Time // раньше этого времени счёт не трогаем
	inFlight     bool
	gen          uint64 // поколение: растёт при отмене, устаревшие результаты выбрасываются
}

// Engine - движок фоновой синхронизации.
type Engine struct {
	cfg     config.SyncConfig
	gateway TerminalGateway
	creds   CredentialOpener
	st      *store.Store
	repo    Persister
	notify  ChangeNotifier
	backoff retry.Config
	log     *utils.Logger

	mu      sync.Mutex
	runtime map[int]*accountRuntime

	workers chan struct{}
	wg      sync.WaitGroup
}

// New создаёт движок синхронизации.
func New(
	cfg config.SyncConfig,
	gateway TerminalGateway,
	creds CredentialOpener,
	st *store.Store,
	repo Persister,
	notify ChangeNotifier,
	log *utils.Logger,
) *Engine {
	return &Engine{
		cfg:     cfg,
		gateway: gateway,
		creds:   creds,
		st:      st,
		repo:    repo,
		notify:  notify,
		backoff: retry.Config{
			InitialDelay: cfg.BackoffInitial,
			MaxDelay:     cfg.BackoffMax,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		log:     log.WithComponent("syncer"),
		runtime: make(map[int]*accountRuntime),
		workers: make(chan struct{}, cfg.Workers),
	}
}

// Run крутит цикл синхронизации до отмены контекста.
// Перед возвратом дожидается завершения запущенных воркеров.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.log.Info("Движок синхронизации запущен",
		utils.Any("interval", e.cfg.Interval.String()),
		utils.Int("workers", e.cfg.Workers))

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			e.log.Info("Движок синхронизации остановлен")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick выбирает счета, которым пора синхронизироваться, и раздаёт
// их воркерам. Если пул занят, оставшиеся счета подождут до
// следующего тика.
func (e *Engine) tick(ctx context.Context) {
	sessions := e.st.List()
	e.updateStatusGauges(sessions)

	now := time.Now()
	for _, sess := range sessions {
		if !IsSyncable(sess.Account.Status) {
			continue
		}
		id := sess.Account.ID

		e.mu.Lock()
		rt := e.rt(id)
		if rt.inFlight || now.Before(rt.nextEligible) {
			e.mu.Unlock()
			continue
		}

		// Пул воркеров ограничен, захват без блокировки
		select {
		case e.workers <- struct{}{}:
		default:
			e.mu.Unlock()
			return
		}

		rt.inFlight = true
		gen := rt.gen
		e.mu.Unlock()

		e.wg.Add(1)
		go func(id int, gen uint64) {
			defer e.wg.Done()
			defer func() { <-e.workers }()
			defer e.clearInFlight(id)

			if err := e.syncOne(ctx, id, gen); err != nil {
				e.log.Debug("Синхронизация завершилась ошибкой",
					utils.AccountID(id), utils.Err(err))
			}
		}(id, gen)
	}
}

// SyncNow выполняет внеочередную синхронизацию счёта и ждёт результат.
// Принудительная синхронизация считается обычной попыткой: успех
// сбрасывает счётчик, неудача его увеличивает.
func (e *Engine) SyncNow(ctx context.Context, id int) error {
	sess, ok := e.st.Get(id)
	if !ok {
		return ErrAccountNotFound
	}
	if sess.Account.Status == models.StatusDisabled {
		return ErrAccountDisabled
	}

	e.mu.Lock()
	rt := e.rt(id)
	if rt.inFlight {
		e.mu.Unlock()
		return ErrSyncInFlight
	}
	rt.inFlight = true
	gen := rt.gen
	e.mu.Unlock()
	defer e.clearInFlight(id)

	select {
	case e.workers <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.workers }()

	return e.syncOne(ctx, id, gen)
}

// Reconnect сбрасывает счётчик попыток и статус ERROR, после чего
// сразу пробует синхронизацию.
func (e *Engine) Reconnect(ctx context.Context, id int) error {
	sess, ok := e.st.Get(id)
	if !ok {
		return ErrAccountNotFound
	}
	if sess.Account.Status == models.StatusDisabled {
		return ErrAccountDisabled
	}

	e.mu.Lock()
	rt := e.rt(id)
	if rt.inFlight {
		e.mu.Unlock()
		return ErrSyncInFlight
	}
	rt.attempts = 0
	rt.nextEligible = time.Time{}
	rt.gen++
	e.mu.Unlock()

	if sess.Account.Status == models.StatusError {
		e.setStatus(ctx, id, models.StatusPending, "")
	}

	return e.SyncNow(ctx, id)
}

// Cancel сбрасывает состояние синхронизации счёта. Вызывается при
// изменении учётных данных: результат идущей синхронизации будет
// выброшен, счётчик попыток начнётся заново.
func (e *Engine) Cancel(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.runtime[id]
	if !ok {
		return
	}
	rt.gen++
	rt.attempts = 0
	rt.nextEligible = time.Time{}
}

// Forget убирает счёт из движка. Вызывается при удалении счёта.
func (e *Engine) Forget(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rt, ok := e.runtime[id]; ok {
		// Идущая синхронизация выбросит свой результат
		rt.gen++
		if !rt.inFlight {
			delete(e.runtime, id)
		}
	}
}

// syncOne выполняет одну попытку синхронизации счёта.
func (e *Engine) syncOne(ctx context.Context, id int, gen uint64) error {
	sess, ok := e.st.Get(id)
	if !ok {
		return ErrAccountNotFound
	}

	// Первая синхронизация и повторы после сбоя проходят через
	// CONNECTING; живой CONNECTED счёт статус не дёргает
	if sess.Account.Status != models.StatusConnected &&
		CanTransition(sess.Account.Status, models.StatusConnecting) {
		e.setStatus(ctx, id, models.StatusConnecting, "")
	}

	creds, err := e.creds.Open(sess.Account)
	if err != nil {
		// Нечитаемые учётные данные повтором не лечатся
		e.fail(ctx, id, gen, fmt.Errorf("open credentials: %w", err), false)
		return err
	}

	InFlightSyncs.Inc()
	start := time.Now()
	snap, err := e.gateway.Sync(ctx, creds)
	elapsed := time.Since(start)
	InFlightSyncs.Dec()

	if e.stale(id, gen) {
		SyncsTotal.WithLabelValues("discarded").Inc()
		e.log.Debug("Результат синхронизации выброшен", utils.AccountID(id))
		return nil
	}

	if err != nil {
		result := "transient_error"
		if terminal.IsPermanent(err) {
			result = "permanent_error"
		}
		SyncsTotal.WithLabelValues(result).Inc()
		SyncDuration.WithLabelValues(result).Observe(elapsed.Seconds())
		if errors.Is(err, terminal.ErrGatewayBusy) {
			GatewayBusyTotal.Inc()
		}

		e.fail(ctx, id, gen, err, terminal.IsTransient(err))
		return err
	}

	SyncsTotal.WithLabelValues("success").Inc()
	SyncDuration.WithLabelValues("success").Observe(elapsed.Seconds())

	e.succeed(ctx, id, snap)
	return nil
}

// succeed фиксирует успешную синхронизацию.
func (e *Engine) succeed(ctx context.Context, id int, snap *models.Snapshot) {
	e.mu.Lock()
	rt := e.rt(id)
	rt.attempts = 0
	rt.nextEligible = time.Time{}
	e.mu.Unlock()

	if !e.st.ApplySnapshot(id, snap) {
		return // счёт удалили, пока шла запись
	}

	sess, ok := e.st.Get(id)
	if !ok {
		return
	}

	if err := e.repo.SaveSyncResult(ctx, sess.Account); err != nil {
		e.log.Error("Не удалось сохранить результат синхронизации",
			utils.AccountID(id), utils.Err(err))
	}

	e.notify.AccountChanged(sess)
}

// fail фиксирует неудачную попытку.
//
// Временные ошибки повторяются с экспоненциальным backoff, пока не
// исчерпан лимит попыток. Постоянные ошибки и исчерпанный лимит
// переводят счёт в ERROR до ручного вмешательства.
func (e *Engine) fail(ctx context.Context, id int, gen uint64, cause error, transient bool) {
	if !transient {
		e.log.Warn("Постоянная ошибка синхронизации",
			utils.AccountID(id), utils.Err(cause))
		e.setStatus(ctx, id, models.StatusError, cause.Error())
		return
	}

	e.mu.Lock()
	rt := e.rt(id)
	if rt.gen != gen {
		e.mu.Unlock()
		return
	}
	rt.attempts++
	attempts := rt.attempts
	gaveUp := attempts >= e.cfg.MaxReconnectAttempts
	if !gaveUp {
		delay := e.backoff.Delay(attempts - 1)
		rt.nextEligible = time.Now().Add(delay)
	}
	e.mu.Unlock()

	if gaveUp {
		AccountsGaveUp.Inc()
		e.log.Warn("Лимит попыток исчерпан, счёт переведён в ERROR",
			utils.AccountID(id), utils.Attempt(attempts), utils.Err(cause))
		e.setStatus(ctx, id, models.StatusError,
			fmt.Sprintf("giving up after %d attempts: %v", attempts, cause))
		return
	}

	e.log.Debug("Временная ошибка синхронизации, будет повтор",
		utils.AccountID(id), utils.Attempt(attempts), utils.Err(cause))
	e.setStatus(ctx, id, models.StatusConnecting, cause.Error())
}

// setStatus меняет статус в хранилище, пишет его в БД и уведомляет
// подписчиков.
func (e *Engine) setStatus(ctx context.Context, id int, status, errorMessage string) {
	if !e.st.SetStatus(id, status, errorMessage) {
		return
	}

	if err := e.repo.SaveStatus(ctx, id, status, errorMessage); err != nil {
		e.log.Error("Не удалось сохранить статус счёта",
			utils.AccountID(id), utils.State(status), utils.Err(err))
	}

	if sess, ok := e.st.Get(id); ok {
		e.notify.AccountChanged(sess)
	}
}

// rt возвращает runtime счёта, создавая его при необходимости.
// Вызывается под e.mu.
func (e *Engine) rt(id int) *accountRuntime {
	rt, ok := e.runtime[id]
	if !ok {
		rt = &accountRuntime{}
		e.runtime[id] = rt
	}
	return rt
}

// stale сообщает, устарел ли результат запущенной синхронизации.
func (e *Engine) stale(id int, gen uint64) bool {
	if _, ok := e.st.Get(id); !ok {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.runtime[id]
	return !ok || rt.gen != gen
}

func (e *Engine) clearInFlight(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rt, ok := e.runtime[id]; ok {
		rt.inFlight = false
	}
}

// Attempts возвращает текущее число неудачных попыток подряд.
func (e *Engine) Attempts(id int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rt, ok := e.runtime[id]; ok {
		return rt.attempts
	}
	return 0
}

func (e *Engine) updateStatusGauges(sessions []store.Session) {
	counts := map[string]int{
		models.StatusPending:    0,
		models.StatusConnecting: 0,
		models.StatusConnected:  0,
		models.StatusError:      0,
		models.StatusDisabled:   0,
	}
	for _, sess := range sessions {
		counts[sess.Account.Status]++
	}
	for status, n := range counts {
		AccountsByStatus.WithLabelValues(status).Set(float64(n))
	}
}
