package terminal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mt5bridge/internal/models"
)

// fakeTerminal - терминал для тестов gateway.
type fakeTerminal struct {
	delay    time.Duration
	authErr  error
	fetchErr error
	snap     *models.Snapshot

	// active отслеживает количество одновременных операций
	active  int32
	overlap int32
}

func (f *fakeTerminal) Authenticate(ctx context.Context, creds Credentials) error {
	f.enter()
	defer f.leave()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.authErr
}

func (f *fakeTerminal) FetchSnapshot(ctx context.Context, creds Credentials) (*models.Snapshot, error) {
	f.enter()
	defer f.leave()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.snap != nil {
		return f.snap, nil
	}
	return &models.Snapshot{AccountName: "Test", Balance: 1000}, nil
}

func (f *fakeTerminal) enter() {
	if atomic.AddInt32(&f.active, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
}

func (f *fakeTerminal) leave() {
	atomic.AddInt32(&f.active, -1)
}

func TestGateway_Sync(t *testing.T) {
	term := &fakeTerminal{snap: &models.Snapshot{Balance: 500.25}}
	gw := NewGateway(term, time.Second)

	snap, err := gw.Sync(context.Background(), Credentials{AccountNumber: "100234"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if snap.Balance != 500.25 {
		t.Errorf("snap.Balance = %v, want 500.25", snap.Balance)
	}
}

func TestGateway_SyncAuthError(t *testing.T) {
	term := &fakeTerminal{authErr: ErrInvalidCredentials}
	gw := NewGateway(term, time.Second)

	_, err := gw.Sync(context.Background(), Credentials{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Sync() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestGateway_MutualExclusion(t *testing.T) {
	term := &fakeTerminal{delay: 10 * time.Millisecond}
	gw := NewGateway(term, 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gw.Sync(context.Background(), Credentials{})
			if err != nil {
				t.Errorf("Sync() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&term.overlap) != 0 {
		t.Error("terminal operations overlapped, gateway must serialize access")
	}
}

func TestGateway_AcquireTimeout(t *testing.T) {
	term := &fakeTerminal{}
	gw := NewGateway(term, 20*time.Millisecond)

	// Захватываем слот и не отпускаем
	release, err := gw.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	// Второй захват должен получить ErrGatewayBusy по таймауту
	start := time.Now()
	_, err = gw.Acquire(context.Background())
	if !errors.Is(err, ErrGatewayBusy) {
		t.Errorf("Acquire() error = %v, want ErrGatewayBusy", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Acquire() returned after %v, want at least 20ms wait", elapsed)
	}
}

func TestGateway_AcquireContextCancel(t *testing.T) {
	term := &fakeTerminal{}
	gw := NewGateway(term, time.Minute)

	release, err := gw.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = gw.Acquire(ctx)
	if !errors.Is(err, ErrGatewayBusy) {
		t.Errorf("Acquire() error = %v, want ErrGatewayBusy on cancelled context", err)
	}
}

func TestGateway_ReleaseFreesSlot(t *testing.T) {
	term := &fakeTerminal{}
	gw := NewGateway(term, 50*time.Millisecond)

	release, err := gw.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()

	// После освобождения слот должен захватываться сразу
	release2, err := gw.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	release2()
}
