package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"mt5bridge/internal/config"
	"mt5bridge/internal/models"
	"mt5bridge/pkg/ratelimit"
	"mt5bridge/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client - клиент моста терминала поверх TCP.
//
// Протокол: JSON-кадры, разделённые переводом строки. Запрос несёт
// id, method и params, ответ - тот же id и result либо error с кодом.
// Соединение одно и переиспользуется; после любого сетевого сбоя оно
// закрывается и переоткрывается на следующем вызове.
type Client struct {
	addr    string
	timeout time.Duration

	// Темп логинов ограничен: брокеры банят за частые попытки входа.
	loginLimiter *ratelimit.RateLimiter

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID uint64

	log *utils.Logger
}

// Проверка соответствия интерфейсу на этапе компиляции
var _ Terminal = (*Client)(nil)

// NewClient создаёт клиент моста терминала.
func NewClient(cfg config.TerminalConfig, log *utils.Logger) *Client {
	return &Client{
		addr:         cfg.Addr,
		timeout:      cfg.Timeout,
		loginLimiter: ratelimit.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst),
		log:          log.WithComponent("terminal"),
	}
}

type request struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type response struct {
	ID     uint64              `json:"id"`
	Result jsoniter.RawMessage `json:"result,omitempty"`
	Error  *bridgeError        `json:"error,omitempty"`
}

type bridgeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type loginParams struct {
	Account  string `json:"account"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

// Authenticate выполняет логин под указанным счётом.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) error {
	// Логины идут через rate limiter, остальные операции - нет
	if err := c.loginLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: login rate limiter: %v", ErrIPC, err)
	}

	_, err := c.call(ctx, "login", loginParams{
		Account:  creds.AccountNumber,
		Password: creds.Password,
		Server:   creds.Server,
	})
	return err
}

// FetchSnapshot читает полное состояние активной сессии.
func (c *Client) FetchSnapshot(ctx context.Context, creds Credentials) (*models.Snapshot, error) {
	raw, err := c.call(ctx, "snapshot", loginParams{
		Account: creds.AccountNumber,
		Server:  creds.Server,
	})
	if err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: malformed snapshot payload: %v", ErrIPC, err)
	}

	snap.AsOf = time.Now().UTC()
	snap.Normalize()
	return &snap, nil
}

// call отправляет запрос и ждёт ответ с тем же id.
func (c *Client) call(ctx context.Context, method string, params interface{}) (jsoniter.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 1. Поднимаем соединение при необходимости
	if err := c.ensureConn(ctx); err != nil {
		return nil, err
	}

	// 2. Дедлайн операции: минимум из таймаута клиента и дедлайна контекста
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.drop()
		return nil, fmt.Errorf("%w: %v", ErrIPC, err)
	}

	// 3. Отправляем кадр
	c.nextID++
	req := request{ID: c.nextID, Method: method, Params: params}
	frame, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIPC, err)
	}
	frame = append(frame, '\n')

	if _, err := c.conn.Write(frame); err != nil {
		c.drop()
		return nil, c.netErr(method, err)
	}

	// 4. Читаем ответный кадр
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.drop()
		return nil, c.netErr(method, err)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		c.drop()
		return nil, fmt.Errorf("%w: malformed response: %v", ErrIPC, err)
	}
	if resp.ID != req.ID {
		c.drop()
		return nil, fmt.Errorf("%w: response id mismatch: sent %d, got %d", ErrIPC, req.ID, resp.ID)
	}
	if resp.Error != nil {
		return nil, classifyCode(resp.Error.Code, resp.Error.Message)
	}

	return resp.Result, nil
}

// ensureConn открывает соединение с мостом, если его нет.
func (c *Client) ensureConn(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return c.netErr("dial", err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.log.Debug("Соединение с мостом терминала установлено", utils.String("addr", c.addr))
	return nil
}

// drop закрывает соединение после сбоя.
func (c *Client) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
}

// netErr преобразует сетевую ошибку в ошибку таксономии терминала.
func (c *Client) netErr(op string, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	return fmt.Errorf("%w: %s: %v", ErrIPC, op, err)
}

// Close закрывает соединение с мостом.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}
