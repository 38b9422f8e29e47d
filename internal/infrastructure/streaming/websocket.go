package streaming

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/domain"
)

// ErrNotConnected публикация без соединения
var ErrNotConnected = errors.New("нет соединения с сервером")

// WebSocketPublisher отправляет распознанные коды на сервер через WebSocket
type WebSocketPublisher struct {
	url       string
	conn      *websocket.Conn
	logger    application.Logger
	connected bool
	mutex     sync.Mutex
	sent      int
	startTime time.Time
	debugMode bool
}

// NewWebSocketPublisher создает публикатор для заданного адреса
func NewWebSocketPublisher(streamingURL string, logger application.Logger, debugMode bool) *WebSocketPublisher {
	return &WebSocketPublisher{
		url:       streamingURL,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Connect подключается к серверу
func (p *WebSocketPublisher) Connect(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.connected {
		return nil
	}

	u, err := url.Parse(p.url)
	if err != nil {
		p.logger.Error("Некорректный URL публикации: %v", err)
		return err
	}

	p.logger.Info("Подключение к %s", u.String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		p.logger.Error("Ошибка подключения к серверу: %v", err)
		return err
	}

	p.conn = conn
	p.connected = true
	p.sent = 0
	p.startTime = time.Now()
	p.logger.Info("Подключено к серверу")
	return nil
}

// Publish отправляет результат сканирования в виде JSON
func (p *WebSocketPublisher) Publish(result domain.ScanResult) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.connected || p.conn == nil {
		return ErrNotConnected
	}

	if err := p.conn.WriteJSON(result); err != nil {
		p.conn.Close()
		p.conn = nil
		p.connected = false
		return err
	}

	p.sent++
	if p.debugMode {
		elapsed := time.Since(p.startTime).Seconds()
		p.logger.Debug("Отправлено кодов: %d за %.1f с", p.sent, elapsed)
	}
	return nil
}

// Run публикует результаты из канала до его закрытия или отмены контекста.
// При обрыве соединения переподключается перед следующей отправкой.
func (p *WebSocketPublisher) Run(ctx context.Context, results <-chan domain.ScanResult) error {
	defer p.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case result, ok := <-results:
			if !ok {
				return nil
			}
			if !p.IsConnected() {
				if err := p.Connect(ctx); err != nil {
					p.logger.Warn("Код %s не отправлен: %v", result.Text, err)
					continue
				}
			}
			if err := p.Publish(result); err != nil {
				p.logger.Warn("Ошибка отправки кода %s: %v", result.Text, err)
			}
		}
	}
}

// Close закрывает соединение
func (p *WebSocketPublisher) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.connected || p.conn == nil {
		return nil
	}

	// Отправляем сообщение о закрытии
	err := p.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	if err != nil {
		p.logger.Error("Ошибка закрытия WebSocket: %v", err)
	}

	p.conn.Close()
	p.conn = nil
	p.connected = false

	return nil
}

// IsConnected возвращает статус подключения
func (p *WebSocketPublisher) IsConnected() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.connected
}
