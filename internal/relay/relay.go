package relay

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/domain"
)

// ScanWriter дописывает результаты сканирования в файл JSON Lines
type ScanWriter struct {
	mutex      sync.Mutex
	outputFile *os.File
	encoder    *json.Encoder
	filePath   string
}

// NewScanWriter создает новый файл записи в outputDir
func NewScanWriter(outputDir string) (*ScanWriter, error) {
	// Создаем директорию, если она не существует
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию: %w", err)
	}

	// Генерируем имя файла на основе текущего времени
	timestamp := time.Now().Format("2006-01-02_15-04-05.000")
	filePath := filepath.Join(outputDir, fmt.Sprintf("scans_%s.jsonl", timestamp))

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать файл: %w", err)
	}

	return &ScanWriter{
		outputFile: file,
		encoder:    json.NewEncoder(file),
		filePath:   filePath,
	}, nil
}

// Write записывает результат отдельной строкой
func (w *ScanWriter) Write(result domain.ScanResult) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.outputFile == nil {
		return os.ErrClosed
	}
	return w.encoder.Encode(result)
}

// Path возвращает путь к файлу
func (w *ScanWriter) Path() string {
	return w.filePath
}

// Close закрывает файл
func (w *ScanWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.outputFile != nil {
		err := w.outputFile.Close()
		w.outputFile = nil
		return err
	}
	return nil
}

// Server принимает результаты сканирования по WebSocket
type Server struct {
	outputDir string
	logger    application.Logger
	upgrader  websocket.Upgrader
}

// NewServer создает сервер, сохраняющий записи в outputDir
func NewServer(outputDir string, logger application.Logger) *Server {
	return &Server{
		outputDir: outputDir,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Разрешаем все подключения
			},
		},
	}
}

// Handler возвращает маршруты сервера
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/", s.handleStatus)
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Ошибка при апгрейде до WebSocket: %v", err)
		return
	}
	defer conn.Close()

	// Создаем файл для сохранения результатов
	writer, err := NewScanWriter(s.outputDir)
	if err != nil {
		s.logger.Error("Не удалось создать запись: %v", err)
		return
	}
	defer writer.Close()

	clientAddr := conn.RemoteAddr().String()
	s.logger.Info("Клиент подключен: %s, запись в %s", clientAddr, writer.Path())

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Warn("Ошибка чтения: %v", err)
			}
			break
		}

		// Обрабатываем только текстовые сообщения с JSON
		if messageType != websocket.TextMessage {
			continue
		}

		var result domain.ScanResult
		if err := json.Unmarshal(message, &result); err != nil || result.Text == "" {
			s.logger.Warn("Некорректное сообщение от %s: %s", clientAddr, string(message))
			continue
		}
		if result.ScannedAt.IsZero() {
			result.ScannedAt = time.Now()
		}

		if err := writer.Write(result); err != nil {
			s.logger.Error("Ошибка записи данных: %v", err)
			break
		}
		s.logger.Debug("Код %s от %s", result.Text, clientAddr)
	}

	s.logger.Info("Клиент отключен: %s", clientAddr)
}

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Сервер приема сканирований</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; }
		.status { padding: 20px; background-color: #e0f7fa; border-radius: 5px; }
	</style>
</head>
<body>
	<h1>Сервер приема сканирований</h1>
	<div class="status">
		<p>Сервер запущен и принимает соединения</p>
		<p>Директория для записей: <code>{{.}}</code></p>
	</div>
</body>
</html>
`))

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage.Execute(w, s.outputDir); err != nil {
		s.logger.Error("Ошибка страницы статуса: %v", err)
	}
}
