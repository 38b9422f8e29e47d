package domain

import "time"

// Permission трехзначное состояние доступа к камере
type Permission int

const (
	PermissionUnknown Permission = iota // Запрос еще не выполнялся
	PermissionGranted                   // Доступ получен
	PermissionDenied                    // Доступ запрещен или устройство недоступно
)

// String возвращает текстовое представление разрешения
func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// ScannerState состояние оркестратора сканера
type ScannerState int

const (
	StateIdle      ScannerState = iota // Нет потока и цикла распознавания
	StateAcquiring                     // Запрос камеры в процессе
	StateStreaming                     // Поток привязан, ждем первый кадр
	StateScanning                      // Цикл распознавания активен
	StateStopping                      // Идет освобождение ресурсов
)

func (s ScannerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateStreaming:
		return "streaming"
	case StateScanning:
		return "scanning"
	case StateStopping:
		return "stopping"
	default:
		return "invalid"
	}
}

// FacingEnvironment предпочтение задней камеры
const FacingEnvironment = "environment"

// VideoConstraints ограничения при запросе видеопотока.
// Ширина и высота являются желаемыми, а не обязательными.
type VideoConstraints struct {
	Width      int    // Желаемая ширина в пикселях
	Height     int    // Желаемая высота в пикселях
	FacingMode string // "environment" или "user"
	DeviceID   string // Конкретное устройство, если задано
}

// DefaultVideoConstraints задняя камера 640x480
func DefaultVideoConstraints() VideoConstraints {
	return VideoConstraints{
		Width:      640,
		Height:     480,
		FacingMode: FacingEnvironment,
	}
}

// VideoDevice представляет устройство захвата видео
type VideoDevice struct {
	ID    string // Уникальный идентификатор устройства
	Label string // Человекочитаемое имя устройства
	Kind  string // Тип устройства
}

// ScanResult распознанный код
type ScanResult struct {
	Text      string    `json:"text"`
	Format    string    `json:"format,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}
