package application

import (
	"context"
	"image"

	"barcode-scanner/internal/domain"
)

// MediaDevices интерфейс доступа к камерам
type MediaDevices interface {
	// ListDevices возвращает список доступных устройств захвата
	ListDevices() ([]domain.VideoDevice, error)

	// GetUserMedia запрашивает видеопоток с заданными ограничениями.
	// Вызов может длиться сколь угодно долго и не прерывается контекстом.
	GetUserMedia(ctx context.Context, constraints domain.VideoConstraints) (MediaStream, error)
}

// MediaStream полученный видеопоток
type MediaStream interface {
	ID() string
	Tracks() []MediaTrack

	// NewFrameReader открывает чтение декодированных кадров
	NewFrameReader() (FrameReader, error)
}

// MediaTrack отдельный трек потока
type MediaTrack interface {
	ID() string
	Stop() error
}

// FrameReader читает кадры потока; release освобождает буфер кадра
type FrameReader interface {
	Read() (img image.Image, release func(), err error)
	Close() error
}

// FrameSource источник кадров для распознавания
type FrameSource interface {
	ReadFrame() (img image.Image, release func(), err error)
}

// VideoSink элемент воспроизведения, к которому привязывается поток.
// Обработчики событий вызываются асинхронно, не внутри регистрирующего вызова.
type VideoSink interface {
	FrameSource

	SetSource(stream MediaStream)
	Source() MediaStream
	Play(ctx context.Context) error
	Pause()
	Load()

	// OnCanPlay регистрирует обработчик готовности к воспроизведению
	OnCanPlay(fn func()) (detach func())

	// OnError регистрирует обработчик ошибки воспроизведения
	OnError(fn func(error)) (detach func())
}

// DecodeResult результат одного кадра
type DecodeResult struct {
	Text   string
	Format string
}

// DecodeCallback вызывается на каждый кадр с результатом или ошибкой
type DecodeCallback func(result *DecodeResult, err error)

// DecodeControls управление запущенным циклом распознавания
type DecodeControls interface {
	// Stop останавливает цикл, не дожидаясь текущего кадра
	Stop()
}

// FrameDecoder непрерывное распознавание кодов в кадрах
type FrameDecoder interface {
	DecodeFromSource(source FrameSource, callback DecodeCallback) (DecodeControls, error)
	Reset()
}

// Logger интерфейс для логирования
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// FieldLogger логгер, добавляющий поле ко всем последующим сообщениям
type FieldLogger interface {
	Logger
	WithField(key, value string) Logger
}
