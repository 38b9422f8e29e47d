package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // Регистрируем драйвер камеры
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/domain"
)

// MediaDevicesManager реализация application.MediaDevices с использованием библиотеки mediadevices
type MediaDevicesManager struct {
	logger application.Logger
}

// NewMediaDevicesManager создает новый менеджер медиаустройств
func NewMediaDevicesManager(logger application.Logger) *MediaDevicesManager {
	return &MediaDevicesManager{
		logger: logger,
	}
}

// ListDevices возвращает список доступных устройств видеозахвата
func (m *MediaDevicesManager) ListDevices() ([]domain.VideoDevice, error) {
	devices := mediadevices.EnumerateDevices()
	result := make([]domain.VideoDevice, 0, len(devices))

	for _, device := range devices {
		if device.Kind != mediadevices.VideoInput {
			continue
		}
		result = append(result, domain.VideoDevice{
			ID:    device.DeviceID,
			Label: device.Label,
			Kind:  "videoinput",
		})
	}

	return result, nil
}

// GetUserMedia открывает камеру с заданными параметрами.
// Размеры передаются как желаемые, а не обязательные.
func (m *MediaDevicesManager) GetUserMedia(ctx context.Context, c domain.VideoConstraints) (application.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewMediaError(domain.ErrNameAbort, err)
	}

	devices, _ := m.ListDevices()
	if len(devices) == 0 {
		return nil, domain.NewMediaError(domain.ErrNameNotFound, errors.New("нет устройств видеозахвата"))
	}

	deviceID := c.DeviceID
	if deviceID == "" {
		deviceID = PickDevice(devices, c.FacingMode)
	}

	// Задаем предпочтительные параметры, но не строгие
	constraints := mediadevices.MediaStreamConstraints{
		Video: func(mc *mediadevices.MediaTrackConstraints) {
			if c.Width > 0 {
				mc.Width = prop.Int(int32(c.Width))
			}
			if c.Height > 0 {
				mc.Height = prop.Int(int32(c.Height))
			}
			if deviceID != "" {
				mc.DeviceID = prop.String(deviceID)
			}
		},
	}

	mediaStream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		m.logger.Warn("Ошибка с исходными ограничениями: %v", err)

		// Пробуем с еще более простыми ограничениями
		m.logger.Info("Пробуем с минимальными ограничениями...")
		constraints = mediadevices.MediaStreamConstraints{
			Video: func(mc *mediadevices.MediaTrackConstraints) {
				if deviceID != "" {
					mc.DeviceID = prop.String(deviceID)
				}
			},
		}

		mediaStream, err = mediadevices.GetUserMedia(constraints)
		if err != nil {
			m.logger.Error("Не удалось получить доступ к медиа-устройству: %v", err)
			return nil, ClassifyError(err)
		}
	}

	videoTracks := mediaStream.GetVideoTracks()
	if len(videoTracks) == 0 {
		for _, track := range mediaStream.GetTracks() {
			track.Close()
		}
		return nil, domain.NewMediaError(domain.ErrNameNotFound, errors.New("видеотрек не обнаружен"))
	}

	m.logger.Debug("Используется камера: %s", videoTracks[0].ID())
	return newStream(videoTracks[0]), nil
}

// PickDevice выбирает устройство по направлению камеры, судя по его названию.
// Пустая строка означает выбор драйвером по умолчанию.
func PickDevice(devices []domain.VideoDevice, facing string) string {
	var hints []string
	switch facing {
	case domain.FacingEnvironment:
		hints = []string{"back", "rear", "environment", "задн"}
	case "user":
		hints = []string{"front", "user", "facetime", "передн"}
	default:
		return ""
	}

	for _, device := range devices {
		label := strings.ToLower(device.Label)
		for _, hint := range hints {
			if strings.Contains(label, hint) {
				return device.ID
			}
		}
	}
	return ""
}

// ClassifyError присваивает ошибке драйвера имя по типу отказа
func ClassifyError(err error) error {
	var mediaErr *domain.MediaError
	if errors.As(err, &mediaErr) {
		return err
	}

	text := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM),
		strings.Contains(text, "permission denied"):
		return domain.NewMediaError(domain.ErrNameNotAllowed, err)
	case errors.Is(err, syscall.EBUSY), strings.Contains(text, "busy"):
		return domain.NewMediaError(domain.ErrNameNotReadable, err)
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENODEV),
		strings.Contains(text, "failed to find"), strings.Contains(text, "no such device"):
		return domain.NewMediaError(domain.ErrNameNotFound, err)
	default:
		return domain.NewMediaError(domain.ErrNameUnknown, err)
	}
}

// MediaDevicesStream обертка для видеотрека mediadevices
type MediaDevicesStream struct {
	track mediadevices.Track
	once  sync.Once
}

func newStream(track mediadevices.Track) *MediaDevicesStream {
	return &MediaDevicesStream{track: track}
}

// ID возвращает идентификатор потока
func (s *MediaDevicesStream) ID() string {
	return s.track.ID()
}

// Tracks возвращает треки потока
func (s *MediaDevicesStream) Tracks() []application.MediaTrack {
	return []application.MediaTrack{&mediaTrack{stream: s}}
}

// NewFrameReader создает ридер для чтения видеокадров
func (s *MediaDevicesStream) NewFrameReader() (application.FrameReader, error) {
	videoTrack, ok := s.track.(*mediadevices.VideoTrack)
	if !ok {
		return nil, domain.NewMediaError(domain.ErrNameNotSupported, fmt.Errorf("трек %s не является видеотреком", s.track.ID()))
	}
	return &frameReader{reader: videoTrack.NewReader(false)}, nil
}

type mediaTrack struct {
	stream *MediaDevicesStream
}

func (t *mediaTrack) ID() string {
	return t.stream.track.ID()
}

// Stop закрывает трек; повторный вызов ничего не делает
func (t *mediaTrack) Stop() error {
	var err error
	t.stream.once.Do(func() {
		err = t.stream.track.Close()
	})
	return err
}

// frameReader обертка для video.Reader
type frameReader struct {
	reader video.Reader
	mutex  sync.Mutex
	closed bool
}

// Read читает следующий кадр
func (r *frameReader) Read() (image.Image, func(), error) {
	r.mutex.Lock()
	closed := r.closed
	r.mutex.Unlock()
	if closed {
		return nil, func() {}, io.EOF
	}

	img, release, err := r.reader.Read()
	if release == nil {
		release = func() {}
	}
	return img, release, err
}

// Close прекращает чтение; сам трек закрывается отдельно
func (r *frameReader) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.closed = true
	return nil
}
