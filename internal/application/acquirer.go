package application

import (
	"context"
	"sync"
	"time"

	"barcode-scanner/internal/domain"
)

// AcquirerConfig параметры получения видеопотока
type AcquirerConfig struct {
	Constraints domain.VideoConstraints
	RetryDelay  time.Duration // Пауза перед повторным запросом после отказа
}

// StreamAcquirer получает поток камеры, привязывает его к элементу видео
// и запускает воспроизведение
type StreamAcquirer struct {
	devices MediaDevices
	sink    VideoSink
	guard   *MountGuard
	logger  Logger
	config  AcquirerConfig

	// OnPlaying вызывается после успешного старта воспроизведения
	OnPlaying func()
	// OnError получает сообщения для пользователя
	OnError func(message string)

	mutex      sync.Mutex
	stream     MediaStream
	permission domain.Permission
	playing    bool
	acquiring  context.Context // Контекст запроса камеры в полете
	detachers  []func()
	retryTimer *time.Timer
}

// NewStreamAcquirer создает новый получатель видеопотока
func NewStreamAcquirer(devices MediaDevices, sink VideoSink, guard *MountGuard, logger Logger, config AcquirerConfig) *StreamAcquirer {
	return &StreamAcquirer{
		devices: devices,
		sink:    sink,
		guard:   guard,
		logger:  logger,
		config:  config,
	}
}

// StartVideoStream запрашивает камеру и привязывает поток к элементу видео.
// Возвращает true, если поток получен и привязан; воспроизведение
// начинается асинхронно по событию готовности.
func (a *StreamAcquirer) StartVideoStream(ctx context.Context) bool {
	if a.sink == nil || !a.guard.Mounted() {
		a.logger.Debug("Запуск видеопотока пропущен: нет элемента видео или сканер размонтирован")
		return false
	}

	a.mutex.Lock()
	// Отмененный запрос не мешает новому циклу: его поток будет освобожден
	if a.stream != nil || (a.acquiring != nil && a.acquiring.Err() == nil) {
		a.mutex.Unlock()
		a.logger.Debug("Видеопоток уже получен или запрашивается")
		return false
	}
	a.acquiring = ctx
	a.mutex.Unlock()

	c := a.config.Constraints
	a.logger.Info("Запрос доступа к камере: %dx%d, камера: %s", c.Width, c.Height, c.FacingMode)

	stream, err := a.devices.GetUserMedia(ctx, c)

	a.mutex.Lock()
	if a.acquiring == ctx {
		a.acquiring = nil
	}
	cancelled := !a.guard.Mounted() || ctx.Err() != nil || a.stream != nil

	if err != nil {
		if cancelled {
			a.mutex.Unlock()
			a.logger.Debug("Ошибка доступа к камере после отмены: %v", err)
			return false
		}
		a.permission = domain.PermissionDenied
		a.mutex.Unlock()

		a.logger.Error("Ошибка доступа к камере: %v", err)
		a.emitError(ClassifyAccessError(err))
		return false
	}

	if cancelled {
		a.mutex.Unlock()
		a.logger.Info("Сканер остановлен во время запроса камеры, освобождаем поток %s", stream.ID())
		a.stopTracks(stream)
		return false
	}

	a.stream = stream
	a.permission = domain.PermissionGranted
	a.playing = false

	// Обработчики подписываются до привязки источника, иначе событие
	// готовности может уйти раньше подписки
	var readyOnce, errorOnce sync.Once
	a.detachers = append(a.detachers,
		a.sink.OnCanPlay(func() {
			readyOnce.Do(func() { a.handleCanPlay(ctx, stream) })
		}),
		a.sink.OnError(func(err error) {
			errorOnce.Do(func() { a.handlePlaybackError(stream, err) })
		}),
	)
	a.sink.SetSource(stream)
	a.mutex.Unlock()

	a.logger.Info("Камера подключена, поток: %s", stream.ID())
	return true
}

func (a *StreamAcquirer) handleCanPlay(ctx context.Context, stream MediaStream) {
	a.mutex.Lock()
	if !a.guard.Mounted() || a.stream != stream || a.playing {
		a.mutex.Unlock()
		return
	}
	a.mutex.Unlock()

	err := a.sink.Play(ctx)

	a.mutex.Lock()
	if !a.guard.Mounted() || a.stream != stream {
		a.mutex.Unlock()
		return
	}
	if err != nil {
		a.mutex.Unlock()
		a.logger.Error("Ошибка запуска воспроизведения: %v", err)
		a.emitError(MsgPlaybackFailed)
		return
	}
	a.playing = true
	a.mutex.Unlock()

	a.logger.Debug("Воспроизведение запущено")
	if a.OnPlaying != nil {
		a.OnPlaying()
	}
}

func (a *StreamAcquirer) handlePlaybackError(stream MediaStream, err error) {
	a.mutex.Lock()
	current := a.guard.Mounted() && a.stream == stream
	a.mutex.Unlock()
	if !current {
		return
	}

	// Разрешение остается выданным: устройство было доступно
	a.logger.Error("Ошибка видео: %v", err)
	a.emitError(MsgVideoError)
}

// StopVideoStream останавливает воспроизведение и освобождает треки.
// Безопасен без активного потока.
func (a *StreamAcquirer) StopVideoStream() {
	a.mutex.Lock()
	stream := a.stream
	a.stream = nil
	a.playing = false
	a.mutex.Unlock()

	if a.sink != nil {
		safely(a.logger, "pause", func() error { a.sink.Pause(); return nil })
		safely(a.logger, "detach source", func() error { a.sink.SetSource(nil); return nil })
		safely(a.logger, "load", func() error { a.sink.Load(); return nil })
	}

	if stream != nil {
		a.stopTracks(stream)
		a.logger.Info("Видеопоток остановлен: %s", stream.ID())
	}
}

func (a *StreamAcquirer) stopTracks(stream MediaStream) {
	for _, track := range stream.Tracks() {
		safely(a.logger, "track "+track.ID(), track.Stop)
	}
}

// ForceCleanup снимает обработчики, останавливает поток и сбрасывает
// состояние. Вызывается при размонтировании и никогда не паникует.
func (a *StreamAcquirer) ForceCleanup() {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("Паника при очистке камеры: %v", r)
		}
	}()

	a.mutex.Lock()
	detachers := a.detachers
	a.detachers = nil
	if a.retryTimer != nil {
		a.retryTimer.Stop()
		a.retryTimer = nil
	}
	a.mutex.Unlock()

	for _, detach := range detachers {
		if detach != nil {
			safely(a.logger, "detach listener", func() error { detach(); return nil })
		}
	}

	a.StopVideoStream()

	a.mutex.Lock()
	a.permission = domain.PermissionUnknown
	a.playing = false
	a.mutex.Unlock()
}

// HandleRetryPermission сбрасывает отказ и через RetryDelay повторяет
// запрос, если сканер все еще активен и смонтирован
func (a *StreamAcquirer) HandleRetryPermission(active func() bool, reacquire func()) {
	a.mutex.Lock()
	a.permission = domain.PermissionUnknown
	a.mutex.Unlock()

	if !active() || !a.guard.Mounted() {
		return
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.retryTimer != nil {
		a.retryTimer.Stop()
	}
	a.retryTimer = time.AfterFunc(a.config.RetryDelay, func() {
		if !active() || !a.guard.Mounted() {
			a.logger.Debug("Повторный запрос камеры отменен")
			return
		}
		reacquire()
	})
}

// Permission возвращает результат запроса доступа
func (a *StreamAcquirer) Permission() domain.Permission {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.permission
}

// IsPlaying сообщает, идет ли воспроизведение
func (a *StreamAcquirer) IsPlaying() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.playing
}

// Stream возвращает текущий поток или nil
func (a *StreamAcquirer) Stream() MediaStream {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.stream
}

func (a *StreamAcquirer) emitError(message string) {
	if a.OnError != nil && a.guard.Mounted() {
		a.OnError(message)
	}
}
