package application

import (
	"sync"
	"time"

	"barcode-scanner/internal/domain"
)

// DecoderAdapter управляет циклом распознавания кодов поверх элемента видео.
// Экземпляр декодера создается один раз при монтировании и сбрасывается
// между запусками.
type DecoderAdapter struct {
	newDecoder func() FrameDecoder
	source     FrameSource
	guard      *MountGuard
	logger     Logger
	isPlaying  func() bool
	startDelay time.Duration

	// OnResult получает каждый распознанный кадр, без устранения повторов
	OnResult func(result DecodeResult)
	// OnError получает сообщения для пользователя
	OnError func(message string)
	// OnAbort вызывается, когда запуск завершился без цикла распознавания
	OnAbort func()

	mutex    sync.Mutex
	decoder  FrameDecoder
	scanning bool
	controls DecodeControls
	timer    *time.Timer
	run      uint64
}

// NewDecoderAdapter создает адаптер; startDelay дает первым кадрам стабилизироваться
func NewDecoderAdapter(newDecoder func() FrameDecoder, source FrameSource, guard *MountGuard, logger Logger, isPlaying func() bool, startDelay time.Duration) *DecoderAdapter {
	return &DecoderAdapter{
		newDecoder: newDecoder,
		source:     source,
		guard:      guard,
		logger:     logger,
		isPlaying:  isPlaying,
		startDelay: startDelay,
	}
}

// Mount создает экземпляр декодера
func (a *DecoderAdapter) Mount() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.decoder == nil && a.newDecoder != nil {
		a.decoder = a.newDecoder()
	}
}

// Dispose останавливает распознавание и освобождает декодер
func (a *DecoderAdapter) Dispose() {
	a.StopScanning()

	a.mutex.Lock()
	a.decoder = nil
	a.mutex.Unlock()
}

// StartScanning помечает сканирование активным и после startDelay
// запускает цикл распознавания
func (a *DecoderAdapter) StartScanning() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.decoder == nil || a.source == nil || a.scanning || !a.guard.Mounted() {
		a.logger.Debug("Запуск сканирования пропущен")
		return
	}

	a.scanning = true
	a.run++
	run := a.run
	a.timer = time.AfterFunc(a.startDelay, func() { a.startZXingScan(run) })
}

func (a *DecoderAdapter) startZXingScan(run uint64) {
	a.mutex.Lock()
	if run != a.run || !a.scanning || !a.guard.Mounted() || a.controls != nil {
		a.mutex.Unlock()
		return
	}
	decoder := a.decoder
	a.mutex.Unlock()

	if !a.isPlaying() {
		a.logger.Warn("Видео не воспроизводится, распознавание не запущено")
		a.mutex.Lock()
		aborted := run == a.run && a.scanning
		if aborted {
			a.scanning = false
		}
		a.mutex.Unlock()
		if aborted {
			a.emitAbort()
		}
		return
	}

	controls, err := decoder.DecodeFromSource(a.source, func(result *DecodeResult, err error) {
		a.handleFrame(run, result, err)
	})

	a.mutex.Lock()
	if err != nil {
		stopped := run != a.run
		if !stopped {
			a.scanning = false
		}
		a.mutex.Unlock()

		a.logger.Error("Ошибка запуска распознавания: %v", err)
		if !stopped {
			a.emitError(MsgScannerFailed)
			a.emitAbort()
		}
		return
	}
	if run != a.run || !a.scanning || !a.guard.Mounted() {
		a.mutex.Unlock()
		controls.Stop()
		return
	}
	a.controls = controls
	a.mutex.Unlock()

	a.logger.Info("Распознавание запущено")
}

func (a *DecoderAdapter) handleFrame(run uint64, result *DecodeResult, err error) {
	if result != nil {
		// Проверка и вызов не атомарны: StopScanning между ними может
		// пропустить еще один результат; сканер отсекает его по флагу активности
		if !a.current(run) {
			return
		}
		a.logger.Debug("Распознан код: %s (%s)", result.Text, result.Format)
		if a.OnResult != nil {
			a.OnResult(*result)
		}
		return
	}

	if err == nil || IsTransientDecodeError(err) {
		return
	}

	a.logger.Warn("Ошибка цикла распознавания: %v", err)
	if IsStructuralDecodeError(err) && a.current(run) {
		a.emitError(MsgScannerFailed + " (" + domain.ErrorName(err) + ")")
	}
}

// StopScanning снимает флаг сканирования, останавливает цикл и сбрасывает
// декодер. Идемпотентен.
func (a *DecoderAdapter) StopScanning() {
	a.mutex.Lock()
	wasScanning := a.scanning
	a.scanning = false
	a.run++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	controls := a.controls
	a.controls = nil
	decoder := a.decoder
	a.mutex.Unlock()

	if controls != nil {
		safely(a.logger, "decode loop", func() error { controls.Stop(); return nil })
	}
	if decoder != nil {
		safely(a.logger, "decoder reset", func() error { decoder.Reset(); return nil })
	}
	if wasScanning {
		a.logger.Info("Распознавание остановлено")
	}
}

// IsScanning сообщает, активно ли сканирование
func (a *DecoderAdapter) IsScanning() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.scanning
}

func (a *DecoderAdapter) current(run uint64) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return run == a.run && a.scanning && a.guard.Mounted()
}

func (a *DecoderAdapter) emitError(message string) {
	if a.OnError != nil && a.guard.Mounted() {
		a.OnError(message)
	}
}

func (a *DecoderAdapter) emitAbort() {
	if a.OnAbort != nil && a.guard.Mounted() {
		a.OnAbort()
	}
}
