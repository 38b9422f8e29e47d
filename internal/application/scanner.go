package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"barcode-scanner/internal/domain"
)

// ScannerDeps внешние зависимости сканера
type ScannerDeps struct {
	Devices    MediaDevices
	Sink       VideoSink
	NewDecoder func() FrameDecoder
	Logger     Logger
}

// ScannerOptions параметры и обратные вызовы сканера
type ScannerOptions struct {
	Constraints domain.VideoConstraints
	StartDelay  time.Duration // Пауза между началом воспроизведения и первым распознаванием
	RetryDelay  time.Duration // Пауза перед повторным запросом камеры

	OnResult      func(result domain.ScanResult)
	OnError       func(message string)
	OnStateChange func(state domain.ScannerState)
}

// BarcodeScanner связывает получение потока и распознавание в единый
// жизненный цикл, управляемый флагом активности
type BarcodeScanner struct {
	guard    *MountGuard
	acquirer *StreamAcquirer
	decoder  *DecoderAdapter
	sink     VideoSink
	logger   Logger
	options  ScannerOptions

	// opMutex упорядочивает SetActive и Close
	opMutex sync.Mutex

	mutex     sync.Mutex
	active    bool
	closed    bool
	state     domain.ScannerState
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	sessionID string
	log       Logger // Логгер текущей сессии
}

// NewBarcodeScanner создает и монтирует сканер
func NewBarcodeScanner(deps ScannerDeps, options ScannerOptions) *BarcodeScanner {
	guard := NewMountGuard()

	s := &BarcodeScanner{
		guard:   guard,
		sink:    deps.Sink,
		logger:  deps.Logger,
		options: options,
		state:   domain.StateIdle,
		log:     deps.Logger,
	}

	s.acquirer = NewStreamAcquirer(deps.Devices, deps.Sink, guard, deps.Logger, AcquirerConfig{
		Constraints: options.Constraints,
		RetryDelay:  options.RetryDelay,
	})
	s.acquirer.OnPlaying = s.handlePlaying
	s.acquirer.OnError = s.emitError

	var source FrameSource
	if deps.Sink != nil {
		source = deps.Sink
	}
	s.decoder = NewDecoderAdapter(deps.NewDecoder, source, guard, deps.Logger, s.acquirer.IsPlaying, options.StartDelay)
	s.decoder.OnResult = s.handleResult
	s.decoder.OnError = s.emitError
	s.decoder.OnAbort = s.handleScanAborted
	s.decoder.Mount()

	return s
}

// SetActive включает или выключает сканер. Повторные вызовы с тем же
// значением ничего не делают.
func (s *BarcodeScanner) SetActive(active bool) {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()

	if active {
		s.activate()
	} else {
		s.deactivate()
	}
}

func (s *BarcodeScanner) activate() {
	s.mutex.Lock()
	if s.closed || s.active || !s.guard.Mounted() {
		s.mutex.Unlock()
		return
	}
	s.active = true
	s.gen++
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.sessionID = uuid.NewString()
	s.log = s.sessionLogger(s.sessionID)
	log := s.log
	s.mutex.Unlock()

	log.Info("Сканер активирован")
	s.beginAcquire()
}

// beginAcquire запускает запрос камеры в отдельной горутине
func (s *BarcodeScanner) beginAcquire() {
	s.mutex.Lock()
	if !s.active || !s.guard.Mounted() || s.state != domain.StateIdle {
		s.mutex.Unlock()
		return
	}
	gen, ctx := s.gen, s.ctx
	notify := s.setStateLocked(domain.StateAcquiring)
	s.mutex.Unlock()
	notify()

	go s.acquire(ctx, gen)
}

func (s *BarcodeScanner) acquire(ctx context.Context, gen uint64) {
	ok := s.acquirer.StartVideoStream(ctx)

	s.mutex.Lock()
	if gen != s.gen || !s.active || !s.guard.Mounted() || s.state != domain.StateAcquiring {
		s.mutex.Unlock()
		return
	}
	next := domain.StateIdle
	if ok {
		next = domain.StateStreaming
	}
	notify := s.setStateLocked(next)
	s.mutex.Unlock()
	notify()
}

// handlePlaying вызывается после старта воспроизведения; событие может
// прийти раньше, чем acquire переведет состояние в Streaming
func (s *BarcodeScanner) handlePlaying() {
	s.mutex.Lock()
	if !s.active || !s.guard.Mounted() ||
		(s.state != domain.StateAcquiring && s.state != domain.StateStreaming) {
		s.mutex.Unlock()
		return
	}
	var notify []func()
	if s.state == domain.StateAcquiring {
		notify = append(notify, s.setStateLocked(domain.StateStreaming))
	}
	notify = append(notify, s.setStateLocked(domain.StateScanning))
	s.decoder.StartScanning()
	s.mutex.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// handleScanAborted возвращает сканер в Streaming, если цикл
// распознавания не запустился; поток при этом остается привязанным
func (s *BarcodeScanner) handleScanAborted() {
	s.mutex.Lock()
	if !s.active || !s.guard.Mounted() || s.state != domain.StateScanning {
		s.mutex.Unlock()
		return
	}
	notify := s.setStateLocked(domain.StateStreaming)
	s.mutex.Unlock()
	notify()
}

func (s *BarcodeScanner) deactivate() {
	s.mutex.Lock()
	if !s.active {
		s.mutex.Unlock()
		return
	}
	s.active = false
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	notify := s.setStateLocked(domain.StateStopping)
	s.mutex.Unlock()
	notify()

	s.teardown()
	s.sessionLog().Info("Сканер деактивирован")

	s.mutex.Lock()
	notify = func() {}
	if s.state == domain.StateStopping {
		notify = s.setStateLocked(domain.StateIdle)
	}
	s.mutex.Unlock()
	notify()
}

// teardown останавливает распознавание раньше, чем освобождается поток
func (s *BarcodeScanner) teardown() {
	s.decoder.StopScanning()
	s.acquirer.ForceCleanup()
}

// RetryPermission повторяет запрос камеры после отказа
func (s *BarcodeScanner) RetryPermission() {
	s.acquirer.HandleRetryPermission(s.IsActive, s.beginAcquire)
}

// Close размонтирует сканер и освобождает все ресурсы. Повторный вызов
// ничего не делает.
func (s *BarcodeScanner) Close() {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.closed = true
	s.guard.Unmount()
	s.active = false
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	s.setStateLocked(domain.StateStopping)
	s.mutex.Unlock()

	s.teardown()
	s.decoder.Dispose()

	s.mutex.Lock()
	s.setStateLocked(domain.StateIdle)
	s.mutex.Unlock()

	s.logger.Info("Сканер закрыт")
}

func (s *BarcodeScanner) handleResult(result DecodeResult) {
	s.mutex.Lock()
	if !s.active || !s.guard.Mounted() {
		s.mutex.Unlock()
		return
	}
	scan := domain.ScanResult{
		Text:      result.Text,
		Format:    result.Format,
		SessionID: s.sessionID,
		ScannedAt: time.Now(),
	}
	log := s.log
	s.mutex.Unlock()

	log.Debug("Результат сканирования: %s", scan.Text)

	if s.options.OnResult != nil {
		s.options.OnResult(scan)
	}
}

func (s *BarcodeScanner) emitError(message string) {
	if s.options.OnError != nil && s.guard.Mounted() {
		s.options.OnError(message)
	}
}

// setStateLocked меняет состояние; возвращенную функцию уведомления
// нужно вызвать после снятия блокировки
func (s *BarcodeScanner) setStateLocked(state domain.ScannerState) func() {
	if s.state == state {
		return func() {}
	}
	s.log.Debug("Состояние сканера: %s -> %s", s.state, state)
	s.state = state

	cb := s.options.OnStateChange
	if cb == nil || !s.guard.Mounted() {
		return func() {}
	}
	return func() { cb(state) }
}

// sessionLogger добавляет идентификатор сессии, если логгер это умеет
func (s *BarcodeScanner) sessionLogger(id string) Logger {
	if fl, ok := s.logger.(FieldLogger); ok {
		return fl.WithField("session", id)
	}
	return s.logger
}

func (s *BarcodeScanner) sessionLog() Logger {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.log
}

// Sink возвращает элемент видео для отображения
func (s *BarcodeScanner) Sink() VideoSink {
	return s.sink
}

// Permission возвращает трехзначный признак доступа к камере
func (s *BarcodeScanner) Permission() domain.Permission {
	return s.acquirer.Permission()
}

// IsScanning сообщает, активен ли цикл распознавания
func (s *BarcodeScanner) IsScanning() bool {
	return s.decoder.IsScanning()
}

// IsActive возвращает текущее значение флага активности
func (s *BarcodeScanner) IsActive() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.active
}

// State возвращает текущее состояние
func (s *BarcodeScanner) State() domain.ScannerState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// SessionID идентификатор текущего цикла активации
func (s *BarcodeScanner) SessionID() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.sessionID
}
