package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/domain"
)

// Config параметры распознавания
type Config struct {
	Formats      []string      // Пусто - все поддерживаемые форматы
	TryHarder    bool          // Более медленный и тщательный поиск
	ScanInterval time.Duration // Пауза между попытками распознавания
}

// DefaultConfig все форматы, кадр раз в 100 мс
func DefaultConfig() Config {
	return Config{
		TryHarder:    true,
		ScanInterval: 100 * time.Millisecond,
	}
}

// SupportedFormats имена форматов, которые понимает декодер
var SupportedFormats = []string{"QR_CODE", "EAN_13", "EAN_8", "UPC_A", "UPC_E", "CODE_128", "CODE_39"}

var formatsByName = map[string]gozxing.BarcodeFormat{
	"QR_CODE":  gozxing.BarcodeFormat_QR_CODE,
	"EAN_13":   gozxing.BarcodeFormat_EAN_13,
	"EAN_8":    gozxing.BarcodeFormat_EAN_8,
	"UPC_A":    gozxing.BarcodeFormat_UPC_A,
	"UPC_E":    gozxing.BarcodeFormat_UPC_E,
	"CODE_128": gozxing.BarcodeFormat_CODE_128,
	"CODE_39":  gozxing.BarcodeFormat_CODE_39,
}

// ZXingDecoder непрерывное распознавание кодов с помощью gozxing
type ZXingDecoder struct {
	config  Config
	logger  application.Logger
	hints   map[gozxing.DecodeHintType]interface{}
	readers []gozxing.Reader

	// mutex защищает читатели gozxing: Reset может прийти во время распознавания
	mutex sync.Mutex

	loopMutex sync.Mutex
	last      *loopControls
}

// loopStopTimeout сколько новый запуск ждет выхода предыдущего цикла
const loopStopTimeout = time.Second

// NewZXingDecoder создает декодер для заданных форматов
func NewZXingDecoder(config Config, logger application.Logger) (*ZXingDecoder, error) {
	formats, err := ParseFormats(config.Formats)
	if err != nil {
		return nil, err
	}
	return newZXingDecoder(formats, config, logger), nil
}

// Factory проверяет конфигурацию и возвращает фабрику декодеров для сканера
func Factory(config Config, logger application.Logger) (func() application.FrameDecoder, error) {
	formats, err := ParseFormats(config.Formats)
	if err != nil {
		return nil, err
	}
	return func() application.FrameDecoder {
		return newZXingDecoder(formats, config, logger)
	}, nil
}

// ParseFormats переводит имена форматов в gozxing; пустой список - все поддерживаемые
func ParseFormats(names []string) ([]gozxing.BarcodeFormat, error) {
	if len(names) == 0 {
		names = SupportedFormats
	}

	formats := make([]gozxing.BarcodeFormat, 0, len(names))
	for _, name := range names {
		format, ok := formatsByName[strings.ToUpper(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("неизвестный формат штрихкода: %s", name)
		}
		formats = append(formats, format)
	}
	return formats, nil
}

func newZXingDecoder(formats []gozxing.BarcodeFormat, config Config, logger application.Logger) *ZXingDecoder {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: formats,
	}
	if config.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultConfig().ScanInterval
	}

	return &ZXingDecoder{
		config:  config,
		logger:  logger,
		hints:   hints,
		readers: readersFor(formats, hints),
	}
}

func readersFor(formats []gozxing.BarcodeFormat, hints map[gozxing.DecodeHintType]interface{}) []gozxing.Reader {
	var readers []gozxing.Reader
	var upcean, code128, code39, qr bool

	for _, format := range formats {
		switch format {
		case gozxing.BarcodeFormat_QR_CODE:
			qr = true
		case gozxing.BarcodeFormat_EAN_13, gozxing.BarcodeFormat_EAN_8,
			gozxing.BarcodeFormat_UPC_A, gozxing.BarcodeFormat_UPC_E:
			upcean = true
		case gozxing.BarcodeFormat_CODE_128:
			code128 = true
		case gozxing.BarcodeFormat_CODE_39:
			code39 = true
		}
	}

	if upcean {
		readers = append(readers, oned.NewMultiFormatUPCEANReader(hints))
	}
	if code128 {
		readers = append(readers, oned.NewCode128Reader())
	}
	if code39 {
		readers = append(readers, oned.NewCode39Reader())
	}
	if qr {
		readers = append(readers, qrcode.NewQRCodeReader())
	}
	return readers
}

// DecodeImage распознает код в одном изображении
func (d *ZXingDecoder) DecodeImage(img image.Image) (*application.DecodeResult, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, domain.NewDecodeError(domain.ErrNameFormat, err)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	var lastErr error
	for _, reader := range d.readers {
		result, err := reader.Decode(bmp, d.hints)
		if err == nil {
			return &application.DecodeResult{
				Text:   result.GetText(),
				Format: result.GetBarcodeFormat().String(),
			}, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = gozxing.NewNotFoundException("нет читателей для заданных форматов")
	}
	return nil, ClassifyError(lastErr)
}

// DecodeFromSource запускает цикл распознавания кадров источника
func (d *ZXingDecoder) DecodeFromSource(source application.FrameSource, callback application.DecodeCallback) (application.DecodeControls, error) {
	if source == nil {
		return nil, domain.NewMediaError(domain.ErrNameInvalidState, errors.New("нет источника кадров"))
	}
	if callback == nil {
		return nil, domain.NewMediaError(domain.ErrNameNotSupported, errors.New("нет обработчика результатов"))
	}

	d.loopMutex.Lock()
	defer d.loopMutex.Unlock()

	// Два цикла одного декодера не должны читать кадры одновременно
	if d.last != nil {
		d.last.Stop()
		select {
		case <-d.last.Done():
		case <-time.After(loopStopTimeout):
			d.logger.Warn("Предыдущий цикл распознавания не завершился за %s", loopStopTimeout)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	controls := &loopControls{cancel: cancel, done: make(chan struct{})}
	d.last = controls

	go d.loop(ctx, source, callback, controls.done)
	return controls, nil
}

func (d *ZXingDecoder) loop(ctx context.Context, source application.FrameSource, callback application.DecodeCallback, done chan struct{}) {
	defer close(done)
	d.logger.Debug("Цикл распознавания запущен, интервал %s", d.config.ScanInterval)
	defer d.logger.Debug("Цикл распознавания завершен")

	ticker := time.NewTicker(d.config.ScanInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		result, err := d.decodeFrame(source)
		if ctx.Err() != nil {
			return
		}
		callback(result, err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *ZXingDecoder) decodeFrame(source application.FrameSource) (*application.DecodeResult, error) {
	img, release, err := source.ReadFrame()
	if release != nil {
		defer release()
	}
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, domain.NewDecodeError(domain.ErrNameCodeNotFound, errors.New("пустой кадр"))
	}
	return d.DecodeImage(img)
}

// Reset сбрасывает внутреннее состояние читателей
func (d *ZXingDecoder) Reset() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, reader := range d.readers {
		reader.Reset()
	}
}

// ClassifyError переводит исключения gozxing в штатные промахи распознавания
func ClassifyError(err error) error {
	switch err.(type) {
	case gozxing.NotFoundException:
		return domain.NewDecodeError(domain.ErrNameCodeNotFound, err)
	case gozxing.ChecksumException:
		return domain.NewDecodeError(domain.ErrNameChecksum, err)
	case gozxing.FormatException:
		return domain.NewDecodeError(domain.ErrNameFormat, err)
	}
	if domain.ErrorName(err) != "" {
		return err
	}
	return domain.NewDecodeError(domain.ErrNameUnknown, err)
}

// loopControls останавливает цикл распознавания
type loopControls struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop не ждет завершения текущего кадра: его могут вызвать из обработчика результата
func (c *loopControls) Stop() {
	c.cancel()
}

// Done закрывается после выхода из цикла
func (c *loopControls) Done() <-chan struct{} {
	return c.done
}
