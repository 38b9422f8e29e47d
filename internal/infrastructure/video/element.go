package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/domain"
)

// Element элемент воспроизведения видео: держит привязанный поток,
// открывает чтение кадров при Play и рассылает события готовности и ошибок
type Element struct {
	logger application.Logger

	mutex     sync.Mutex
	source    application.MediaStream
	reader    application.FrameReader
	paused    bool
	canPlay   map[uint64]func()
	onError   map[uint64]func(error)
	nextID    uint64
	errorSent bool
}

// NewElement создает элемент без источника
func NewElement(logger application.Logger) *Element {
	return &Element{
		logger:  logger,
		paused:  true,
		canPlay: make(map[uint64]func()),
		onError: make(map[uint64]func(error)),
	}
}

// SetSource привязывает поток; nil отвязывает текущий.
// Готовность к воспроизведению объявляется асинхронно.
func (e *Element) SetSource(stream application.MediaStream) {
	e.mutex.Lock()
	reader := e.reader
	e.reader = nil
	e.source = stream
	e.paused = true
	e.errorSent = false
	listeners := make([]func(), 0, len(e.canPlay))
	for _, fn := range e.canPlay {
		listeners = append(listeners, fn)
	}
	e.mutex.Unlock()

	if reader != nil {
		e.closeReader(reader)
	}
	if stream == nil {
		return
	}

	go func() {
		for _, fn := range listeners {
			fn()
		}
	}()
}

// Source возвращает привязанный поток
func (e *Element) Source() application.MediaStream {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.source
}

// Play открывает чтение кадров и дожидается первого кадра
func (e *Element) Play(ctx context.Context) error {
	e.mutex.Lock()
	source := e.source
	reader := e.reader
	e.mutex.Unlock()

	if source == nil {
		return domain.NewMediaError(domain.ErrNameInvalidState, errors.New("нет источника видео"))
	}

	if reader == nil {
		var err error
		reader, err = source.NewFrameReader()
		if err != nil {
			return err
		}
	}

	type frame struct {
		release func()
		err     error
	}
	first := make(chan frame, 1)
	go func() {
		_, release, err := reader.Read()
		first <- frame{release: release, err: err}
	}()

	select {
	case <-ctx.Done():
		e.closeReader(reader)
		return domain.NewMediaError(domain.ErrNameAbort, ctx.Err())
	case f := <-first:
		if f.release != nil {
			f.release()
		}
		if f.err != nil {
			e.closeReader(reader)
			return domain.NewMediaError(domain.ErrNameNotReadable, fmt.Errorf("первый кадр: %w", f.err))
		}
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.source != source {
		// Источник сменился, пока ждали кадр
		go e.closeReader(reader)
		return domain.NewMediaError(domain.ErrNameAbort, errors.New("источник видео сменился"))
	}
	e.reader = reader
	e.paused = false
	return nil
}

// Pause приостанавливает выдачу кадров
func (e *Element) Pause() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.paused = true
}

// Paused сообщает, приостановлено ли воспроизведение
func (e *Element) Paused() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.paused
}

// Load сбрасывает состояние воспроизведения и закрывает чтение кадров
func (e *Element) Load() {
	e.mutex.Lock()
	reader := e.reader
	e.reader = nil
	e.paused = true
	e.mutex.Unlock()

	if reader != nil {
		e.closeReader(reader)
	}
}

// ReadFrame возвращает текущий кадр воспроизводимого потока
func (e *Element) ReadFrame() (image.Image, func(), error) {
	e.mutex.Lock()
	reader := e.reader
	playing := e.source != nil && reader != nil && !e.paused
	e.mutex.Unlock()

	if !playing {
		return nil, nil, domain.NewMediaError(domain.ErrNameInvalidState, errors.New("видео не воспроизводится"))
	}

	img, release, err := reader.Read()
	if err != nil {
		if release != nil {
			release()
		}
		if !errors.Is(err, io.EOF) {
			e.emitError(err)
		}
		return nil, nil, domain.NewMediaError(domain.ErrNameNotReadable, err)
	}
	return img, release, nil
}

// OnCanPlay регистрирует обработчик готовности к воспроизведению
func (e *Element) OnCanPlay(fn func()) func() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	id := e.nextID
	e.nextID++
	e.canPlay[id] = fn
	return func() {
		e.mutex.Lock()
		defer e.mutex.Unlock()
		delete(e.canPlay, id)
	}
}

// OnError регистрирует обработчик ошибки воспроизведения
func (e *Element) OnError(fn func(error)) func() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	id := e.nextID
	e.nextID++
	e.onError[id] = fn
	return func() {
		e.mutex.Lock()
		defer e.mutex.Unlock()
		delete(e.onError, id)
	}
}

// emitError сообщает об ошибке один раз на привязанный источник
func (e *Element) emitError(err error) {
	e.mutex.Lock()
	if e.errorSent {
		e.mutex.Unlock()
		return
	}
	e.errorSent = true
	listeners := make([]func(error), 0, len(e.onError))
	for _, fn := range e.onError {
		listeners = append(listeners, fn)
	}
	e.mutex.Unlock()

	e.logger.Warn("Ошибка чтения кадра: %v", err)
	go func() {
		for _, fn := range listeners {
			fn(err)
		}
	}()
}

func (e *Element) closeReader(reader application.FrameReader) {
	if err := reader.Close(); err != nil {
		e.logger.Warn("Ошибка закрытия ридера кадров: %v", err)
	}
}
