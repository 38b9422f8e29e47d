package application

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"barcode-scanner/internal/domain"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type fakeLogger struct {
	mu     sync.Mutex
	warns  []string
	errs   []string
	fields []string
}

func (l *fakeLogger) WithField(key, value string) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fields = append(l.fields, key+"="+value)
	return l
}

func (l *fakeLogger) fieldLog() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.fields...)
}

func (l *fakeLogger) Info(string, ...interface{})  {}
func (l *fakeLogger) Debug(string, ...interface{}) {}

func (l *fakeLogger) Warn(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(msg, args...))
}

func (l *fakeLogger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, fmt.Sprintf(msg, args...))
}

func (l *fakeLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

type fakeTrack struct {
	id      string
	stopped atomic.Bool
	onStop  func()
	panics  bool
}

func (t *fakeTrack) ID() string { return t.id }

func (t *fakeTrack) Stop() error {
	if t.onStop != nil {
		t.onStop()
	}
	if t.panics {
		panic("track exploded")
	}
	if t.stopped.Swap(true) {
		return errors.New("track already stopped")
	}
	return nil
}

type fakeStream struct {
	id     string
	tracks []*fakeTrack
}

func newFakeStream(id string) *fakeStream {
	return &fakeStream{id: id, tracks: []*fakeTrack{{id: id + "-video"}}}
}

func (s *fakeStream) ID() string { return s.id }

func (s *fakeStream) Tracks() []MediaTrack {
	tracks := make([]MediaTrack, 0, len(s.tracks))
	for _, t := range s.tracks {
		tracks = append(tracks, t)
	}
	return tracks
}

func (s *fakeStream) NewFrameReader() (FrameReader, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStream) allStopped() bool {
	for _, t := range s.tracks {
		if !t.stopped.Load() {
			return false
		}
	}
	return true
}

type fakeDevices struct {
	gate   chan struct{}
	mu     sync.Mutex
	stream *fakeStream
	err    error
	calls  atomic.Int32
}

func (d *fakeDevices) setStream(stream *fakeStream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stream = stream
}

func (d *fakeDevices) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDevices) ListDevices() ([]domain.VideoDevice, error) {
	return []domain.VideoDevice{{ID: "cam0", Label: "Back Camera", Kind: "videoinput"}}, nil
}

func (d *fakeDevices) GetUserMedia(ctx context.Context, constraints domain.VideoConstraints) (MediaStream, error) {
	d.mu.Lock()
	stream, err := d.stream, d.err
	d.mu.Unlock()

	d.calls.Add(1)
	if d.gate != nil {
		<-d.gate
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

type fakeSink struct {
	mu        sync.Mutex
	source    MediaStream
	paused    bool
	loads     int
	plays     int
	playErr   error
	autoReady bool
	canPlay   map[int]func()
	onError   map[int]func(error)
	nextID    int
}

func newFakeSink() *fakeSink {
	return &fakeSink{canPlay: map[int]func(){}, onError: map[int]func(error){}}
}

func (s *fakeSink) ReadFrame() (image.Image, func(), error) {
	return nil, nil, domain.NewMediaError(domain.ErrNameInvalidState, nil)
}

// SetSource, как и video.Element, объявляет готовность только тем
// обработчикам, которые подписаны до привязки
func (s *fakeSink) SetSource(stream MediaStream) {
	s.mu.Lock()
	s.source = stream
	var listeners []func()
	if s.autoReady && stream != nil {
		listeners = s.canPlayListenersLocked()
	}
	s.mu.Unlock()
	if len(listeners) > 0 {
		go func() {
			for _, fn := range listeners {
				fn()
			}
		}()
	}
}

func (s *fakeSink) canPlayListenersLocked() []func() {
	listeners := make([]func(), 0, len(s.canPlay))
	for _, fn := range s.canPlay {
		listeners = append(listeners, fn)
	}
	return listeners
}

func (s *fakeSink) Source() MediaStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *fakeSink) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	if s.playErr != nil {
		return s.playErr
	}
	s.paused = false
	return nil
}

func (s *fakeSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *fakeSink) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
}

func (s *fakeSink) OnCanPlay(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.canPlay[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.canPlay, id)
	}
}

func (s *fakeSink) OnError(fn func(error)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.onError[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.onError, id)
	}
}

func (s *fakeSink) fireCanPlay() {
	s.mu.Lock()
	listeners := s.canPlayListenersLocked()
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (s *fakeSink) fireError(err error) {
	s.mu.Lock()
	listeners := make([]func(error), 0, len(s.onError))
	for _, fn := range s.onError {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
}

func (s *fakeSink) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.canPlay) + len(s.onError)
}

type fakeControls struct {
	stops atomic.Int32
}

func (c *fakeControls) Stop() { c.stops.Add(1) }

type fakeDecoder struct {
	mu       sync.Mutex
	starts   int
	resets   int
	startErr error
	callback DecodeCallback
	controls *fakeControls
}

func (d *fakeDecoder) DecodeFromSource(source FrameSource, callback DecodeCallback) (DecodeControls, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	if d.startErr != nil {
		return nil, d.startErr
	}
	d.callback = callback
	d.controls = &fakeControls{}
	return d.controls, nil
}

func (d *fakeDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
}

func (d *fakeDecoder) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

func (d *fakeDecoder) resetCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

func (d *fakeDecoder) lastControls() *fakeControls {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.controls
}

func (d *fakeDecoder) emit(text string) {
	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()
	if cb != nil {
		cb(&DecodeResult{Text: text, Format: "UPC_A"}, nil)
	}
}

func (d *fakeDecoder) fail(err error) {
	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()
	if cb != nil {
		cb(nil, err)
	}
}

// recorder собирает сообщения обратных вызовов
type recorder struct {
	mu      sync.Mutex
	texts   []string
	errors  []string
	states  []domain.ScannerState
	playing int
}

func (r *recorder) onText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func (r *recorder) onError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recorder) onState(state domain.ScannerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) onPlaying() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing++
}

func (r *recorder) snapshot() (texts, errs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...), append([]string(nil), r.errors...)
}

func (r *recorder) stateLog() []domain.ScannerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ScannerState(nil), r.states...)
}

func (r *recorder) playingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}
