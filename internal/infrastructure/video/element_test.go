package video

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/domain"
	"barcode-scanner/internal/infrastructure/logger"
)

type stubReader struct {
	mu     sync.Mutex
	frame  image.Image
	err    error
	closed bool
	block  chan struct{}
}

func (r *stubReader) Read() (image.Image, func(), error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, io.EOF
	}
	return r.frame, func() {}, r.err
}

func (r *stubReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *stubReader) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *stubReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type stubStream struct {
	reader *stubReader
}

func (s *stubStream) ID() string                       { return "stub" }
func (s *stubStream) Tracks() []application.MediaTrack { return nil }
func (s *stubStream) NewFrameReader() (application.FrameReader, error) {
	return s.reader, nil
}

func newTestElement() *Element {
	return NewElement(logger.NewWithWriter(logger.Config{Level: "error", Format: "json"}, io.Discard))
}

func newStubStream() *stubStream {
	return &stubStream{reader: &stubReader{frame: image.NewGray(image.Rect(0, 0, 4, 4))}}
}

func TestElementCanPlayIsAsync(t *testing.T) {
	e := newTestElement()
	fired := make(chan struct{}, 1)
	e.OnCanPlay(func() { fired <- struct{}{} })

	e.SetSource(newStubStream())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("can-play was not fired")
	}
}

func TestElementPlayAndRead(t *testing.T) {
	e := newTestElement()
	stream := newStubStream()
	e.SetSource(stream)

	_, _, err := e.ReadFrame()
	assert.Equal(t, domain.ErrNameInvalidState, domain.ErrorName(err))

	require.NoError(t, e.Play(context.Background()))
	assert.False(t, e.Paused())

	img, release, err := e.ReadFrame()
	require.NoError(t, err)
	assert.NotNil(t, img)
	release()

	e.Pause()
	_, _, err = e.ReadFrame()
	assert.Equal(t, domain.ErrNameInvalidState, domain.ErrorName(err))
}

func TestElementPlayWithoutSource(t *testing.T) {
	err := newTestElement().Play(context.Background())
	assert.Equal(t, domain.ErrNameInvalidState, domain.ErrorName(err))
}

func TestElementPlayCancelled(t *testing.T) {
	e := newTestElement()
	stream := newStubStream()
	stream.reader.block = make(chan struct{})
	defer close(stream.reader.block)
	e.SetSource(stream)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Play(ctx)
	assert.Equal(t, domain.ErrNameAbort, domain.ErrorName(err))
	assert.True(t, e.Paused())
}

func TestElementUnbindClosesReader(t *testing.T) {
	e := newTestElement()
	stream := newStubStream()
	e.SetSource(stream)
	require.NoError(t, e.Play(context.Background()))

	e.Pause()
	e.SetSource(nil)
	e.Load()

	assert.Nil(t, e.Source())
	assert.True(t, stream.reader.isClosed())
}

func TestElementReadErrorFiresOnce(t *testing.T) {
	e := newTestElement()
	stream := newStubStream()
	e.SetSource(stream)
	require.NoError(t, e.Play(context.Background()))

	errs := make(chan error, 4)
	detach := e.OnError(func(err error) { errs <- err })
	defer detach()

	stream.reader.setErr(errors.New("usb disconnected"))
	_, _, err := e.ReadFrame()
	assert.Equal(t, domain.ErrNameNotReadable, domain.ErrorName(err))
	_, _, _ = e.ReadFrame()

	require.Eventually(t, func() bool { return len(errs) == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(errs) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestElementDetachListener(t *testing.T) {
	e := newTestElement()
	fired := make(chan struct{}, 1)
	detach := e.OnCanPlay(func() { fired <- struct{}{} })
	detach()

	e.SetSource(newStubStream())
	assert.Never(t, func() bool { return len(fired) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}
