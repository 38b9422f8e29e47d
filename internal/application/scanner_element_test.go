package application_test

import (
	"context"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/domain"
	"barcode-scanner/internal/infrastructure/decoder"
	"barcode-scanner/internal/infrastructure/logger"
	"barcode-scanner/internal/infrastructure/video"
)

type frameLoop struct {
	img image.Image
}

func (r *frameLoop) Read() (image.Image, func(), error) {
	time.Sleep(time.Millisecond)
	return r.img, func() {}, nil
}

func (r *frameLoop) Close() error { return nil }

type cameraTrack struct {
	stopped atomic.Bool
}

func (t *cameraTrack) ID() string { return "video0" }

func (t *cameraTrack) Stop() error {
	t.stopped.Store(true)
	return nil
}

type cameraStream struct {
	img   image.Image
	track *cameraTrack
}

func (s *cameraStream) ID() string                       { return "camera" }
func (s *cameraStream) Tracks() []application.MediaTrack { return []application.MediaTrack{s.track} }
func (s *cameraStream) NewFrameReader() (application.FrameReader, error) {
	return &frameLoop{img: s.img}, nil
}

type camera struct {
	stream *cameraStream
}

func (c *camera) ListDevices() ([]domain.VideoDevice, error) {
	return []domain.VideoDevice{{ID: "cam0", Label: "Back Camera", Kind: "videoinput"}}, nil
}

func (c *camera) GetUserMedia(ctx context.Context, constraints domain.VideoConstraints) (application.MediaStream, error) {
	return c.stream, nil
}

func TestScannerWithVideoElement(t *testing.T) {
	img, err := qrcode.NewQRCodeWriter().Encode("123456789012", gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	require.NoError(t, err)

	log := logger.NewWithWriter(logger.Config{Level: "error", Format: "json"}, io.Discard)
	newDecoder, err := decoder.Factory(decoder.Config{Formats: []string{"QR_CODE"}, ScanInterval: time.Millisecond}, log)
	require.NoError(t, err)

	stream := &cameraStream{img: img, track: &cameraTrack{}}
	var (
		mu    sync.Mutex
		texts []string
	)
	scanner := application.NewBarcodeScanner(application.ScannerDeps{
		Devices:    &camera{stream: stream},
		Sink:       video.NewElement(log),
		NewDecoder: newDecoder,
		Logger:     log,
	}, application.ScannerOptions{
		Constraints: domain.DefaultVideoConstraints(),
		OnResult: func(result domain.ScanResult) {
			mu.Lock()
			defer mu.Unlock()
			texts = append(texts, result.Text)
		},
	})
	defer scanner.Close()

	scanner.SetActive(true)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(texts) > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.StateScanning, scanner.State())

	scanner.SetActive(false)

	mu.Lock()
	assert.Equal(t, "123456789012", texts[0])
	mu.Unlock()
	assert.True(t, stream.track.stopped.Load())
	assert.Nil(t, scanner.Sink().Source())
	assert.False(t, scanner.IsScanning())
}
