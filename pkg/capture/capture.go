// Package capture samples frames from a camera at a fixed rate, downscales
// and JPEG-encodes them for the recognizer.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/meetsl-go/pkg/rtc"
)

var (
	// ErrPermissionDenied means the camera exists but access was refused.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDeviceNotFound means no camera is available.
	ErrDeviceNotFound = errors.New("camera not found")
)

// ErrorKind classifies acquisition failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPermissionDenied
	KindDeviceNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission-denied"
	case KindDeviceNotFound:
		return "device-not-found"
	default:
		return "unknown"
	}
}

// Classify maps an acquisition error to its kind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, fs.ErrNotExist):
		return KindDeviceNotFound
	default:
		return KindUnknown
	}
}

// CaptureError is the observable acquisition failure.
type CaptureError struct {
	Kind ErrorKind
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("camera %s: %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Camera is the frame provider capability.
type Camera interface {
	// Acquire opens the device. It is called each time capture is enabled.
	Acquire(ctx context.Context) error
	// Release closes the device.
	Release() error
	// Frame returns the latest frame, or false when none is ready yet.
	Frame() (image.Image, bool)
}

// Config controls sampling and encoding.
type Config struct {
	FPS         int     `toml:"fps"`
	MaxWidth    int     `toml:"max_width"`
	JPEGQuality float64 `toml:"jpeg_quality"`
}

// DefaultConfig samples 10 frames per second at up to 640 pixels wide.
var DefaultConfig = Config{
	FPS:         10,
	MaxWidth:    640,
	JPEGQuality: 0.7,
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.FPS < 1 || c.FPS > 60:
		return fmt.Errorf("fps must be in [1, 60], got %d", c.FPS)
	case c.MaxWidth < 1:
		return fmt.Errorf("max width must be positive, got %d", c.MaxWidth)
	case c.JPEGQuality <= 0 || c.JPEGQuality > 1:
		return fmt.Errorf("jpeg quality must be in (0, 1], got %v", c.JPEGQuality)
	}
	return nil
}

// Stats is a snapshot of the source counters.
type Stats struct {
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
	Emitted uint64 `json:"emitted"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// Source runs the capture loop while enabled and hands each encoded frame to
// the emit callback.
type Source struct {
	cfg    Config
	cam    Camera
	emit   func(*rtc.Frame)
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	enabled  bool
	running  bool
	acquired bool
	err      *CaptureError
	cancel   context.CancelFunc
	done     chan struct{}

	emitted atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

// NewSource creates a disabled Source.
func NewSource(cfg Config, cam Camera, emit func(*rtc.Frame), logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		cfg:    cfg,
		cam:    cam,
		emit:   emit,
		logger: logger,
		now:    time.Now,
	}
}

// SetEnabled starts or stops capture. Enabling acquires the camera in the
// background; disabling stops the loop and releases the camera. Turning
// capture off and on again retries a failed acquisition.
func (s *Source) SetEnabled(enabled bool) {
	s.mu.Lock()
	if enabled == s.enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = enabled

	if enabled {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		s.cancel = cancel
		s.done = done
		s.mu.Unlock()

		go s.run(ctx, done)
		return
	}

	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	acquired := s.acquired
	s.acquired = false
	s.mu.Unlock()

	if acquired {
		if err := s.cam.Release(); err != nil {
			s.logger.Warn("Failed to release camera", slog.String("error", err.Error()))
		}
	}
}

// Enabled reports whether capture is switched on.
func (s *Source) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Err returns the active acquisition error, if any.
func (s *Source) Err() *CaptureError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns the source counters.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Enabled: s.enabled,
		Running: s.running,
		Emitted: s.emitted.Load(),
		Skipped: s.skipped.Load(),
		Failed:  s.failed.Load(),
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	return st
}

// Close stops capture.
func (s *Source) Close() {
	s.SetEnabled(false)
}

func (s *Source) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := s.cam.Acquire(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		cerr := &CaptureError{Kind: Classify(err), Err: err}
		s.mu.Lock()
		s.err = cerr
		s.mu.Unlock()
		s.logger.Warn("Camera unavailable",
			slog.String("kind", cerr.Kind.String()),
			slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.err = nil
	s.acquired = true
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("Capture started", slog.Int("fps", s.cfg.FPS))

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Capture stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Source) tick() {
	img, ok := s.cam.Frame()
	if !ok {
		s.skipped.Add(1)
		return
	}

	scaled := Downscale(img, s.cfg.MaxWidth)
	data, err := EncodeJPEG(scaled, s.cfg.JPEGQuality)
	if err != nil {
		s.failed.Add(1)
		s.logger.Debug("Frame encode failed", slog.String("error", err.Error()))
		return
	}

	b := scaled.Bounds()
	s.emit(&rtc.Frame{
		Data:   data,
		Width:  b.Dx(),
		Height: b.Dy(),
		TS:     s.now().UnixMilli(),
	})
	s.emitted.Add(1)
}
