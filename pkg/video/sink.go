package video

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/fogleman/gg"
)

// FrameSink receives rendered frames. WriteFrame may be called concurrently
// with distinct indexes. Exactly one of Commit or Abort ends a render.
type FrameSink interface {
	Begin(total int) error
	WriteFrame(index int, img image.Image) error
	Commit() error
	Abort() error
}

var errSinkClosed = errors.New("sink already closed")

// MemorySink keeps frames in memory. Frames is only populated after Commit.
type MemorySink struct {
	Frames []image.Image

	mu      sync.Mutex
	pending []image.Image
	closed  bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Begin(total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make([]image.Image, total)
	s.Frames = nil
	s.closed = false
	return nil
}

func (s *MemorySink) WriteFrame(index int, img image.Image) error {
	if index < 0 || index >= len(s.pending) {
		return fmt.Errorf("frame index %d out of range [0,%d)", index, len(s.pending))
	}
	s.pending[index] = img
	return nil
}

func (s *MemorySink) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	s.Frames, s.pending, s.closed = s.pending, nil, true
	return nil
}

func (s *MemorySink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending, s.closed = nil, true
	return nil
}

// PNGSink writes frame%05d.png files into a staging directory next to Dir
// and renames it into place on Commit. A failed render leaves Dir untouched.
type PNGSink struct {
	Dir string

	staging string
}

func NewPNGSink(dir string) *PNGSink {
	return &PNGSink{Dir: dir}
}

// FrameName is the file name of frame i.
func FrameName(i int) string {
	return fmt.Sprintf("frame%05d.png", i)
}

func (s *PNGSink) Begin(total int) error {
	parent := filepath.Dir(s.Dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(s.Dir)+"-staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	s.staging = staging
	return nil
}

func (s *PNGSink) WriteFrame(index int, img image.Image) error {
	if s.staging == "" {
		return errSinkClosed
	}
	if err := gg.SavePNG(filepath.Join(s.staging, FrameName(index)), img); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", index, err)
	}
	return nil
}

func (s *PNGSink) Commit() error {
	if s.staging == "" {
		return errSinkClosed
	}
	if err := ReplaceDir(s.staging, s.Dir); err != nil {
		return fmt.Errorf("failed to move frames into place: %w", err)
	}
	s.staging = ""
	return nil
}

func (s *PNGSink) Abort() error {
	if s.staging == "" {
		return nil
	}
	err := os.RemoveAll(s.staging)
	s.staging = ""
	return err
}

// ReplaceDir renames src to dst. An existing dst is moved aside first and
// restored if the rename fails, so dst always holds either the old or the new
// contents.
func ReplaceDir(src, dst string) error {
	var backup string
	if _, err := os.Stat(dst); err == nil {
		backup, err = os.MkdirTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-previous-")
		if err != nil {
			return err
		}
		if err := os.Remove(backup); err != nil {
			return err
		}
		if err := os.Rename(dst, backup); err != nil {
			return fmt.Errorf("failed to move previous output aside: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(src, dst); err != nil {
		if backup != "" {
			if restoreErr := os.Rename(backup, dst); restoreErr != nil {
				return fmt.Errorf("%w (previous output left at %s: %v)", err, backup, restoreErr)
			}
		}
		return err
	}
	if backup != "" {
		return os.RemoveAll(backup)
	}
	return nil
}
