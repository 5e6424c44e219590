package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/PG-9-9/Musical-Video-Generator/pkg/audio"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/effects"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

// ErrRender matches every *RenderError.
var ErrRender = errors.New("render failed")

// RenderError reports the first frame that failed to render.
type RenderError struct {
	Frame int
	Time  float64
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render frame %d (t=%.3fs): %v", e.Frame, e.Time, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool { return target == ErrRender }

// VideoRenderer composes timeline segments into a frame sequence
type VideoRenderer struct {
	Width        int
	Height       int
	FPS          int
	Workers      int
	CrossfadeSec float64
	StylePreset  string
	Logger       logrus.FieldLogger

	// Timing statistics
	RenderTimings    []time.Duration
	MaxTimingSamples int

	mu sync.Mutex
}

// VideoRenderOptions contains all parameters for one render
type VideoRenderOptions struct {
	Timeline *timeline.Timeline
	// Estimate supplies beats and the energy curve; nil renders without
	// pulses or drift.
	Estimate *audio.TempoEstimate

	// Subtitles draws the karaoke bar when set.
	Subtitles *SubtitleStyle
	// Metadata draws the header text when set.
	Metadata *MetadataOverlay

	// Progress is called after each written frame.
	Progress func(done, total int)
}

// RenderResult summarizes a committed render
type RenderResult struct {
	Frames   int
	Duration float64
	Elapsed  time.Duration
}

func NewVideoRenderer() *VideoRenderer {
	return &VideoRenderer{
		Width:            1280,
		Height:           720,
		FPS:              24,
		Workers:          runtime.NumCPU(),
		CrossfadeSec:     0.5,
		StylePreset:      "synthwave",
		RenderTimings:    make([]time.Duration, 0),
		MaxTimingSamples: 5,
	}
}

func (vr *VideoRenderer) log() logrus.FieldLogger {
	if vr.Logger != nil {
		return vr.Logger
	}
	return logrus.StandardLogger()
}

// RenderVideo builds the sequence for opts and renders every frame into sink.
func (vr *VideoRenderer) RenderVideo(ctx context.Context, opts *VideoRenderOptions, sink FrameSink) (*RenderResult, error) {
	if opts == nil || opts.Timeline == nil || len(opts.Timeline.Segments) == 0 {
		return nil, errors.New("timeline has no segments")
	}
	if sink == nil {
		return nil, errors.New("no frame sink")
	}
	if vr.Width <= 0 || vr.Height <= 0 || vr.FPS <= 0 {
		return nil, fmt.Errorf("invalid output geometry %dx%d@%d", vr.Width, vr.Height, vr.FPS)
	}

	log := vr.log()
	log.Info("Step 1/5: Building clip sequence...")
	seq := vr.BuildSequence(opts.Timeline, opts.Estimate)
	log.WithFields(logrus.Fields{
		"clips":    len(seq.Clips),
		"frames":   seq.FrameCount(),
		"duration": seq.Duration,
		"preset":   vr.StylePreset,
	}).Info("Step 2/5: Style timeline and overlays prepared")

	return vr.RenderSequence(ctx, seq, opts, sink)
}

// RenderSequence renders a prepared sequence. Frames are composed
// concurrently; the first failure cancels the rest and the sink is aborted.
func (vr *VideoRenderer) RenderSequence(ctx context.Context, seq *Sequence, opts *VideoRenderOptions, sink FrameSink) (*RenderResult, error) {
	startTime := time.Now()
	log := vr.log()
	if opts == nil {
		opts = &VideoRenderOptions{}
	}

	total := seq.FrameCount()
	if err := sink.Begin(total); err != nil {
		return nil, fmt.Errorf("failed to open frame sink: %w", err)
	}

	workers := vr.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	log.WithField("workers", workers).Infof("Step 3/5: Rendering %d frames...", total)
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < total; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t := float64(i) / float64(seq.FPS)
			img, err := vr.safeCompose(seq, opts, i)
			if err == nil {
				err = sink.WriteFrame(i, img)
			}
			if err != nil {
				return &RenderError{Frame: i, Time: t, Err: err}
			}
			n := done.Add(1)
			if opts.Progress != nil {
				opts.Progress(int(n), total)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if abortErr := sink.Abort(); abortErr != nil {
			log.WithError(abortErr).Warn("Failed to discard partial frames")
		}
		log.WithError(err).Error("Render failed, partial output discarded")
		return nil, err
	}

	log.Info("Step 4/5: Committing frames...")
	if err := sink.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit frames: %w", err)
	}

	elapsed := time.Since(startTime)
	vr.recordTiming(elapsed)
	log.WithField("elapsed", elapsed.Round(time.Millisecond)).Infof("Step 5/5: ✓ Rendered %d frames", total)
	return &RenderResult{Frames: total, Duration: seq.Duration, Elapsed: elapsed}, nil
}

func (vr *VideoRenderer) safeCompose(seq *Sequence, opts *VideoRenderOptions, i int) (img *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ComposeFrame(seq, opts, i)
}

// ComposeFrame produces global frame i. It depends only on seq, opts and i.
func ComposeFrame(seq *Sequence, opts *VideoRenderOptions, i int) (*image.RGBA, error) {
	t := float64(i) / float64(seq.FPS)
	clip, local := seq.ClipAt(t)
	if clip == nil {
		return nil, errors.New("sequence has no clips")
	}

	f := shadeClip(seq, clip, i, local)
	if i < len(seq.Drift) {
		dx, dy := DriftOffset(i, seq.Drift[i])
		f = Translate(f, dx, dy)
	}
	SceneTint(f, clip.Segment.Color)
	AddPulses(f, seq.Beats, t)

	img := f.ToRGBA()
	if opts != nil && opts.Subtitles != nil {
		if err := opts.Subtitles.Draw(img, seq.Lines, t); err != nil {
			return nil, fmt.Errorf("failed to draw subtitles: %w", err)
		}
	}
	if opts != nil && opts.Metadata != nil {
		if err := opts.Metadata.Draw(img, clip.Segment.Emotion, seq.BPM); err != nil {
			return nil, fmt.Errorf("failed to draw metadata: %w", err)
		}
	}
	return img, nil
}

// shadeClip renders the clip's effect for frame i and applies the style
// grade, texture and energy bloom. The crossfade is applied last so a fading
// clip starts from black.
func shadeClip(seq *Sequence, clip *Clip, i int, local float64) *effects.Frame {
	f := effects.RenderFrame(clip.Effect, clip.State, local, seq.Width, seq.Height)
	if i < len(seq.Style) {
		f = Grade(f, seq.Style[i])
		f = ApplyTexture(f, seq.Style[i], i)
	}
	if i < len(seq.Energy) {
		f = Bloom(f, seq.Energy[i])
	}
	return FadeIn(f, local, clip.FadeIn)
}

func (vr *VideoRenderer) recordTiming(d time.Duration) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.RenderTimings = append(vr.RenderTimings, d)
	if vr.MaxTimingSamples > 0 && len(vr.RenderTimings) > vr.MaxTimingSamples {
		vr.RenderTimings = vr.RenderTimings[1:]
	}
}

// GetAverageRenderTime returns the average video render time
func (vr *VideoRenderer) GetAverageRenderTime() time.Duration {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	if len(vr.RenderTimings) == 0 {
		return 0
	}
	var total time.Duration
	for _, t := range vr.RenderTimings {
		total += t
	}
	return total / time.Duration(len(vr.RenderTimings))
}
