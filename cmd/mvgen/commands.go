package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/PG-9-9/Musical-Video-Generator/internal/worker"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/audio"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

func writeJSON(w io.Writer, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var timelinePath, out string
	cmd := &cobra.Command{
		Use:   "analyze <audio.wav>",
		Short: "Estimate tempo, beats, onsets and energy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := audio.DecodeWAV(args[0])
			if err != nil {
				return err
			}

			opts := audio.DefaultOptions()
			opts.HopLength = root.cfg.Analysis.HopLength
			opts.FrameLength = root.cfg.Analysis.FrameLength
			if timelinePath != "" {
				tl, err := timeline.LoadFile(timelinePath, timeline.BuildOptions{})
				if err != nil {
					return err
				}
				opts.Segments = tl.Spans()
			}

			est, err := audio.Analyze(buf, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), est.Summary())
			return writeJSON(cmd.OutOrStdout(), out, est)
		},
	}
	cmd.Flags().StringVar(&timelinePath, "timeline", "", "timeline file used for per-segment energy")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the analysis JSON here instead of stdout")
	return cmd
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	var (
		out       string
		preset    string
		fps       int
		width     int
		height    int
		workers   int
		noSubs    bool
		crossfade float64
	)
	cmd := &cobra.Command{
		Use:   "render <audio.wav> <timeline>",
		Short: "Render frames and analysis files for a song",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *root.cfg
			flags := cmd.Flags()
			if flags.Changed("fps") {
				cfg.Render.FPS = fps
			}
			if flags.Changed("width") {
				cfg.Render.Width = width
			}
			if flags.Changed("height") {
				cfg.Render.Height = height
			}
			if flags.Changed("workers") {
				cfg.Render.Workers = workers
			}
			if flags.Changed("crossfade") {
				cfg.Render.CrossfadeSec = crossfade
			}
			if noSubs {
				cfg.Render.Subtitles = false
			}

			progress := mpb.NewWithContext(cmd.Context(), mpb.WithWidth(64), mpb.WithOutput(cmd.ErrOrStderr()))
			var (
				once sync.Once
				bar  *mpb.Bar
			)
			hooks := worker.Hooks{
				Frame: func(done, total int) {
					once.Do(func() {
						bar = progress.AddBar(int64(total),
							mpb.PrependDecorators(
								decor.Name("Rendering: "),
								decor.CountersNoUnit("%d / %d"),
							),
							mpb.AppendDecorators(
								decor.Percentage(),
								decor.EwmaETA(decor.ET_STYLE_GO, 60),
							),
						)
					})
					bar.Increment()
				},
			}

			res, err := worker.RunPipeline(cmd.Context(), &cfg, worker.PipelineInput{
				AudioPath:    args[0],
				TimelinePath: args[1],
				OutputDir:    out,
				StylePreset:  preset,
			}, nil, hooks)
			if bar != nil && err != nil {
				bar.Abort(false)
			}
			progress.Wait()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d frames written to %s (%s)\n",
				res.Frames, filepath.Join(out, worker.FramesDir), res.Estimate.GetBeatInfo())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "out", "output directory")
	cmd.Flags().StringVar(&preset, "preset", "", "palette preset: synthwave, lofi, acoustic, cinematic")
	cmd.Flags().IntVar(&fps, "fps", 24, "frames per second")
	cmd.Flags().IntVar(&width, "width", 1280, "frame width")
	cmd.Flags().IntVar(&height, "height", 720, "frame height")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel frame workers (0 = all CPUs)")
	cmd.Flags().Float64Var(&crossfade, "crossfade", 0.5, "fade-in seconds for each segment after the first")
	cmd.Flags().BoolVar(&noSubs, "no-subtitles", false, "do not draw lyric lines")
	return cmd
}

func newEventsCmd(root *rootOptions) *cobra.Command {
	var beatsPath, out string
	cmd := &cobra.Command{
		Use:   "events <timeline>",
		Short: "List scene, beat and word events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tl, err := timeline.LoadFile(args[0], timeline.BuildOptions{VerifyEmotions: root.cfg.Analysis.VerifyEmotions})
			if err != nil {
				return err
			}
			var beats []float64
			if beatsPath != "" {
				est, err := audio.LoadEstimate(beatsPath)
				if err != nil {
					return err
				}
				beats = est.BeatTimes
			}
			events := timeline.BuildEvents(tl, beats)
			if out != "" {
				return timeline.WriteEvents(out, events)
			}
			return writeJSON(cmd.OutOrStdout(), "", map[string][]timeline.Event{"events": events})
		},
	}
	cmd.Flags().StringVar(&beatsPath, "beats", "", "beat_analysis.json to take beat times from")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write events.json here instead of stdout")
	return cmd
}
