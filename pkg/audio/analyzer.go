package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// Tier names the cascade stage that produced the final tempo and beats.
type Tier string

const (
	TierPrimary    Tier = "primary"
	TierPercussive Tier = "percussive"
	TierAutocorr   Tier = "autocorrelation"
	TierGrid       Tier = "beat_grid"
	TierNone       Tier = "none"
)

// Valid tempo windows. The tracker result must land in the narrow one; the
// autocorrelation fallback and the final estimate use the wide one.
const (
	ValidMinBPM    = 60.0
	ValidMaxBPM    = 180.0
	FallbackMinBPM = 50.0
	FallbackMaxBPM = 200.0
)

// TempoEstimate contains the results of audio analysis
type TempoEstimate struct {
	BPM              float64   `json:"bpm"`
	BeatTimes        []float64 `json:"beat_times"`
	OnsetTimes       []float64 `json:"onset_times"`
	EnergyCurve      []float64 `json:"energy_curve"`
	EnergyCurveTimes []float64 `json:"energy_curve_times"`
	PerSegmentEnergy []float64 `json:"per_segment_energy"`
	DurationSec      float64   `json:"duration_sec"`
	SampleRate       int       `json:"sample_rate"`
	TempoValid       bool      `json:"tempo_valid"`
	BeatsCoverClip   bool      `json:"beats_cover_clip"`
	Tier             Tier      `json:"tier"`
}

// Span is a half-open time range [Start, End) in seconds.
type Span struct {
	Start float64
	End   float64
}

// Options configures Analyze
type Options struct {
	HopLength   int
	FrameLength int
	StartBPM    float64
	// Segments, when set, produces PerSegmentEnergy.
	Segments []Span
	Logger   logrus.FieldLogger
}

// DefaultOptions returns the analysis defaults
func DefaultOptions() *Options {
	return &Options{
		HopLength:   512,
		FrameLength: 1024,
		StartBPM:    90,
	}
}

type tierResult struct {
	tier  Tier
	bpm   float64
	beats []float64
}

type analysis struct {
	buf      AudioBuffer
	opts     Options
	log      logrus.FieldLogger
	spec     [][]float64
	onset    []float64
	duration float64
}

// Analyze estimates tempo, beats, onsets and energy from a decoded buffer.
// It only fails on an empty buffer or invalid sample rate. Estimation
// problems fall through the tier cascade and are reported through
// TempoValid, BeatsCoverClip and Tier.
func Analyze(buf AudioBuffer, opts *Options) (*TempoEstimate, error) {
	if len(buf.Samples) == 0 || buf.SampleRate <= 0 {
		return nil, ErrEmptyBuffer
	}
	o := DefaultOptions()
	if opts != nil {
		o = withDefaults(*opts)
	}
	log := o.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	a := &analysis{buf: buf, opts: *o, log: log, duration: buf.Duration()}
	a.spec = Spectrogram(buf.Samples, NFFT, o.HopLength)
	a.onset = OnsetStrength(a.spec, NFFT, o.HopLength)

	res := a.cascade()
	bpm := res.bpm
	if !(bpm >= FallbackMinBPM && bpm <= FallbackMaxBPM) {
		bpm = 0
	}
	beats := clipBeats(res.beats, a.duration)

	rms := RMS(buf.Samples, o.FrameLength, o.HopLength)
	times := FrameTimes(len(rms), o.HopLength, o.FrameLength/2, buf.SampleRate)

	est := &TempoEstimate{
		BPM:              bpm,
		BeatTimes:        beats,
		OnsetTimes:       DetectOnsets(a.onset, buf.SampleRate, o.HopLength),
		EnergyCurve:      NormalizeMinMax(rms),
		EnergyCurveTimes: times,
		PerSegmentEnergy: []float64{},
		DurationSec:      a.duration,
		SampleRate:       buf.SampleRate,
		Tier:             res.tier,
	}
	if len(o.Segments) > 0 {
		est.PerSegmentEnergy = PerSegmentEnergy(rms, times, o.Segments)
	}

	est.TempoValid = est.BPM >= ValidMinBPM && est.BPM <= ValidMaxBPM
	est.BeatsCoverClip = beatsCover(est.BeatTimes, est.DurationSec)
	est.Sanitize()

	log.WithFields(logrus.Fields{
		"tier":  est.Tier,
		"bpm":   est.BPM,
		"beats": len(est.BeatTimes),
	}).Debug("tempo estimated")

	return est, nil
}

func withDefaults(o Options) *Options {
	d := DefaultOptions()
	if o.HopLength <= 0 {
		o.HopLength = d.HopLength
	}
	if o.FrameLength <= 0 {
		o.FrameLength = d.FrameLength
	}
	if o.StartBPM <= 0 {
		o.StartBPM = d.StartBPM
	}
	return &o
}

func inRange(v, lo, hi float64) bool { return v >= lo && v <= hi }

// cascade runs the tempo tiers in order and returns the first usable result.
// A result whose bpm is outside the fallback window is reported as TierNone.
func (a *analysis) cascade() tierResult {
	primary := a.track(a.onset, a.opts.StartBPM, TierPrimary)
	if inRange(primary.bpm, ValidMinBPM, ValidMaxBPM) {
		return primary
	}
	a.log.WithField("bpm", primary.bpm).Debug("primary tempo out of range, trying percussive separation")

	perc := a.track(OnsetStrength(PercussiveSpectrogram(a.spec), NFFT, a.opts.HopLength), a.opts.StartBPM, TierPercussive)
	if inRange(perc.bpm, ValidMinBPM, ValidMaxBPM) && len(perc.beats) > 0 {
		return perc
	}

	res := primary
	acBPM := EstimateTempoAutocorr(a.onset, a.buf.SampleRate, a.opts.HopLength, FallbackMinBPM, FallbackMaxBPM)
	if acBPM > 0 {
		a.log.WithField("bpm", acBPM).Debug("tempo recovered from onset autocorrelation")
		res = tierResult{tier: TierAutocorr, bpm: acBPM, beats: primary.beats}
		retrack := a.track(a.onset, math.Round(acBPM), TierAutocorr)
		if len(retrack.beats) > 0 {
			res.beats = retrack.beats
		}
	}

	if len(res.beats) == 0 && inRange(res.bpm, FallbackMinBPM, FallbackMaxBPM) {
		grid := SynthesizeBeatGrid(a.onset, res.bpm, a.buf.SampleRate, a.opts.HopLength, a.duration)
		if len(grid) > 0 {
			res = tierResult{tier: TierGrid, bpm: res.bpm, beats: grid}
		}
	}

	if !inRange(res.bpm, FallbackMinBPM, FallbackMaxBPM) {
		res.tier = TierNone
	}
	return res
}

// trackBeats is the beat tracker used by every cascade tier.
var trackBeats = TrackBeats

func (a *analysis) track(env []float64, startBPM float64, tier Tier) tierResult {
	bpm, frames := trackBeats(env, a.buf.SampleRate, a.opts.HopLength, startBPM)
	beats := make([]float64, len(frames))
	for i, f := range frames {
		beats[i] = float64(f*a.opts.HopLength) / float64(a.buf.SampleRate)
	}
	return tierResult{tier: tier, bpm: bpm, beats: beats}
}

func clipBeats(beats []float64, duration float64) []float64 {
	out := make([]float64, 0, len(beats))
	for _, b := range beats {
		if b >= 0 && b <= duration {
			out = append(out, b)
		}
	}
	sort.Float64s(out)
	return out
}

func beatsCover(beats []float64, duration float64) bool {
	if len(beats) == 0 {
		return false
	}
	return beats[0] <= 0.5 && beats[len(beats)-1] >= math.Max(0.9*duration, duration-0.5)
}

// PerSegmentEnergy averages the RMS samples stamped inside each span and
// min-max normalizes the result across spans. Spans with no samples get 0.
func PerSegmentEnergy(rms, times []float64, spans []Span) []float64 {
	avg := make([]float64, len(spans))
	for s, span := range spans {
		sum, n := 0.0, 0
		for i, t := range times {
			if i >= len(rms) {
				break
			}
			if t >= span.Start && t < span.End {
				sum += finiteOr0(rms[i])
				n++
			}
		}
		if n > 0 {
			avg[s] = sum / float64(n)
		}
	}
	return NormalizeMinMax(avg)
}

// Sanitize replaces every non-finite float with 0.
func (e *TempoEstimate) Sanitize() {
	e.BPM = finiteOr0(e.BPM)
	e.DurationSec = finiteOr0(e.DurationSec)
	for _, s := range [][]float64{e.BeatTimes, e.OnsetTimes, e.EnergyCurve, e.EnergyCurveTimes, e.PerSegmentEnergy} {
		for i := range s {
			s[i] = finiteOr0(s[i])
		}
	}
}

// GetBeatInfo returns formatted beat information
func (e *TempoEstimate) GetBeatInfo() string {
	return fmt.Sprintf("BPM: %.1f, Tier: %s, Beats: %d over %.1fs",
		e.BPM, e.Tier, len(e.BeatTimes), e.DurationSec)
}

// Summary returns a human-readable summary of the analysis
func (e *TempoEstimate) Summary() string {
	return fmt.Sprintf(
		"Duration: %.1fs | BPM: %.1f (%s) | Beats: %d | Onsets: %d | Tempo valid: %t | Beats cover clip: %t",
		e.DurationSec, e.BPM, e.Tier, len(e.BeatTimes), len(e.OnsetTimes), e.TempoValid, e.BeatsCoverClip,
	)
}

// WriteJSON writes the estimate as indented JSON, creating parent directories.
func (e *TempoEstimate) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tempo estimate: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tempo estimate: %w", err)
	}
	return nil
}

// LoadEstimate reads an estimate previously written by WriteJSON.
func LoadEstimate(path string) (*TempoEstimate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tempo estimate: %w", err)
	}
	var est TempoEstimate
	if err := json.Unmarshal(data, &est); err != nil {
		return nil, fmt.Errorf("failed to parse tempo estimate: %w", err)
	}
	return &est, nil
}
