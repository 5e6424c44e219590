package audio

import (
	"math"
	"sort"
)

const (
	tightness      = 100.0
	maxTrackerBPM  = 320.0
	tempoACSeconds = 8.0
	hpssKernel     = 31
)

// TrackBeats estimates a tempo from the onset envelope, weighted towards
// startBPM, and places beats with dynamic programming. It returns bpm 0 and
// no beats when the envelope carries no onsets.
func TrackBeats(env []float64, sampleRate, hop int, startBPM float64) (float64, []int) {
	if !anyPositive(env) {
		return 0, nil
	}
	fps := float64(sampleRate) / float64(hop)
	bpm := estimateTempoPrior(env, fps, startBPM)
	if bpm <= 0 {
		return 0, nil
	}
	return bpm, trackDP(env, bpm, fps)
}

func anyPositive(x []float64) bool {
	for _, v := range x {
		if v > 0 {
			return true
		}
	}
	return false
}

func autocorrelate(x []float64, maxLag int) []float64 {
	ac := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		sum := 0.0
		for i := 0; i+lag < len(x); i++ {
			sum += x[i] * x[i+lag]
		}
		ac[lag] = sum
	}
	return ac
}

// estimateTempoPrior picks the autocorrelation lag that maximizes
// log1p(1e6*ac) plus a log-normal prior (one octave std) around startBPM.
func estimateTempoPrior(env []float64, fps, startBPM float64) float64 {
	maxLag := int(tempoACSeconds * fps)
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	if maxLag < 1 || startBPM <= 0 {
		return 0
	}
	ac := autocorrelate(env, maxLag)
	if ac[0] <= 0 {
		return 0
	}

	best, bestScore := 0, math.Inf(-1)
	logStart := math.Log2(startBPM)
	for lag := 1; lag <= maxLag; lag++ {
		bpm := 60 * fps / float64(lag)
		if bpm > maxTrackerBPM {
			continue
		}
		v := math.Max(ac[lag]/ac[0], 0)
		d := math.Log2(bpm) - logStart
		score := math.Log1p(1e6*v) - 0.5*d*d
		if score > bestScore {
			best, bestScore = lag, score
		}
	}
	if best == 0 {
		return 0
	}
	return 60 * fps / float64(best)
}

func localScore(env []float64, period float64) []float64 {
	std := stddev(env)
	norm := make([]float64, len(env))
	for i, v := range env {
		if std > 0 {
			norm[i] = v / std
		}
	}
	p := int(period)
	kernel := make([]float64, 2*p+1)
	for k := -p; k <= p; k++ {
		z := float64(k) * 32.0 / period
		kernel[k+p] = math.Exp(-0.5 * z * z)
	}
	return convolveSame(norm, kernel)
}

func stddev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	ss := 0.0
	for _, v := range x {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(x)-1))
}

// convolveSame convolves x with an odd-length kernel, keeping len(x) outputs
// centered on the kernel.
func convolveSame(x, kernel []float64) []float64 {
	out := make([]float64, len(x))
	c := len(kernel) / 2
	for i := range x {
		sum := 0.0
		for k := range kernel {
			j := i + c - k
			if j >= 0 && j < len(x) {
				sum += x[j] * kernel[k]
			}
		}
		out[i] = sum
	}
	return out
}

func trackDP(env []float64, bpm, fps float64) []int {
	period := math.Round(60 * fps / bpm)
	if period < 1 {
		period = 1
	}
	local := localScore(env, period)
	n := len(local)

	lo := -2 * int(period)
	hi := -int(math.Round(period / 2))
	if hi > -1 {
		hi = -1
	}

	_, maxLocal := minMax(local)
	cum := make([]float64, n)
	backlink := make([]int, n)
	firstBeat := true
	for i := 0; i < n; i++ {
		best, bestScore := -1, math.Inf(-1)
		for lag := lo; lag <= hi; lag++ {
			j := i + lag
			if j < 0 {
				continue
			}
			r := math.Log(float64(-lag) / period)
			s := cum[j] - tightness*r*r
			if s > bestScore {
				best, bestScore = j, s
			}
		}
		if best < 0 {
			cum[i] = local[i]
		} else {
			cum[i] = local[i] + bestScore
		}
		if firstBeat && local[i] < 0.01*maxLocal {
			backlink[i] = -1
		} else {
			backlink[i] = best
			firstBeat = false
		}
	}

	beats := []int{lastBeat(cum)}
	for backlink[beats[len(beats)-1]] >= 0 {
		beats = append(beats, backlink[beats[len(beats)-1]])
	}
	for i, j := 0, len(beats)-1; i < j; i, j = i+1, j-1 {
		beats[i], beats[j] = beats[j], beats[i]
	}
	return trimBeats(local, beats)
}

// lastBeat returns the last local maximum of the cumulative score that
// exceeds half the median of all local maxima.
func lastBeat(cum []float64) int {
	n := len(cum)
	isMax := func(i int) bool {
		prev := cum[i]
		if i > 0 {
			prev = cum[i-1]
		}
		next := cum[i]
		if i+1 < n {
			next = cum[i+1]
		}
		return cum[i] > prev && cum[i] >= next
	}

	var maxima []float64
	for i := 0; i < n; i++ {
		if isMax(i) {
			maxima = append(maxima, cum[i])
		}
	}
	if len(maxima) == 0 {
		return n - 1
	}
	threshold := 0.5 * median(maxima)
	for i := n - 1; i >= 0; i-- {
		if isMax(i) && cum[i] > threshold {
			return i
		}
	}
	return n - 1
}

func median(x []float64) float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return 0.5 * (s[m-1] + s[m])
}

// trimBeats drops leading and trailing beats whose local score falls below
// half the RMS of the smoothed beat strengths.
func trimBeats(local []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}
	strengths := make([]float64, len(beats))
	for i, b := range beats {
		strengths[i] = local[b]
	}
	smooth := convolveSame(strengths, []float64{0, 0.5, 1, 0.5, 0})
	ms := 0.0
	for _, v := range smooth {
		ms += v * v
	}
	threshold := 0.5 * math.Sqrt(ms/float64(len(smooth)))

	first, last := -1, -1
	for i, v := range local {
		if v > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil
	}
	kept := make([]int, 0, len(beats))
	for _, b := range beats {
		if b >= first && b <= last {
			kept = append(kept, b)
		}
	}
	return kept
}

// EstimateTempoAutocorr autocorrelates the mean-removed onset envelope and
// returns the BPM of the strongest lag within [bpmMin, bpmMax], or 0.
func EstimateTempoAutocorr(env []float64, sampleRate, hop int, bpmMin, bpmMax float64) float64 {
	if len(env) < 4 {
		return 0
	}
	mean := 0.0
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))
	x := make([]float64, len(env))
	flat := true
	for i, v := range env {
		x[i] = v - mean
		if math.Abs(x[i]) > 1e-8 {
			flat = false
		}
	}
	if flat {
		return 0
	}

	hopSec := float64(hop) / float64(sampleRate)
	maxLag := int(math.Ceil(60 / (bpmMin * hopSec)))
	minLag := int(math.Floor(60 / (bpmMax * hopSec)))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag > len(x)-1 {
		maxLag = len(x) - 1
	}
	if maxLag <= minLag {
		return 0
	}

	ac := autocorrelate(x, maxLag)
	best := minLag
	for lag := minLag + 1; lag <= maxLag; lag++ {
		if ac[lag] > ac[best] {
			best = lag
		}
	}
	bpm := 60 / (float64(best) * hopSec)
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm < bpmMin || bpm > bpmMax {
		return 0
	}
	return bpm
}

// SynthesizeBeatGrid lays an evenly spaced grid at bpm over the onset
// envelope, choosing the phase whose samples carry the most onset energy.
// Times are clipped to [0, duration].
func SynthesizeBeatGrid(env []float64, bpm float64, sampleRate, hop int, duration float64) []float64 {
	if bpm <= 0 || len(env) == 0 {
		return nil
	}
	hopSec := float64(hop) / float64(sampleRate)
	step := int(math.Round(60 / bpm / hopSec))
	if step < 1 {
		step = 1
	}

	bestShift, bestScore := 0, -1.0
	for shift := 0; shift < step && shift < len(env); shift++ {
		score := 0.0
		for i := shift; i < len(env); i += step {
			score += env[i]
		}
		if score > bestScore {
			bestShift, bestScore = shift, score
		}
	}

	var times []float64
	for i := bestShift; i < len(env); i += step {
		t := float64(i) * hopSec
		if t >= 0 && t <= duration {
			times = append(times, t)
		}
	}
	return times
}

// PercussiveSpectrogram separates the percussive part of a magnitude
// spectrogram with median filters across time (harmonic) and frequency
// (percussive) and a soft mask P²/(H²+P²).
func PercussiveSpectrogram(spec [][]float64) [][]float64 {
	frames := len(spec)
	if frames == 0 {
		return nil
	}
	bins := len(spec[0])
	half := hpssKernel / 2
	window := make([]float64, hpssKernel)

	out := make([][]float64, frames)
	for t := 0; t < frames; t++ {
		out[t] = make([]float64, bins)
		for b := 0; b < bins; b++ {
			for k := -half; k <= half; k++ {
				window[k+half] = spec[reflectIndex(t+k, frames)][b]
			}
			h := median(window)
			for k := -half; k <= half; k++ {
				window[k+half] = spec[t][reflectIndex(b+k, bins)]
			}
			p := median(window)

			den := h*h + p*p
			if den < 1e-20 {
				continue
			}
			out[t][b] = spec[t][b] * (p * p / den)
		}
	}
	return out
}

// reflectIndex mirrors k into [0,n) repeating the edge sample (d c b a | a b c d).
func reflectIndex(k, n int) int {
	if n == 1 {
		return 0
	}
	for k < 0 || k >= n {
		if k < 0 {
			k = -k - 1
		}
		if k >= n {
			k = 2*n - k - 1
		}
	}
	return k
}
