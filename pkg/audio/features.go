package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// NFFT is the STFT size used for onset strength and source separation.
const NFFT = 2048

// RMS returns the root-mean-square amplitude of centered, zero-padded frames.
// There are 1 + len(samples)/hop frames.
func RMS(samples []float64, frameLength, hop int) []float64 {
	if len(samples) == 0 || frameLength <= 0 || hop <= 0 {
		return nil
	}
	n := 1 + len(samples)/hop
	half := frameLength / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i*hop - half
		sum := 0.0
		for j := 0; j < frameLength; j++ {
			k := start + j
			if k >= 0 && k < len(samples) {
				sum += samples[k] * samples[k]
			}
		}
		out[i] = math.Sqrt(sum / float64(frameLength))
	}
	return out
}

// FrameTimes converts frame indices to seconds. offset is added in samples
// before dividing, so RMS frames can be stamped at their window center.
func FrameTimes(n, hop, offset, sampleRate int) []float64 {
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i*hop+offset) / float64(sampleRate)
	}
	return times
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// Spectrogram returns STFT magnitudes of centered Hann-windowed frames, one
// row of nFFT/2+1 bins per frame.
func Spectrogram(samples []float64, nFFT, hop int) [][]float64 {
	if len(samples) == 0 || nFFT <= 0 || hop <= 0 {
		return nil
	}
	win := hannWindow(nFFT)
	fft := fourier.NewFFT(nFFT)
	frames := 1 + len(samples)/hop
	half := nFFT / 2

	buf := make([]float64, nFFT)
	var coeffs []complex128
	out := make([][]float64, frames)
	for t := 0; t < frames; t++ {
		start := t*hop - half
		for j := 0; j < nFFT; j++ {
			k := start + j
			if k >= 0 && k < len(samples) {
				buf[j] = samples[k] * win[j]
			} else {
				buf[j] = 0
			}
		}
		coeffs = fft.Coefficients(coeffs, buf)
		row := make([]float64, len(coeffs))
		for b, c := range coeffs {
			row[b] = cmplx.Abs(c)
		}
		out[t] = row
	}
	return out
}

// OnsetStrength computes half-wave rectified spectral flux of the
// log-power spectrogram, averaged over bins. The envelope is shifted right
// so each value lines up with the frame where the increase happens.
func OnsetStrength(spec [][]float64, nFFT, hop int) []float64 {
	frames := len(spec)
	if frames == 0 {
		return nil
	}

	db := make([][]float64, frames)
	maxDB := math.Inf(-1)
	for t, row := range spec {
		db[t] = make([]float64, len(row))
		for b, m := range row {
			v := 10 * math.Log10(math.Max(m*m, 1e-10))
			db[t][b] = v
			if v > maxDB {
				maxDB = v
			}
		}
	}
	floor := maxDB - 80

	env := make([]float64, frames)
	pad := 1 + nFFT/(2*hop)
	for t := 1; t < frames; t++ {
		bins := len(db[t])
		if bins == 0 {
			continue
		}
		flux := 0.0
		for b := 0; b < bins; b++ {
			d := math.Max(db[t][b], floor) - math.Max(db[t-1][b], floor)
			if d > 0 {
				flux += d
			}
		}
		idx := t - 1 + pad
		if idx < frames {
			env[idx] = flux / float64(bins)
		}
	}
	return env
}

// OnsetEnvelope is Spectrogram followed by OnsetStrength.
func OnsetEnvelope(samples []float64, hop int) []float64 {
	return OnsetStrength(Spectrogram(samples, NFFT, hop), NFFT, hop)
}

// PeakPick returns indices n where x[n] is the maximum of
// x[n-preMax : n+postMax], at least delta above the mean of
// x[n-preAvg : n+postAvg], and more than wait frames after the previous pick.
func PeakPick(x []float64, preMax, postMax, preAvg, postAvg int, delta float64, wait int) []int {
	var peaks []int
	last := math.MinInt / 2
	for n := range x {
		lo, hi := clampRange(n-preMax, n+postMax, len(x))
		isMax := true
		for k := lo; k < hi; k++ {
			if x[k] > x[n] {
				isMax = false
				break
			}
		}
		if !isMax {
			continue
		}

		lo, hi = clampRange(n-preAvg, n+postAvg, len(x))
		mean := 0.0
		for k := lo; k < hi; k++ {
			mean += x[k]
		}
		if hi > lo {
			mean /= float64(hi - lo)
		}
		if x[n] < mean+delta {
			continue
		}
		if n > last+wait {
			peaks = append(peaks, n)
			last = n
		}
	}
	return peaks
}

func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

// DetectOnsets normalizes the onset envelope and peak-picks it, returning
// onset times in seconds.
func DetectOnsets(env []float64, sampleRate, hop int) []float64 {
	if len(env) == 0 {
		return []float64{}
	}
	mn, mx := minMax(env)
	norm := make([]float64, len(env))
	scale := mx - mn
	if scale < 1e-12 {
		return []float64{}
	}
	for i, v := range env {
		norm[i] = (v - mn) / scale
	}

	fps := float64(sampleRate) / float64(hop)
	preMax := int(0.03 * fps)
	postMax := 1
	preAvg := int(0.10 * fps)
	postAvg := int(0.10*fps) + 1
	wait := int(0.03 * fps)

	frames := PeakPick(norm, preMax, postMax, preAvg, postAvg, 0.07, wait)
	times := make([]float64, len(frames))
	for i, f := range frames {
		times[i] = float64(f*hop) / float64(sampleRate)
	}
	return times
}

// NormalizeMinMax scales x into [0,1]. Non-finite values count as zero and a
// constant input yields all zeros.
func NormalizeMinMax(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	clean := make([]float64, len(x))
	for i, v := range x {
		clean[i] = finiteOr0(v)
	}
	mn, mx := minMax(clean)
	if isClose(mn, mx) {
		return out
	}
	for i, v := range clean {
		out[i] = (v - mn) / (mx - mn)
	}
	return out
}

func minMax(x []float64) (float64, float64) {
	mn, mx := math.Inf(1), math.Inf(-1)
	for _, v := range x {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}

func isClose(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

func finiteOr0(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
