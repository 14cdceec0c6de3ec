// Package mfcc computes mel-frequency cepstral coefficient features
// from mono PCM windows.
package mfcc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	frameLength = 0.025
	frameStep   = 0.01
	preEmphasis = 0.97
	cepLifter   = 22.0

	// epsilon floors zero power bins before the log step
	epsilon = 2.220446049250313e-16
)

// Extractor computes MFCC feature matrices with a fixed filterbank
// and FFT configuration
type Extractor struct {
	NumCep     int
	NumFilters int
	FFTSize    int
}

// NewExtractor creates an extractor for the given cepstrum size,
// filter count and FFT size
func NewExtractor(numCep, numFilters, fftSize int) *Extractor {
	return &Extractor{
		NumCep:     numCep,
		NumFilters: numFilters,
		FFTSize:    fftSize,
	}
}

// Transform computes MFCC features for a PCM window and returns them
// transposed: one row per coefficient, one column per frame. The first
// coefficient of each frame carries the log of the total frame energy.
func (e *Extractor) Transform(pcm []float64, sampleRate int) ([][]float64, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("empty PCM window")
	}
	if e.NumCep > e.NumFilters {
		return nil, fmt.Errorf("numcep %d exceeds filter count %d", e.NumCep, e.NumFilters)
	}

	frameLen := int(math.Round(frameLength * float64(sampleRate)))
	step := int(math.Round(frameStep * float64(sampleRate)))
	if frameLen > e.FFTSize {
		return nil, fmt.Errorf("frame length %d exceeds FFT size %d", frameLen, e.FFTSize)
	}

	emphasized := emphasize(pcm)

	numFrames := 1
	if len(emphasized) > frameLen {
		numFrames = 1 + int(math.Ceil(float64(len(emphasized)-frameLen)/float64(step)))
	}

	fft := fourier.NewFFT(e.FFTSize)
	fbank := e.filterbank(sampleRate)
	numBins := e.FFTSize/2 + 1

	buf := make([]float64, e.FFTSize)
	feat := make([][]float64, numFrames)
	energies := make([]float64, numFrames)

	for f := 0; f < numFrames; f++ {
		start := f * step
		for k := 0; k < e.FFTSize; k++ {
			if k < frameLen && start+k < len(emphasized) {
				buf[k] = emphasized[start+k]
			} else {
				buf[k] = 0
			}
		}

		spectrum := fft.Coefficients(nil, buf)
		power := make([]float64, numBins)
		var energy float64
		for i := 0; i < numBins; i++ {
			re := real(spectrum[i])
			im := imag(spectrum[i])
			power[i] = (re*re + im*im) / float64(e.FFTSize)
			energy += power[i]
		}
		if energy == 0 {
			energy = epsilon
		}
		energies[f] = energy

		// Mel filterbank energies, floored before the log
		banks := make([]float64, e.NumFilters)
		for j := 0; j < e.NumFilters; j++ {
			var sum float64
			for i := 0; i < numBins; i++ {
				sum += power[i] * fbank[j][i]
			}
			if sum == 0 {
				sum = epsilon
			}
			banks[j] = math.Log(sum)
		}

		feat[f] = dctOrtho(banks, e.NumCep)
	}

	lifter(feat)
	for f := range feat {
		feat[f][0] = math.Log(energies[f])
	}

	// Transpose to coefficient-major orientation
	out := make([][]float64, e.NumCep)
	for c := 0; c < e.NumCep; c++ {
		out[c] = make([]float64, numFrames)
		for f := 0; f < numFrames; f++ {
			out[c][f] = feat[f][c]
		}
	}
	return out, nil
}

// FrameCount returns the number of analysis frames Transform will
// produce for a window of n samples
func (e *Extractor) FrameCount(n, sampleRate int) int {
	frameLen := int(math.Round(frameLength * float64(sampleRate)))
	step := int(math.Round(frameStep * float64(sampleRate)))
	if n <= frameLen {
		return 1
	}
	return 1 + int(math.Ceil(float64(n-frameLen)/float64(step)))
}

// emphasize applies a first order pre-emphasis filter
func emphasize(pcm []float64) []float64 {
	out := make([]float64, len(pcm))
	out[0] = pcm[0]
	for i := 1; i < len(pcm); i++ {
		out[i] = pcm[i] - preEmphasis*pcm[i-1]
	}
	return out
}

// filterbank builds triangular mel-spaced filters over the FFT bins
func (e *Extractor) filterbank(sampleRate int) [][]float64 {
	numBins := e.FFTSize/2 + 1
	lowMel := hzToMel(0)
	highMel := hzToMel(float64(sampleRate) / 2)

	bins := make([]int, e.NumFilters+2)
	for i := range bins {
		mel := lowMel + (highMel-lowMel)*float64(i)/float64(e.NumFilters+1)
		bins[i] = int(math.Floor(float64(e.FFTSize+1) * melToHz(mel) / float64(sampleRate)))
	}

	fbank := make([][]float64, e.NumFilters)
	for j := 0; j < e.NumFilters; j++ {
		fbank[j] = make([]float64, numBins)
		for i := bins[j]; i < bins[j+1]; i++ {
			fbank[j][i] = float64(i-bins[j]) / float64(bins[j+1]-bins[j])
		}
		for i := bins[j+1]; i < bins[j+2]; i++ {
			fbank[j][i] = float64(bins[j+2]-i) / float64(bins[j+2]-bins[j+1])
		}
	}
	return fbank
}

// dctOrtho computes an orthonormal type-II DCT and keeps numCep terms
func dctOrtho(x []float64, numCep int) []float64 {
	n := len(x)
	out := make([]float64, numCep)
	for k := 0; k < numCep; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x[i] * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		scale := math.Sqrt(2 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		out[k] = sum * scale
	}
	return out
}

// lifter applies sinusoidal liftering to de-emphasize higher
// coefficients
func lifter(feat [][]float64) {
	for f := range feat {
		for c := range feat[f] {
			feat[f][c] *= 1 + (cepLifter/2)*math.Sin(math.Pi*float64(c)/cepLifter)
		}
	}
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}
