// Package wavio decodes, resamples and writes audio files for the
// classification pipeline. WAV files are decoded natively, everything
// else goes through the normalizing FFmpeg decoder.
package wavio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/stream/common"
	"github.com/RyanBlaney/sonido-sonar/transcode"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// decodeContentType hints the normalizing decoder toward music-tuned
// decode settings for non-WAV corpus files.
const decodeContentType = "music"

// Clip holds decoded mono PCM for a single audio file
type Clip struct {
	Path       string
	PCM        []float64
	SampleRate int
}

// Duration returns the clip length in seconds
func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.PCM)) / float64(c.SampleRate)
}

// ReadFile decodes an audio file into a mono clip. WAV input is read
// directly, other containers are handled by the normalizing decoder.
func ReadFile(path string) (*Clip, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return readWAV(path)
	default:
		return readEncoded(path)
	}
}

// readWAV decodes a PCM WAV file
func readWAV(path string) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file: %s", path)
	}

	var divisor float64
	switch decoder.BitDepth {
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", decoder.BitDepth)
	}

	channels := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)

	buf := &audio.IntBuffer{
		Data:   make([]int, 4096),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}

	var pcm []float64
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to read PCM data: %w", err)
		}
		if n == 0 {
			break
		}
		for _, sample := range buf.Data[:n] {
			pcm = append(pcm, float64(sample)/divisor)
		}
	}

	if channels > 1 {
		pcm = ToMono(pcm, channels)
	}

	return &Clip{Path: path, PCM: pcm, SampleRate: sampleRate}, nil
}

// readEncoded decodes a non-WAV file through the normalizing decoder
func readEncoded(path string) (*Clip, error) {
	cleanPath := strings.TrimPrefix(path, "file://")

	decoder := transcode.NewNormalizingDecoder(decodeContentType)
	decoded, err := decoder.DecodeFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio file: %w", err)
	}
	var anyData any = decoded

	var audioData *common.AudioData
	if commonAudio, ok := anyData.(*common.AudioData); ok {
		audioData = commonAudio
	} else {
		audioData = common.ConvertToAudioData(anyData)
		if audioData == nil {
			return nil, fmt.Errorf("decoder returned unexpected type: %T", anyData)
		}
	}

	pcm := audioData.PCM
	if audioData.Channels > 1 {
		pcm = ToMono(pcm, audioData.Channels)
	}

	return &Clip{Path: path, PCM: pcm, SampleRate: audioData.SampleRate}, nil
}

// WriteFile writes a mono clip as a PCM WAV file
func WriteFile(path string, clip *Clip, bitDepth int) error {
	var scale float64
	switch bitDepth {
	case 16:
		scale = 32767.0
	case 24:
		scale = 8388607.0
	case 32:
		scale = 2147483647.0
	default:
		return fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	enc := wav.NewEncoder(outFile, clip.SampleRate, bitDepth, 1, 1)

	intData := make([]int, len(clip.PCM))
	for i, sample := range clip.PCM {
		v := math.Round(sample * scale)
		if v > scale {
			v = scale
		} else if v < -scale-1 {
			v = -scale - 1
		}
		intData[i] = int(v)
	}

	buf := &audio.IntBuffer{
		Data:   intData,
		Format: &audio.Format{SampleRate: clip.SampleRate, NumChannels: 1},
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write PCM data: %w", err)
	}

	return enc.Close()
}

// ToMono averages interleaved channels down to a single channel
func ToMono(pcm []float64, channels int) []float64 {
	if channels <= 1 {
		return pcm
	}
	mono := make([]float64, 0, len(pcm)/channels)
	for i := 0; i+channels <= len(pcm); i += channels {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += pcm[i+c]
		}
		mono = append(mono, sum/float64(channels))
	}
	return mono
}

// Resample converts a clip to the target sample rate using linear
// interpolation
func Resample(clip *Clip, targetRate int) *Clip {
	if clip.SampleRate == targetRate || clip.SampleRate == 0 {
		return clip
	}

	ratio := float64(targetRate) / float64(clip.SampleRate)
	newLength := int(float64(len(clip.PCM)) * ratio)
	resampled := make([]float64, newLength)

	for i := 0; i < newLength; i++ {
		sourceIndex := float64(i) / ratio
		lowerIndex := int(sourceIndex)
		upperIndex := lowerIndex + 1
		if upperIndex >= len(clip.PCM) {
			upperIndex = len(clip.PCM) - 1
		}
		fraction := sourceIndex - float64(lowerIndex)
		resampled[i] = clip.PCM[lowerIndex]*(1-fraction) + clip.PCM[upperIndex]*fraction
	}

	return &Clip{Path: clip.Path, PCM: resampled, SampleRate: targetRate}
}

// Normalize scales PCM back into [-1, 1] when decoding overshoots
func Normalize(pcm []float64) []float64 {
	var peak float64
	for _, sample := range pcm {
		if abs := math.Abs(sample); abs > peak {
			peak = abs
		}
	}
	if peak <= 1.0 || peak == 0 {
		return pcm
	}
	scaled := make([]float64, len(pcm))
	factor := 0.95 / peak
	for i, sample := range pcm {
		scaled[i] = sample * factor
	}
	return scaled
}

// Trim cuts a clip to the window [startSec, startSec+lengthSec),
// clamped to the available samples
func Trim(clip *Clip, startSec, lengthSec float64) *Clip {
	start := int(startSec * float64(clip.SampleRate))
	end := start + int(lengthSec*float64(clip.SampleRate))

	if start < 0 {
		start = 0
	}
	if start > len(clip.PCM) {
		start = len(clip.PCM)
	}
	if end > len(clip.PCM) {
		end = len(clip.PCM)
	}
	if end < start {
		end = start
	}

	return &Clip{Path: clip.Path, PCM: clip.PCM[start:end], SampleRate: clip.SampleRate}
}
