// Package audio provides capture, resampling and wire encoding of audio
// blocks for streaming transcription.
package audio

import "math"

// TargetSampleRate is the sample rate the transcription server expects.
const TargetSampleRate = 16000

// Block is one capture callback's worth of mono samples in [-1.0, 1.0],
// tagged with the rate they were captured at.
type Block struct {
	Samples    []float32
	SampleRate int
}

// Resample converts samples from srcRate to dstRate using linear
// interpolation. The output length is round(len(in) * dstRate / srcRate),
// and the first and last input samples are copied through exactly.
func Resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	outLen := int(math.Round(float64(len(in)) * float64(dstRate) / float64(srcRate)))
	out := make([]float32, outLen)
	if outLen == 0 {
		return out
	}
	out[0] = in[0]
	if outLen == 1 {
		return out
	}

	step := float64(len(in)-1) / float64(outLen-1)
	for i := 1; i < outLen-1; i++ {
		pos := float64(i) * step
		j := int(pos)
		if j+1 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	out[outLen-1] = in[len(in)-1]
	return out
}

// ResampleBlock resamples a block to TargetSampleRate.
func ResampleBlock(b Block) []float32 {
	return Resample(b.Samples, b.SampleRate, TargetSampleRate)
}
