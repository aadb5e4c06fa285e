package filters

import (
	"math"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
)

// CompressorParams configures a feed-forward peak compressor. Times are in
// seconds, levels in dBFS.
type CompressorParams struct {
	ThresholdDB float64 `json:"threshold_db"`
	Ratio       float64 `json:"ratio"`
	Attack      float64 `json:"attack"`
	Release     float64 `json:"release"`
}

// DefaultCompressorParams is gentle bus compression for a backing track
func DefaultCompressorParams() CompressorParams {
	return CompressorParams{
		ThresholdDB: -24,
		Ratio:       4,
		Attack:      0.003,
		Release:     0.25,
	}
}

// Compressor reduces gain above the threshold by 1 - 1/ratio. The level
// detector is a one-pole follower on |x| with separate attack and release.
type Compressor struct {
	params      CompressorParams
	attackCoef  float64
	releaseCoef float64
	envelope    float64
}

// NewCompressor creates a compressor for audio at sampleRate
func NewCompressor(sampleRate int, params CompressorParams) *Compressor {
	if params.Ratio < 1 {
		params.Ratio = 1
	}
	return &Compressor{
		params:      params,
		attackCoef:  timeCoefficient(params.Attack, sampleRate),
		releaseCoef: timeCoefficient(params.Release, sampleRate),
	}
}

// timeCoefficient is the per-sample smoothing factor reaching 1-1/e after seconds
func timeCoefficient(seconds float64, sampleRate int) float64 {
	if seconds <= 0 || sampleRate <= 0 {
		return 0
	}
	return math.Exp(-1 / (seconds * float64(sampleRate)))
}

// ProcessInPlace compresses buf, carrying detector state across calls
func (c *Compressor) ProcessInPlace(buf []float64) {
	slope := 1 - 1/c.params.Ratio
	for i, x := range buf {
		level := math.Abs(x)
		coef := c.releaseCoef
		if level > c.envelope {
			coef = c.attackCoef
		}
		c.envelope = coef*c.envelope + (1-coef)*level

		levelDB := common.GainToDB(c.envelope)
		if levelDB > c.params.ThresholdDB {
			buf[i] = x * common.DBToGain((c.params.ThresholdDB-levelDB)*slope)
		}
	}
}

// GainReductionDB is the reduction currently applied, <= 0
func (c *Compressor) GainReductionDB() float64 {
	levelDB := common.GainToDB(c.envelope)
	if levelDB <= c.params.ThresholdDB {
		return 0
	}
	return (c.params.ThresholdDB - levelDB) * (1 - 1/c.params.Ratio)
}

// SetThreshold changes the threshold in dBFS
func (c *Compressor) SetThreshold(db float64) {
	c.params.ThresholdDB = db
}

// SetRatio changes the ratio; values below 1 are treated as 1
func (c *Compressor) SetRatio(ratio float64) {
	c.params.Ratio = max(ratio, 1)
}

// Params returns the current settings
func (c *Compressor) Params() CompressorParams {
	return c.params
}

// Reset clears the detector
func (c *Compressor) Reset() {
	c.envelope = 0
}
