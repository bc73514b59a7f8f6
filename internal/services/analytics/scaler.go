package analytics

import "RiskPulse/internal/services/features"

// Scaler standardizes predictor columns with parameters fitted once on the
// training set. Columns with zero spread keep a unit scale.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes column means and population standard deviations.
func FitScaler(x [][]float64) Scaler {
	if len(x) == 0 {
		return Scaler{}
	}
	width := len(x[0])
	s := Scaler{Mean: make([]float64, width), Scale: make([]float64, width)}
	col := make([]float64, len(x))
	for j := 0; j < width; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := features.MeanStd(col)
		if negligibleStd(mean, std) {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
	return s
}

// Transform returns a standardized copy of v.
func (s Scaler) Transform(v []float64) []float64 {
	out := make([]float64, len(v))
	for j := range v {
		if j >= len(s.Mean) {
			out[j] = v[j]
			continue
		}
		out[j] = (v[j] - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// TransformAll standardizes every row of x.
func (s Scaler) TransformAll(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.Transform(row)
	}
	return out
}
