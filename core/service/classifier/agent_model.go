package classifier

import (
	"errors"
	"math"
)

// LabelEncoder maps priority labels to class indices, matching the order
// of the model's output rows.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

func (e *LabelEncoder) Fit(labels []string) {
	seen := map[string]struct{}{}
	e.Classes = e.Classes[:0]
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		e.Classes = append(e.Classes, l)
	}
}

func (e *LabelEncoder) Index(label string) int {
	for i, c := range e.Classes {
		if c == label {
			return i
		}
	}
	return -1
}

func (e *LabelEncoder) Label(index int) string {
	if index < 0 || index >= len(e.Classes) {
		return ""
	}
	return e.Classes[index]
}

// SoftmaxModel is a multinomial logistic regression over sparse rows,
// trained with averaged gradient descent and inverse-frequency class
// weights.
type SoftmaxModel struct {
	Weights     [][]float64 `json:"weights"` // [class][feature]
	Bias        []float64   `json:"bias"`
	NumFeatures int         `json:"num_features"`
	NumClasses  int         `json:"num_classes"`
}

// FitConfig tunes training. Zero values pick defaults.
type FitConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// Fit trains on sparse rows X with class indices y. Class weights balance
// skewed label distributions.
func (m *SoftmaxModel) Fit(X []map[int]float64, y []int, numFeatures, numClasses int, cfg FitConfig) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("classifier: empty or mismatched training set")
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 60
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.5
	}
	if cfg.L2 <= 0 {
		cfg.L2 = 1e-4
	}

	m.NumFeatures = numFeatures
	m.NumClasses = numClasses
	m.Weights = make([][]float64, numClasses)
	for c := range m.Weights {
		m.Weights[c] = make([]float64, numFeatures)
	}
	m.Bias = make([]float64, numClasses)

	// inverse-frequency class weights: n / (k * count_c)
	counts := make([]float64, numClasses)
	for _, cls := range y {
		counts[cls]++
	}
	classWeight := make([]float64, numClasses)
	n := float64(len(y))
	for c := range classWeight {
		if counts[c] > 0 {
			classWeight[c] = n / (float64(numClasses) * counts[c])
		}
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		lr := cfg.LearningRate / (1 + 0.05*float64(epoch))
		for i, row := range X {
			probs := m.predictRow(row)
			w := classWeight[y[i]]
			for c := 0; c < numClasses; c++ {
				target := 0.0
				if c == y[i] {
					target = 1.0
				}
				grad := (probs[c] - target) * w
				m.Bias[c] -= lr * grad
				for idx, val := range row {
					m.Weights[c][idx] -= lr * (grad*val + cfg.L2*m.Weights[c][idx])
				}
			}
		}
	}
	return nil
}

func (m *SoftmaxModel) predictRow(row map[int]float64) []float64 {
	logits := make([]float64, m.NumClasses)
	for c := 0; c < m.NumClasses; c++ {
		z := m.Bias[c]
		for idx, val := range row {
			if idx < m.NumFeatures {
				z += m.Weights[c][idx] * val
			}
		}
		logits[c] = z
	}
	return softmax(logits)
}

// PredictProba returns the class probability vector for one sparse row.
func (m *SoftmaxModel) PredictProba(row map[int]float64) []float64 {
	return m.predictRow(row)
}

func softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, z := range logits {
		if z > maxLogit {
			maxLogit = z
		}
	}
	var sum float64
	out := make([]float64, len(logits))
	for i, z := range logits {
		out[i] = math.Exp(z - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
