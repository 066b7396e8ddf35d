package classifier

import (
	"errors"
)

// Pipeline composes the fitted transformers and model. Feature layout is
// [text tfidf | purpose one-hot | sender-domain one-hot | urgency/5].
type Pipeline struct {
	Text    *TFIDFVectorizer `json:"text"`
	Purpose *OneHotEncoder   `json:"purpose"`
	Domain  *OneHotEncoder   `json:"domain"`
	Model   *SoftmaxModel    `json:"model"`
	Version string           `json:"version"`
}

// Fit trains every stage on the given rows. The encoder must already be
// fitted on labels.
func Fit(rows []Features, labels []string, enc *LabelEncoder, version string) (*Pipeline, error) {
	if len(rows) == 0 || len(rows) != len(labels) {
		return nil, errors.New("classifier: empty or mismatched training set")
	}

	p := &Pipeline{
		Text:    NewTFIDFVectorizer(5000),
		Purpose: NewOneHotEncoder(2),
		Domain:  NewOneHotEncoder(2),
		Version: version,
	}

	texts := make([]string, len(rows))
	purposes := make([]string, len(rows))
	domains := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.Text
		purposes[i] = r.LLMPurpose
		domains[i] = r.SenderDomain
	}
	p.Text.Fit(texts)
	p.Purpose.Fit(purposes)
	p.Domain.Fit(domains)

	X := make([]map[int]float64, len(rows))
	y := make([]int, len(rows))
	for i, r := range rows {
		X[i] = p.vectorize(r)
		idx := enc.Index(labels[i])
		if idx < 0 {
			return nil, errors.New("classifier: label missing from encoder: " + labels[i])
		}
		y[i] = idx
	}

	p.Model = &SoftmaxModel{}
	if err := p.Model.Fit(X, y, p.width(), len(enc.Classes), FitConfig{}); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) width() int {
	return p.Text.Size() + p.Purpose.Size() + p.Domain.Size() + 1
}

func (p *Pipeline) vectorize(f Features) map[int]float64 {
	row := p.Text.Transform(f.Text)

	base := p.Text.Size()
	row[base+p.Purpose.Index(f.LLMPurpose)] = 1
	base += p.Purpose.Size()
	row[base+p.Domain.Index(f.SenderDomain)] = 1
	base += p.Domain.Size()
	row[base] = f.LLMUrgency / 5.0
	return row
}

// Predict returns the winning class index and its softmax probability.
func (p *Pipeline) Predict(f Features) (int, float64) {
	probs := p.Model.PredictProba(p.vectorize(f))
	best, bestProb := 0, 0.0
	for i, pr := range probs {
		if pr > bestProb {
			best, bestProb = i, pr
		}
	}
	return best, bestProb
}
