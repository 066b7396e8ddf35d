package classifier

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "i": {}, "if": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "me": {}, "my": {}, "not": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "she": {}, "so": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "they": {}, "this": {}, "to": {}, "was": {},
	"we": {}, "were": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// Tokenize lowercases, splits on non-alphanumerics, drops stopwords, and
// emits unigrams plus bigrams.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; stop || len(w) < 2 {
			continue
		}
		kept = append(kept, w)
	}

	tokens := make([]string, 0, len(kept)*2)
	tokens = append(tokens, kept...)
	for i := 0; i+1 < len(kept); i++ {
		tokens = append(tokens, kept[i]+" "+kept[i+1])
	}
	return tokens
}

// TFIDFVectorizer maps text to a sparse TF-IDF vector over a capped,
// fit-time vocabulary.
type TFIDFVectorizer struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	MaxFeatures int            `json:"max_features"`
}

// NewTFIDFVectorizer returns an unfitted vectorizer.
func NewTFIDFVectorizer(maxFeatures int) *TFIDFVectorizer {
	if maxFeatures <= 0 {
		maxFeatures = 5000
	}
	return &TFIDFVectorizer{MaxFeatures: maxFeatures}
}

// Fit builds the vocabulary (most frequent terms first, capped) and the
// smoothed IDF table.
func (v *TFIDFVectorizer) Fit(docs []string) {
	df := map[string]int{}
	for _, doc := range docs {
		seen := map[string]struct{}{}
		for _, tok := range Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	type termCount struct {
		term  string
		count int
	}
	terms := make([]termCount, 0, len(df))
	for t, c := range df {
		terms = append(terms, termCount{t, c})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		return terms[i].term < terms[j].term
	})
	if len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}

	n := float64(len(docs))
	v.Vocabulary = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, tc := range terms {
		v.Vocabulary[tc.term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(tc.count))) + 1
	}
}

// Transform maps one document to a sparse L2-normalized TF-IDF vector.
func (v *TFIDFVectorizer) Transform(doc string) map[int]float64 {
	counts := map[int]float64{}
	for _, tok := range Tokenize(doc) {
		if idx, ok := v.Vocabulary[tok]; ok {
			counts[idx]++
		}
	}

	var norm float64
	for idx, tf := range counts {
		w := tf * v.IDF[idx]
		counts[idx] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for idx := range counts {
			counts[idx] /= norm
		}
	}
	return counts
}

// Size returns the vector width.
func (v *TFIDFVectorizer) Size() int { return len(v.Vocabulary) }

// OneHotEncoder encodes a categorical feature, folding categories seen
// fewer than MinCount times at fit into a shared "other" slot.
type OneHotEncoder struct {
	Categories map[string]int `json:"categories"`
	MinCount   int            `json:"min_count"`
}

const otherCategory = "__other__"

func NewOneHotEncoder(minCount int) *OneHotEncoder {
	if minCount <= 0 {
		minCount = 2
	}
	return &OneHotEncoder{MinCount: minCount}
}

func (e *OneHotEncoder) Fit(values []string) {
	counts := map[string]int{}
	for _, val := range values {
		counts[strings.ToLower(val)]++
	}

	kept := make([]string, 0, len(counts))
	for val, c := range counts {
		if c >= e.MinCount {
			kept = append(kept, val)
		}
	}
	sort.Strings(kept)

	e.Categories = make(map[string]int, len(kept)+1)
	for i, val := range kept {
		e.Categories[val] = i
	}
	e.Categories[otherCategory] = len(kept)
}

// Index returns the slot for a value; unseen values fold into other.
func (e *OneHotEncoder) Index(value string) int {
	if idx, ok := e.Categories[strings.ToLower(value)]; ok {
		return idx
	}
	return e.Categories[otherCategory]
}

func (e *OneHotEncoder) Size() int { return len(e.Categories) }
