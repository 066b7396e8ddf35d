package classifier

import (
	"math"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			"stopwords and short words dropped",
			"the meeting is at 5 o clock",
			[]string{"meeting", "clock", "meeting clock"},
		},
		{
			"lowercased and split on punctuation",
			"URGENT: invoice#123",
			[]string{"urgent", "invoice", "123", "urgent invoice", "invoice 123"},
		},
		{
			"empty input",
			"",
			[]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTFIDFVectorizerFitTransform(t *testing.T) {
	docs := []string{
		"invoice payment due",
		"invoice overdue payment",
		"party saturday night",
	}
	v := NewTFIDFVectorizer(0) // default cap
	v.Fit(docs)

	if v.Size() == 0 {
		t.Fatal("empty vocabulary after fit")
	}
	if _, ok := v.Vocabulary["invoice"]; !ok {
		t.Error("invoice missing from vocabulary")
	}
	if _, ok := v.Vocabulary["invoice payment"]; !ok {
		t.Error("bigram missing from vocabulary")
	}

	// idf of a term in 2 of 3 docs: log(4/3)+1
	idx := v.Vocabulary["invoice"]
	want := math.Log(4.0/3.0) + 1
	if math.Abs(v.IDF[idx]-want) > 1e-9 {
		t.Errorf("idf(invoice) = %v, want %v", v.IDF[idx], want)
	}

	// transforms are L2-normalized
	row := v.Transform("invoice payment due")
	if len(row) == 0 {
		t.Fatal("empty transform for in-vocabulary text")
	}
	var norm float64
	for _, w := range row {
		norm += w * w
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
		t.Errorf("L2 norm = %v, want 1", math.Sqrt(norm))
	}

	// out-of-vocabulary text maps to nothing
	if row := v.Transform("zzz qqq"); len(row) != 0 {
		t.Errorf("unexpected weights for unseen terms: %v", row)
	}
}

func TestTFIDFVectorizerCapsVocabulary(t *testing.T) {
	v := NewTFIDFVectorizer(3)
	v.Fit([]string{
		"alpha beta gamma delta",
		"alpha beta gamma",
		"alpha beta",
		"alpha",
	})
	if v.Size() != 3 {
		t.Fatalf("vocabulary size = %d, want 3", v.Size())
	}
	// most frequent terms survive the cap
	if _, ok := v.Vocabulary["alpha"]; !ok {
		t.Error("most frequent term dropped by cap")
	}
}

func TestOneHotEncoder(t *testing.T) {
	e := NewOneHotEncoder(2)
	e.Fit([]string{"promotion", "promotion", "alert", "alert", "rare"})

	// rare folds into __other__; kept categories plus the other slot
	if e.Size() != 3 {
		t.Fatalf("size = %d, want 3", e.Size())
	}
	if e.Index("promotion") == e.Index("alert") {
		t.Error("distinct categories share a slot")
	}
	if e.Index("rare") != e.Index("never seen") {
		t.Error("rare category did not fold into other")
	}
	if e.Index("PROMOTION") != e.Index("promotion") {
		t.Error("lookup is case-sensitive")
	}
}
