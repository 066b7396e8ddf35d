package classifier

import (
	"context"
	"testing"
)

func TestLabelEncoder(t *testing.T) {
	e := &LabelEncoder{}
	e.Fit([]string{"HIGH", "MEDIUM", "HIGH", "LOW", "MEDIUM"})

	if len(e.Classes) != 3 {
		t.Fatalf("classes = %v, want 3 unique", e.Classes)
	}
	for _, label := range []string{"HIGH", "MEDIUM", "LOW"} {
		idx := e.Index(label)
		if idx < 0 {
			t.Fatalf("Index(%s) = -1", label)
		}
		if e.Label(idx) != label {
			t.Errorf("Label(Index(%s)) = %s", label, e.Label(idx))
		}
	}
	if e.Index("CRITICAL") != -1 {
		t.Error("unknown label has an index")
	}
	if e.Label(99) != "" {
		t.Error("out-of-range index has a label")
	}
}

func trainingRows() ([]Features, []string) {
	rows := []Features{
		{Text: "urgent server down production outage", LLMPurpose: "alert", SenderDomain: "pagerduty.com", LLMUrgency: 5},
		{Text: "critical incident database failure", LLMPurpose: "alert", SenderDomain: "pagerduty.com", LLMUrgency: 5},
		{Text: "production outage incident escalation", LLMPurpose: "alert", SenderDomain: "pagerduty.com", LLMUrgency: 4},
		{Text: "weekend sale discount offer ends soon", LLMPurpose: "promotion", SenderDomain: "shop.example", LLMUrgency: 1},
		{Text: "special discount coupon sale today", LLMPurpose: "promotion", SenderDomain: "shop.example", LLMUrgency: 1},
		{Text: "flash sale offer limited discount", LLMPurpose: "promotion", SenderDomain: "shop.example", LLMUrgency: 1},
	}
	labels := []string{"HIGH", "HIGH", "HIGH", "LOW", "LOW", "LOW"}
	return rows, labels
}

func TestFitAndPredict(t *testing.T) {
	rows, labels := trainingRows()
	enc := &LabelEncoder{}
	enc.Fit(labels)

	pipe, err := Fit(rows, labels, enc, "v1")
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	tests := []struct {
		name string
		f    Features
		want string
	}{
		{
			"alert classifies high",
			Features{Text: "urgent production incident", LLMPurpose: "alert", SenderDomain: "pagerduty.com", LLMUrgency: 5},
			"HIGH",
		},
		{
			"promotion classifies low",
			Features{Text: "discount sale offer", LLMPurpose: "promotion", SenderDomain: "shop.example", LLMUrgency: 1},
			"LOW",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, prob := pipe.Predict(tt.f)
			if got := enc.Label(idx); got != tt.want {
				t.Errorf("predicted %s (p=%.3f), want %s", got, prob, tt.want)
			}
			if prob <= 0 || prob > 1 {
				t.Errorf("probability %v out of range", prob)
			}
		})
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	enc := &LabelEncoder{}
	enc.Fit([]string{"HIGH"})

	if _, err := Fit(nil, nil, enc, "v1"); err == nil {
		t.Error("empty training set accepted")
	}
	rows, _ := trainingRows()
	if _, err := Fit(rows, []string{"HIGH"}, enc, "v1"); err == nil {
		t.Error("mismatched labels accepted")
	}
	if _, err := Fit(rows[:1], []string{"CRITICAL"}, enc, "v1"); err == nil {
		t.Error("label missing from encoder accepted")
	}
}

// fakeBlob is an in-memory BlobStorePort.
type fakeBlob struct {
	data map[string][]byte
}

func newFakeBlob() *fakeBlob { return &fakeBlob{data: map[string][]byte{}} }

func (f *fakeBlob) GetBytes(_ context.Context, path string) ([]byte, error) {
	return f.data[path], nil
}

func (f *fakeBlob) PutBytes(_ context.Context, path string, data []byte) error {
	f.data[path] = data
	return nil
}

func (f *fakeBlob) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.data[path]
	return ok, nil
}

func TestArtifactStoreMissingModel(t *testing.T) {
	store := NewArtifactStore(newFakeBlob(), "models/v1", "", "")
	pipe, enc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if pipe != nil || enc != nil {
		t.Error("missing artifacts returned a model")
	}
}

func TestArtifactStoreRoundTripAndHolder(t *testing.T) {
	rows, labels := trainingRows()
	enc := &LabelEncoder{}
	enc.Fit(labels)
	pipe, err := Fit(rows, labels, enc, "v1")
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	store := NewArtifactStore(newFakeBlob(), "models/v1", "", "")
	if err := store.Save(context.Background(), pipe, enc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	holder := NewHolder(store)
	if holder.Available() {
		t.Error("holder available before reload")
	}
	if _, _, ok := holder.Predict(rows[0]); ok {
		t.Error("predict succeeded without a model")
	}

	if err := holder.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !holder.Available() {
		t.Fatal("holder not available after reload")
	}

	label, conf, ok := holder.Predict(Features{
		Text: "urgent production incident", LLMPurpose: "alert",
		SenderDomain: "pagerduty.com", LLMUrgency: 5,
	})
	if !ok {
		t.Fatal("predict not ok with loaded model")
	}
	if label != "HIGH" {
		t.Errorf("label = %s (conf %.3f), want HIGH", label, conf)
	}
}
