package classifier

import (
	"context"
	"path"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// ArtifactStore reads and writes the (pipeline, label_encoder) pair as
// two JSON blobs under a versioned prefix.
type ArtifactStore struct {
	blob         out.BlobStorePort
	prefix       string
	pipelineFile string
	encoderFile  string
}

func NewArtifactStore(blob out.BlobStorePort, prefix, pipelineFile, encoderFile string) *ArtifactStore {
	if pipelineFile == "" {
		pipelineFile = "pipeline.json"
	}
	if encoderFile == "" {
		encoderFile = "label_encoder.json"
	}
	return &ArtifactStore{blob: blob, prefix: prefix, pipelineFile: pipelineFile, encoderFile: encoderFile}
}

// Load fetches both artifacts. A missing pipeline blob returns
// (nil, nil, nil): no model is not an error.
func (s *ArtifactStore) Load(ctx context.Context) (*Pipeline, *LabelEncoder, error) {
	exists, err := s.blob.Exists(ctx, path.Join(s.prefix, s.pipelineFile))
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, nil
	}

	pipeData, err := s.blob.GetBytes(ctx, path.Join(s.prefix, s.pipelineFile))
	if err != nil {
		return nil, nil, err
	}
	encData, err := s.blob.GetBytes(ctx, path.Join(s.prefix, s.encoderFile))
	if err != nil {
		return nil, nil, err
	}

	var pipe Pipeline
	if err := json.Unmarshal(pipeData, &pipe); err != nil {
		return nil, nil, apperr.ParseError("classifier pipeline artifact", err)
	}
	var enc LabelEncoder
	if err := json.Unmarshal(encData, &enc); err != nil {
		return nil, nil, apperr.ParseError("label encoder artifact", err)
	}
	return &pipe, &enc, nil
}

// Save writes both artifacts. The pipeline goes last so a crashed save
// never leaves a pipeline pointing at a stale encoder.
func (s *ArtifactStore) Save(ctx context.Context, pipe *Pipeline, enc *LabelEncoder) error {
	encData, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	pipeData, err := json.Marshal(pipe)
	if err != nil {
		return err
	}
	if err := s.blob.PutBytes(ctx, path.Join(s.prefix, s.encoderFile), encData); err != nil {
		return err
	}
	return s.blob.PutBytes(ctx, path.Join(s.prefix, s.pipelineFile), pipeData)
}

type loaded struct {
	pipe *Pipeline
	enc  *LabelEncoder
}

// Holder owns the live model with copy-on-replace semantics: readers see
// a consistent (pipeline, encoder) pair, swaps are atomic.
type Holder struct {
	store *ArtifactStore
	cur   atomic.Pointer[loaded]
}

func NewHolder(store *ArtifactStore) *Holder {
	return &Holder{store: store}
}

// Reload fetches the artifacts and swaps them in. Called at startup and
// after each successful retrain.
func (h *Holder) Reload(ctx context.Context) error {
	pipe, enc, err := h.store.Load(ctx)
	if err != nil {
		return err
	}
	if pipe == nil || enc == nil {
		h.cur.Store(nil)
		return nil
	}
	h.cur.Store(&loaded{pipe: pipe, enc: enc})
	return nil
}

// Replace swaps in a freshly trained pair without a blob round-trip.
func (h *Holder) Replace(pipe *Pipeline, enc *LabelEncoder) {
	h.cur.Store(&loaded{pipe: pipe, enc: enc})
}

// Available reports whether a model is loaded.
func (h *Holder) Available() bool { return h.cur.Load() != nil }

// Predict returns the label and its calibrated probability. ok=false
// when no model is loaded.
func (h *Holder) Predict(f Features) (label string, confidence float64, ok bool) {
	l := h.cur.Load()
	if l == nil {
		return "", 0, false
	}
	idx, prob := l.pipe.Predict(f)
	return l.enc.Label(idx), prob, true
}
