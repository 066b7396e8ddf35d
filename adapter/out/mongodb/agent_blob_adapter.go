package mongodb

import (
	"bytes"
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// GridFS Blob Adapter
// =============================================================================

// BlobAdapter implements out.BlobStorePort over a GridFS bucket. Blobs
// are keyed by filename; a put replaces any previous revision.
type BlobAdapter struct {
	bucket *gridfs.Bucket
}

func NewBlobAdapter(db *mongo.Database) (*BlobAdapter, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName("agent_blobs"))
	if err != nil {
		return nil, apperr.StoreError("create gridfs bucket", err)
	}
	return &BlobAdapter{bucket: bucket}, nil
}

func (a *BlobAdapter) GetBytes(ctx context.Context, path string) ([]byte, error) {
	var buf bytes.Buffer
	_, err := a.bucket.DownloadToStreamByName(path, &buf)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, apperr.NotFound("blob " + path)
		}
		return nil, apperr.StoreError("download blob", err)
	}
	return buf.Bytes(), nil
}

func (a *BlobAdapter) PutBytes(ctx context.Context, path string, data []byte) error {
	// drop older revisions so reads by name always see the latest
	if err := a.deleteByName(ctx, path); err != nil {
		return err
	}

	stream, err := a.bucket.OpenUploadStream(path)
	if err != nil {
		return apperr.StoreError("open blob upload", err)
	}
	if _, err := io.Copy(stream, bytes.NewReader(data)); err != nil {
		stream.Close()
		return apperr.StoreError("write blob", err)
	}
	if err := stream.Close(); err != nil {
		return apperr.StoreError("close blob upload", err)
	}
	return nil
}

func (a *BlobAdapter) Exists(ctx context.Context, path string) (bool, error) {
	cursor, err := a.bucket.Find(bson.M{"filename": path})
	if err != nil {
		return false, apperr.StoreError("find blob", err)
	}
	defer cursor.Close(ctx)
	return cursor.Next(ctx), nil
}

func (a *BlobAdapter) deleteByName(ctx context.Context, path string) error {
	cursor, err := a.bucket.Find(bson.M{"filename": path})
	if err != nil {
		return apperr.StoreError("find blob revisions", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var file struct {
			ID any `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return apperr.StoreError("decode blob metadata", err)
		}
		if err := a.bucket.Delete(file.ID); err != nil {
			return apperr.StoreError("delete blob revision", err)
		}
	}
	return nil
}

var _ out.BlobStorePort = (*BlobAdapter)(nil)
