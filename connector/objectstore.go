package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/secrets"
)

// objectStoreDestination writes each batch as one newline-delimited JSON
// object under <prefix>/<pipeline>/<run-id>/batch-<seq>.ndjson. The
// client is built on first load and the bucket is created if absent.
type objectStoreDestination struct {
	pipeline  string
	spec      config.DestinationSpec
	endpoint  string
	accessKey string
	secretKey string

	mu     sync.Mutex
	client *minio.Client
}

func newObjectStoreDestination(pipeline string, spec config.DestinationSpec, bundle secrets.Bundle) *objectStoreDestination {
	endpoint, _ := bundle.Get(spec.EndpointSecretKey)
	accessKey, _ := bundle.Get(spec.AccessKeySecretKey)
	secretKey, _ := bundle.Get(spec.SecretKeySecretKey)
	return &objectStoreDestination{
		pipeline:  pipeline,
		spec:      spec,
		endpoint:  endpoint,
		accessKey: accessKey,
		secretKey: secretKey,
	}
}

func (d *objectStoreDestination) Kind() config.DestinationKind { return config.DestObjectStore }

func (d *objectStoreDestination) Load(ctx context.Context, batch Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	client, err := d.connect(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range batch.Records {
		if err := enc.Encode(rec); err != nil {
			return errors.PermanentPipeline(d.pipeline, err)
		}
	}

	key := path.Join(d.spec.Prefix, d.pipeline, batch.RunID, fmt.Sprintf("batch-%05d.ndjson", batch.Seq))
	_, err = client.PutObject(ctx, d.spec.Bucket, key, &buf, int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.TransientPipeline(d.pipeline, err)
	}
	return nil
}

func (d *objectStoreDestination) Close(ctx context.Context) error { return nil }

func (d *objectStoreDestination) connect(ctx context.Context) (*minio.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return d.client, nil
	}

	client, err := minio.New(d.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(d.accessKey, d.secretKey, ""),
		Secure: d.spec.UseSSL,
	})
	if err != nil {
		return nil, errors.ConnectionFailed("object store", err)
	}

	exists, err := client.BucketExists(ctx, d.spec.Bucket)
	if err != nil {
		return nil, errors.ConnectionFailed("object store", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, d.spec.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.TransientPipeline(d.pipeline, err)
		}
	}

	d.client = client
	return client, nil
}
