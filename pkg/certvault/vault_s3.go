package certvault

import (
	"bytes"
	"context"
	"io/ioutil"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
	"github.com/sensorhub/onboarding/pkg/remote"
)

// s3Vault archives certificates into the deployment's certificate bucket
type s3Vault struct {
	client s3iface.S3API
	bucket string
}

// NewS3Vault returns an S3-backed certificate vault
func NewS3Vault(client s3iface.S3API, bucket string) (Vault, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	if bucket == "" {
		return nil, ErrEmptyBucket
	}

	return &s3Vault{client: client, bucket: bucket}, nil
}

func (v *s3Vault) Archive(ctx context.Context, group, serial string, certificatePEM []byte) error {
	if len(certificatePEM) == 0 {
		return remote.Permanent("certvault.archive", ErrEmptyMaterial)
	}

	_, err := v.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(v.bucket),
		Key:         aws.String(ObjectKey(group, serial)),
		Body:        bytes.NewReader(certificatePEM),
		ContentType: aws.String("application/x-pem-file"),
	})
	if err != nil {
		return remote.AWSError("certvault.archive", err)
	}

	return nil
}

func (v *s3Vault) Fetch(ctx context.Context, group, serial string) ([]byte, error) {
	out, err := v.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(ObjectKey(group, serial)),
	})
	if err != nil {
		return nil, remote.AWSError("certvault.fetch", err)
	}
	defer out.Body.Close()

	payload, err := ioutil.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read archived certificate")
	}

	return payload, nil
}
