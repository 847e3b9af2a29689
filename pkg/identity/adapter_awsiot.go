package identity

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iot"
	"github.com/aws/aws-sdk-go/service/iot/iotiface"
	"github.com/sensorhub/onboarding/pkg/remote"
)

// awsIoTAdapter issues device credentials as AWS IoT certificates
type awsIoTAdapter struct {
	client iotiface.IoTAPI
}

// NewAWSIoTAdapter returns an identity adapter backed by AWS IoT
func NewAWSIoTAdapter(client iotiface.IoTAPI) (Adapter, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	return &awsIoTAdapter{client: client}, nil
}

func (a *awsIoTAdapter) Issue(ctx context.Context) (c Credential, err error) {
	out, err := a.client.CreateKeysAndCertificateWithContext(ctx, &iot.CreateKeysAndCertificateInput{
		SetAsActive: aws.Bool(true),
	})
	if err != nil {
		return c, remote.AWSError("identity.issue", err)
	}

	c = Credential{
		ID:             aws.StringValue(out.CertificateId),
		ARN:            aws.StringValue(out.CertificateArn),
		CertificatePEM: aws.StringValue(out.CertificatePem),
		Status:         SActive,
	}

	if out.KeyPair != nil {
		c.PrivateKeyPEM = aws.StringValue(out.KeyPair.PrivateKey)
	}

	return c, nil
}

func (a *awsIoTAdapter) Describe(ctx context.Context, id string) (c Credential, err error) {
	if id == "" {
		return c, remote.Permanent("identity.describe", ErrEmptyCredentialID)
	}

	out, err := a.client.DescribeCertificateWithContext(ctx, &iot.DescribeCertificateInput{
		CertificateId: aws.String(id),
	})
	if err != nil {
		return c, remote.AWSError("identity.describe", err)
	}

	desc := out.CertificateDescription

	return Credential{
		ID:             aws.StringValue(desc.CertificateId),
		ARN:            aws.StringValue(desc.CertificateArn),
		CertificatePEM: aws.StringValue(desc.CertificatePem),
		Status:         Status(aws.StringValue(desc.Status)),
	}, nil
}

func (a *awsIoTAdapter) UpdateStatus(ctx context.Context, id string, status Status) error {
	if id == "" {
		return remote.Permanent("identity.update_status", ErrEmptyCredentialID)
	}

	_, err := a.client.UpdateCertificateWithContext(ctx, &iot.UpdateCertificateInput{
		CertificateId: aws.String(id),
		NewStatus:     aws.String(string(status)),
	})
	if err != nil {
		return remote.AWSError("identity.update_status", err)
	}

	return nil
}

func (a *awsIoTAdapter) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return remote.Permanent("identity.revoke", ErrEmptyCredentialID)
	}

	// a certificate must be INACTIVE before IoT allows deletion
	if err := a.UpdateStatus(ctx, id, SInactive); err != nil && !remote.IsNotFound(err) {
		return err
	}

	_, err := a.client.DeleteCertificateWithContext(ctx, &iot.DeleteCertificateInput{
		CertificateId: aws.String(id),
		ForceDelete:   aws.Bool(true),
	})
	if err != nil {
		return remote.AWSError("identity.revoke", err)
	}

	return nil
}
