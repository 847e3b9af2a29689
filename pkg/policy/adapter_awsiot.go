package policy

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iot"
	"github.com/aws/aws-sdk-go/service/iot/iotiface"
	"github.com/sensorhub/onboarding/pkg/remote"
)

// awsIoTAdapter manages authorization policies as AWS IoT policies
type awsIoTAdapter struct {
	client iotiface.IoTAPI
}

// NewAWSIoTAdapter returns a policy adapter backed by AWS IoT
func NewAWSIoTAdapter(client iotiface.IoTAPI) (Adapter, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	return &awsIoTAdapter{client: client}, nil
}

func (a *awsIoTAdapter) Ensure(ctx context.Context, name, document string) (p Policy, err error) {
	if name == "" {
		return p, remote.Permanent("policy.ensure", ErrEmptyName)
	}

	if document == "" {
		return p, remote.Permanent("policy.ensure", ErrEmptyDocument)
	}

	out, err := a.client.CreatePolicyWithContext(ctx, &iot.CreatePolicyInput{
		PolicyName:     aws.String(name),
		PolicyDocument: aws.String(document),
	})

	if err == nil {
		return Policy{
			Name:     aws.StringValue(out.PolicyName),
			ARN:      aws.StringValue(out.PolicyArn),
			Document: aws.StringValue(out.PolicyDocument),
		}, nil
	}

	err = remote.AWSError("policy.ensure", err)

	// an existing policy with this name is reused as-is; policies
	// are immutable once created
	if !remote.IsConflict(err) {
		return p, err
	}

	got, err := a.client.GetPolicyWithContext(ctx, &iot.GetPolicyInput{
		PolicyName: aws.String(name),
	})
	if err != nil {
		return p, remote.AWSError("policy.ensure", err)
	}

	return Policy{
		Name:     aws.StringValue(got.PolicyName),
		ARN:      aws.StringValue(got.PolicyArn),
		Document: aws.StringValue(got.PolicyDocument),
	}, nil
}

func (a *awsIoTAdapter) Attach(ctx context.Context, name, principal string) error {
	if name == "" {
		return remote.Permanent("policy.attach", ErrEmptyName)
	}

	if principal == "" {
		return remote.Permanent("policy.attach", ErrEmptyPrincipal)
	}

	_, err := a.client.AttachPolicyWithContext(ctx, &iot.AttachPolicyInput{
		PolicyName: aws.String(name),
		Target:     aws.String(principal),
	})
	if err != nil {
		return remote.AWSError("policy.attach", err)
	}

	return nil
}

func (a *awsIoTAdapter) Detach(ctx context.Context, name, principal string) error {
	if name == "" {
		return remote.Permanent("policy.detach", ErrEmptyName)
	}

	if principal == "" {
		return remote.Permanent("policy.detach", ErrEmptyPrincipal)
	}

	_, err := a.client.DetachPolicyWithContext(ctx, &iot.DetachPolicyInput{
		PolicyName: aws.String(name),
		Target:     aws.String(principal),
	})
	if err != nil {
		return remote.AWSError("policy.detach", err)
	}

	return nil
}

func (a *awsIoTAdapter) DeleteIfUnreferenced(ctx context.Context, name string) error {
	if name == "" {
		return remote.Permanent("policy.delete", ErrEmptyName)
	}

	// IoT refuses to delete a policy that is still attached, which is
	// exactly the reference probe the compensation path relies on
	_, err := a.client.DeletePolicyWithContext(ctx, &iot.DeletePolicyInput{
		PolicyName: aws.String(name),
	})
	if err != nil {
		return remote.AWSError("policy.delete", err)
	}

	return nil
}
