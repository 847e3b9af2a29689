package registry

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iot"
	"github.com/aws/aws-sdk-go/service/iot/iotiface"
	"github.com/sensorhub/onboarding/pkg/remote"
)

// attribute key carrying the device group on a thing
const groupAttribute = "deviceGroup"

// awsIoTAdapter manages registry entries as AWS IoT things
type awsIoTAdapter struct {
	client iotiface.IoTAPI
}

// NewAWSIoTAdapter returns a registry adapter backed by AWS IoT
func NewAWSIoTAdapter(client iotiface.IoTAPI) (Adapter, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	return &awsIoTAdapter{client: client}, nil
}

func (a *awsIoTAdapter) Create(ctx context.Context, name, group string) (e Entry, err error) {
	if name == "" {
		return e, remote.Permanent("registry.create", ErrEmptyName)
	}

	if group == "" {
		return e, remote.Permanent("registry.create", ErrEmptyGroup)
	}

	_, err = a.client.CreateThingWithContext(ctx, &iot.CreateThingInput{
		ThingName: aws.String(name),
		AttributePayload: &iot.AttributePayload{
			Attributes: map[string]*string{
				groupAttribute: aws.String(group),
			},
		},
	})
	if err != nil {
		return e, remote.AWSError("registry.create", err)
	}

	return Entry{Name: name, Group: group}, nil
}

func (a *awsIoTAdapter) Describe(ctx context.Context, name string) (e Entry, err error) {
	if name == "" {
		return e, remote.Permanent("registry.describe", ErrEmptyName)
	}

	out, err := a.client.DescribeThingWithContext(ctx, &iot.DescribeThingInput{
		ThingName: aws.String(name),
	})
	if err != nil {
		return e, remote.AWSError("registry.describe", err)
	}

	e = Entry{
		Name:  aws.StringValue(out.ThingName),
		Group: aws.StringValue(out.Attributes[groupAttribute]),
	}

	principals, err := a.client.ListThingPrincipalsWithContext(ctx, &iot.ListThingPrincipalsInput{
		ThingName: aws.String(name),
	})
	if err != nil {
		return e, remote.AWSError("registry.describe", err)
	}

	if len(principals.Principals) > 0 {
		e.PrincipalARN = aws.StringValue(principals.Principals[0])
	}

	return e, nil
}

func (a *awsIoTAdapter) AttachPrincipal(ctx context.Context, name, principal string) error {
	if name == "" {
		return remote.Permanent("registry.attach_principal", ErrEmptyName)
	}

	if principal == "" {
		return remote.Permanent("registry.attach_principal", ErrEmptyPrincipal)
	}

	_, err := a.client.AttachThingPrincipalWithContext(ctx, &iot.AttachThingPrincipalInput{
		ThingName: aws.String(name),
		Principal: aws.String(principal),
	})
	if err != nil {
		return remote.AWSError("registry.attach_principal", err)
	}

	return nil
}

func (a *awsIoTAdapter) DetachPrincipal(ctx context.Context, name, principal string) error {
	if name == "" {
		return remote.Permanent("registry.detach_principal", ErrEmptyName)
	}

	if principal == "" {
		return remote.Permanent("registry.detach_principal", ErrEmptyPrincipal)
	}

	_, err := a.client.DetachThingPrincipalWithContext(ctx, &iot.DetachThingPrincipalInput{
		ThingName: aws.String(name),
		Principal: aws.String(principal),
	})
	if err != nil {
		return remote.AWSError("registry.detach_principal", err)
	}

	return nil
}

func (a *awsIoTAdapter) Delete(ctx context.Context, name string) error {
	if name == "" {
		return remote.Permanent("registry.delete", ErrEmptyName)
	}

	_, err := a.client.DeleteThingWithContext(ctx, &iot.DeleteThingInput{
		ThingName: aws.String(name),
	})
	if err != nil {
		return remote.AWSError("registry.delete", err)
	}

	return nil
}
