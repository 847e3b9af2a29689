package ledger

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"
	"github.com/sensorhub/onboarding/pkg/remote"
)

// table key attribute names, matching the provisioned schema
const (
	attrDeviceGroup  = "deviceGroup"
	attrSerialNumber = "serialNumber"
	attrVersion      = "version"
)

// dynamoDBStore persists onboarding records in a DynamoDB table
// keyed (deviceGroup, serialNumber); conditional expressions carry
// the optimistic concurrency discipline
type dynamoDBStore struct {
	db    dynamodbiface.DynamoDBAPI
	table string
}

// NewDynamoDBStore returns a DynamoDB-backed ledger store
func NewDynamoDBStore(db dynamodbiface.DynamoDBAPI, table string) (Store, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	if table == "" {
		return nil, ErrEmptyTableName
	}

	return &dynamoDBStore{db: db, table: table}, nil
}

func (s *dynamoDBStore) key(group, serial string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		attrDeviceGroup:  {S: aws.String(group)},
		attrSerialNumber: {S: aws.String(serial)},
	}
}

func (s *dynamoDBStore) Get(ctx context.Context, group, serial string) (rec Record, err error) {
	if group == "" {
		return rec, ErrEmptyDeviceGroup
	}

	if serial == "" {
		return rec, ErrEmptySerialNumber
	}

	out, err := s.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(group, serial),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return rec, remote.AWSError("ledger.get", err)
	}

	if len(out.Item) == 0 {
		return rec, ErrRecordNotFound
	}

	if err = dynamodbattribute.UnmarshalMap(out.Item, &rec); err != nil {
		return rec, errors.Wrap(err, "failed to unmarshal onboarding record")
	}

	return rec, nil
}

func (s *dynamoDBStore) Put(ctx context.Context, rec Record, expectedVersion string) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	item, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal onboarding record")
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}

	if expectedVersion == "" {
		in.ConditionExpression = aws.String(
			"attribute_not_exists(" + attrDeviceGroup + ") AND attribute_not_exists(" + attrSerialNumber + ")",
		)
	} else {
		in.ConditionExpression = aws.String(attrVersion + " = :v")
		in.ExpressionAttributeValues = map[string]*dynamodb.AttributeValue{
			":v": {S: aws.String(expectedVersion)},
		}
	}

	if _, err = s.db.PutItemWithContext(ctx, in); err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return ErrVersionConflict
		}

		return remote.AWSError("ledger.put", err)
	}

	return nil
}

func (s *dynamoDBStore) Delete(ctx context.Context, group, serial, expectedVersion string) error {
	if group == "" {
		return ErrEmptyDeviceGroup
	}

	if serial == "" {
		return ErrEmptySerialNumber
	}

	in := &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(group, serial),
	}

	if expectedVersion != "" {
		in.ConditionExpression = aws.String(attrVersion + " = :v")
		in.ExpressionAttributeValues = map[string]*dynamodb.AttributeValue{
			":v": {S: aws.String(expectedVersion)},
		}
	}

	if _, err := s.db.DeleteItemWithContext(ctx, in); err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return ErrVersionConflict
		}

		return remote.AWSError("ledger.delete", err)
	}

	return nil
}
