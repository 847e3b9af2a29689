package remote

import (
	"github.com/aws/aws-sdk-go/aws/awserr"
)

// AWSError maps an aws-sdk-go error to a tagged remote error.
// Unclassified awserr codes are treated as permanent; plain network
// errors (no awserr code at all) as transient.
func AWSError(op string, err error) error {
	if err == nil {
		return nil
	}

	aerr, ok := err.(awserr.Error)
	if !ok {
		return Transient(op, err)
	}

	switch aerr.Code() {
	case "ThrottlingException",
		"Throttling",
		"TooManyRequestsException",
		"ProvisionedThroughputExceededException",
		"ServiceUnavailableException",
		"ServiceUnavailable",
		"InternalFailureException",
		"InternalFailure",
		"InternalServerError",
		"LimitExceededException",
		"RequestTimeout",
		"RequestTimeoutException":
		return Transient(op, err)
	case "ResourceNotFoundException",
		"NotFoundException",
		"NoSuchKey":
		return NotFound(op, err)
	case "ResourceAlreadyExistsException",
		"ConflictException",
		"DeleteConflictException",
		"ConditionalCheckFailedException":
		return Conflict(op, err)
	default:
		return Permanent(op, err)
	}
}
