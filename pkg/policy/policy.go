package policy

import (
	"context"
	"fmt"
	"strings"
)

// Policy is a named, immutable-once-created authorization rule set
// scoping what a credential may do within its topic namespace
type Policy struct {
	Name     string `json:"name"`
	ARN      string `json:"arn"`
	Document string `json:"document"`
}

// Adapter is the policy store contract
type Adapter interface {
	// Ensure creates the named policy or fetches the existing one;
	// it is the idempotent create-or-fetch of the onboarding chain
	Ensure(ctx context.Context, name, document string) (Policy, error)

	// Attach binds the policy to a credential (by principal ARN)
	Attach(ctx context.Context, name, principal string) error

	// Detach unbinds the policy from a credential
	Detach(ctx context.Context, name, principal string) error

	// DeleteIfUnreferenced deletes the policy unless it is still
	// attached elsewhere, in which case it fails with a conflict;
	// callers treat that conflict as success during compensation
	DeleteIfUnreferenced(ctx context.Context, name string) error
}

// NewDocument builds the authorization document for a topic scope:
// connect, plus publish/subscribe/receive under the scope subtree.
// The scope is the shared parent namespace of a device class, not an
// individual device topic, so one document serves the whole class.
func NewDocument(scope string) string {
	scope = strings.Trim(strings.TrimSpace(scope), "/")

	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Action": ["iot:Connect"],
      "Resource": ["*"]
    },
    {
      "Effect": "Allow",
      "Action": ["iot:Publish", "iot:Receive"],
      "Resource": ["arn:aws:iot:*:*:topic/%s/*"]
    },
    {
      "Effect": "Allow",
      "Action": ["iot:Subscribe"],
      "Resource": ["arn:aws:iot:*:*:topicfilter/%s/*"]
    }
  ]
}`, scope, scope)
}
