package core

import "strings"

// backends
const (
	LedgerDynamoDB = "dynamodb"
	LedgerBadger   = "badger"
	LedgerMemory   = "memory"

	AdaptersAWSIoT = "awsiot"
	AdaptersMemory = "memory"
)

// Config is the service configuration, normally populated from the
// config file and ONBOARDING_* environment variables
type Config struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr"`

	// Region is the AWS region for the dynamodb/awsiot/s3 backends
	Region string `json:"region"`

	// LedgerBackend selects the onboarding ledger store:
	// dynamodb, badger or memory
	LedgerBackend string `json:"ledger_backend"`

	// LedgerTable is the DynamoDB table name (dynamodb backend)
	LedgerTable string `json:"ledger_table"`

	// BadgerDir is the on-disk database directory (badger backend)
	BadgerDir string `json:"badger_dir"`

	// AdapterBackend selects the identity/policy/registry stores:
	// awsiot or memory
	AdapterBackend string `json:"adapter_backend"`

	// CertificateBucket enables certificate archival when non-empty;
	// S3 with the awsiot backend, in-memory otherwise
	CertificateBucket string `json:"certificate_bucket"`

	// RootTopic constrains device topic namespaces (e.g. "data/#");
	// empty accepts any namespace
	RootTopic string `json:"root_topic"`

	// JWTSecret signs and verifies caller bearer tokens; an empty
	// secret disables request authentication
	JWTSecret string `json:"jwt_secret"`

	// LogDir enables file logging when non-empty
	LogDir string `json:"log_dir"`

	// Debug switches verbose development logging on
	Debug bool `json:"debug"`
}

// SanitizeAndValidate normalizes the configuration and applies defaults
func (c *Config) SanitizeAndValidate() error {
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Addr == "" {
		c.Addr = ":8080"
	}

	c.LedgerBackend = strings.ToLower(strings.TrimSpace(c.LedgerBackend))
	if c.LedgerBackend == "" {
		c.LedgerBackend = LedgerMemory
	}

	c.AdapterBackend = strings.ToLower(strings.TrimSpace(c.AdapterBackend))
	if c.AdapterBackend == "" {
		c.AdapterBackend = AdaptersMemory
	}

	switch c.LedgerBackend {
	case LedgerDynamoDB:
		if strings.TrimSpace(c.LedgerTable) == "" {
			return ErrEmptyLedgerTable
		}
	case LedgerBadger:
		if strings.TrimSpace(c.BadgerDir) == "" {
			return ErrEmptyBadgerDir
		}
	case LedgerMemory:
	default:
		return ErrUnknownLedgerBackend
	}

	switch c.AdapterBackend {
	case AdaptersAWSIoT, AdaptersMemory:
	default:
		return ErrUnknownAdapterBackend
	}

	if c.RootTopic == "" {
		c.RootTopic = "data/#"
	}

	return nil
}
