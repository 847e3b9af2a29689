package core

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/iot"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"github.com/sensorhub/onboarding/pkg/certvault"
	"github.com/sensorhub/onboarding/pkg/identity"
	"github.com/sensorhub/onboarding/pkg/ledger"
	"github.com/sensorhub/onboarding/pkg/onboarding"
	"github.com/sensorhub/onboarding/pkg/policy"
	"github.com/sensorhub/onboarding/pkg/registry"
	"github.com/sensorhub/onboarding/pkg/util"
	"go.uber.org/zap"
)

// Core aggregates the onboarding service: the ledger store, the three
// remote adapters and the saga manager wired on top of them
type Core struct {
	config  Config
	manager *onboarding.Manager
	ledger  ledger.Store
	badger  *badger.DB
	logger  *zap.Logger
}

// New assembles a service core for the configured backends
func New(ctx context.Context, cfg Config, logger *zap.Logger) (c *Core, err error) {
	if err = cfg.SanitizeAndValidate(); err != nil {
		return nil, err
	}

	c = &Core{config: cfg}

	if err = c.SetLogger(logger); err != nil {
		return nil, err
	}

	l := c.Logger()

	// a single session serves every AWS-backed component
	var sess *session.Session
	if cfg.LedgerBackend == LedgerDynamoDB || cfg.AdapterBackend == AdaptersAWSIoT {
		sess, err = session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize aws session")
		}
	}

	//---------------------------------------------------------------------------
	// initializing the ledger store
	//---------------------------------------------------------------------------
	l.Info("initializing ledger store", zap.String("backend", cfg.LedgerBackend))

	var store ledger.Store

	switch cfg.LedgerBackend {
	case LedgerDynamoDB:
		store, err = ledger.NewDynamoDBStore(dynamodb.New(sess), cfg.LedgerTable)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize dynamodb ledger store")
		}
	case LedgerBadger:
		if err = util.CreateDirectoryIfNotExists(cfg.BadgerDir, 0755); err != nil {
			return nil, err
		}

		db, berr := badger.Open(badger.DefaultOptions(cfg.BadgerDir))
		if berr != nil {
			return nil, errors.Wrap(berr, "failed to open badger database")
		}

		c.badger = db

		store, err = ledger.NewBadgerStore(db)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize badger ledger store")
		}
	default:
		store = ledger.NewMemoryStore()
	}

	// terminal records are read-heavy (idempotent replays), so the
	// store is fronted by a cache
	store, err = ledger.NewCachedStore(store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize ledger cache")
	}

	c.ledger = store

	//---------------------------------------------------------------------------
	// initializing remote adapters
	//---------------------------------------------------------------------------
	l.Info("initializing remote adapters", zap.String("backend", cfg.AdapterBackend))

	var (
		identities identity.Adapter
		policies   policy.Adapter
		things     registry.Adapter
		vault      certvault.Vault
	)

	if cfg.AdapterBackend == AdaptersAWSIoT {
		client := iot.New(sess)

		if identities, err = identity.NewAWSIoTAdapter(client); err != nil {
			return nil, err
		}

		if policies, err = policy.NewAWSIoTAdapter(client); err != nil {
			return nil, err
		}

		if things, err = registry.NewAWSIoTAdapter(client); err != nil {
			return nil, err
		}

		if cfg.CertificateBucket != "" {
			if vault, err = certvault.NewS3Vault(s3.New(sess), cfg.CertificateBucket); err != nil {
				return nil, err
			}
		}
	} else {
		identities = identity.NewMemoryAdapter()
		policies = policy.NewMemoryAdapter()
		things = registry.NewMemoryAdapter()

		if cfg.CertificateBucket != "" {
			vault = certvault.NewMemoryVault()
		}
	}

	//---------------------------------------------------------------------------
	// initializing the onboarding manager
	//---------------------------------------------------------------------------
	l.Info("initializing onboarding manager", zap.String("root_topic", cfg.RootTopic))

	m, err := onboarding.NewManager(c.ledger, identities, policies, things)
	if err != nil {
		return nil, err
	}

	if err = m.SetLogger(c.Logger()); err != nil {
		return nil, err
	}

	m.SetRootTopic(cfg.RootTopic)

	if vault != nil {
		if err = m.SetVault(vault); err != nil {
			return nil, err
		}
	}

	c.manager = m

	return c, nil
}

// Manager returns the onboarding manager
func (c *Core) Manager() *onboarding.Manager {
	if c.manager == nil {
		panic(onboarding.ErrNilManager)
	}

	return c.manager
}

// Ledger returns the onboarding ledger store
func (c *Core) Ledger() ledger.Store {
	if c.ledger == nil {
		panic(ledger.ErrNilStore)
	}

	return c.ledger
}

// Config returns the core configuration
func (c *Core) Config() Config {
	return c.config
}

// SetLogger setting a primary logger for the core
func (c *Core) SetLogger(logger *zap.Logger) error {
	// if logger is set, then giving it a name
	// to know the log context
	if logger != nil {
		logger = logger.Named("[core]")
	}

	c.logger = logger

	return nil
}

// Logger returns primary logger if is set, otherwise initializing and returning
// a new default emergency logger
// NOTE: will panic if it finally fails to obtain a logger
func (c *Core) Logger() *zap.Logger {
	if c.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			// having a working logger is crucial, thus must panic() if initialization fails
			panic(errors.Wrap(err, "failed to initialize core logger"))
		}

		c.logger = l
	}

	return c.logger
}

// Close releases backend resources held by the core
func (c *Core) Close() error {
	if c.badger != nil {
		return c.badger.Close()
	}

	return nil
}
