package onboarding

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sensorhub/onboarding/pkg/certvault"
	"github.com/sensorhub/onboarding/pkg/identity"
	"github.com/sensorhub/onboarding/pkg/ledger"
	"github.com/sensorhub/onboarding/pkg/policy"
	"github.com/sensorhub/onboarding/pkg/registry"
	"github.com/sensorhub/onboarding/pkg/remote"
	"go.uber.org/zap"
)

// DefaultSagaTimeout bounds a single orchestration run end to end
const DefaultSagaTimeout = 60 * time.Second

// Manager is the saga coordinator: it sequences identity, policy and
// registry mutations for a device, persisting every transition to the
// ledger before and after each remote call. There is no in-process
// shared state between requests; concurrency safety comes entirely
// from the ledger's conditional writes.
type Manager struct {
	ledger      ledger.Store
	identities  identity.Adapter
	policies    policy.Adapter
	registry    registry.Adapter
	vault       certvault.Vault
	logger      *zap.Logger
	rootTopic   string
	sagaTimeout time.Duration
}

// NewManager returns an initialized onboarding manager
func NewManager(l ledger.Store, ia identity.Adapter, pa policy.Adapter, ra registry.Adapter) (*Manager, error) {
	if l == nil {
		return nil, ErrNilLedger
	}

	if ia == nil {
		return nil, ErrNilIdentityAdapter
	}

	if pa == nil {
		return nil, ErrNilPolicyAdapter
	}

	if ra == nil {
		return nil, ErrNilRegistryAdapter
	}

	return &Manager{
		ledger:      l,
		identities:  ia,
		policies:    pa,
		registry:    ra,
		sagaTimeout: DefaultSagaTimeout,
	}, nil
}

// SetVault assigns an optional certificate vault; issued certificates
// (public part only) are archived there after registration
func (m *Manager) SetVault(v certvault.Vault) error {
	if v == nil {
		return ErrNilVault
	}

	m.vault = v

	return nil
}

// SetRootTopic constrains accepted topic namespaces to the
// deployment's root topic (e.g. "data/#")
func (m *Manager) SetRootTopic(root string) {
	m.rootTopic = root
}

// SetLogger assigns a logger to this manager
func (m *Manager) SetLogger(logger *zap.Logger) error {
	if logger != nil {
		logger = logger.Named("[onboarding]")
	}

	m.logger = logger

	return nil
}

// Logger returns own logger
func (m *Manager) Logger() *zap.Logger {
	if m.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(errors.Wrap(err, "failed to initialize fallback logger"))
		}

		m.logger = l
	}

	return m.logger
}

// sagaContext detaches the orchestration from the caller's context:
// once remote side effects begin the saga must reach a terminal state
// even if the caller disconnects
func (m *Manager) sagaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.sagaTimeout)
}

// Onboard provisions a device identity, policy attachment and
// registry entry for (deviceGroup, serialNumber), driving the record
// PENDING -> IDENTITY_ISSUED -> POLICY_ATTACHED -> REGISTERED ->
// COMPLETE. Replays of a completed device return the existing
// identifiers without re-issuing credentials; an interrupted run is
// resumed from its persisted state.
func (m *Manager) Onboard(ctx context.Context, req Request) (res Result, err error) {
	if err = req.Validate(); err != nil {
		return res, err
	}

	if m.rootTopic != "" && !NamespaceUnderRoot(req.TopicNamespace, m.rootTopic) {
		return res, &ValidationError{Field: "topicNamespace", Reason: "outside the configured root topic"}
	}

	l := m.Logger().With(
		zap.String("device_group", req.DeviceGroup),
		zap.String("serial_number", req.SerialNumber),
	)

	sctx, cancel := m.sagaContext()
	defer cancel()

	rec, err := m.ledger.Get(sctx, req.DeviceGroup, req.SerialNumber)
	switch {
	case err == ledger.ErrRecordNotFound:
		rec = ledger.NewRecord(req.DeviceGroup, req.SerialNumber)

		if err = m.ledger.Put(sctx, rec, ""); err != nil {
			if err == ledger.ErrVersionConflict {
				return res, ErrInProgress
			}

			return res, errors.Wrap(err, "failed to create onboarding record")
		}
	case err != nil:
		return res, errors.Wrap(err, "failed to read onboarding record")
	default:
		if rec.Status == ledger.SComplete {
			l.Info("replaying completed onboarding")
			return m.replayResult(sctx, rec), nil
		}

		if rec.Status == ledger.SFailed && rec.CompensationFailed {
			return res, ErrCompensationFailed
		}

		prev := rec.Version

		if rec.Status == ledger.SFailed {
			// compensation ran clean, so nothing is allocated for
			// this device anymore; restart from scratch
			if err = rec.Advance(ledger.SPending); err != nil {
				return res, err
			}

			rec.IdentityID = ""
			rec.PolicyName = ""
			rec.RegistryEntryName = ""
			rec.LastError = ""
		} else {
			// claim the in-flight record; a concurrent orchestration
			// loses its next conditional write and aborts
			rec.Touch()
		}

		if err = m.ledger.Put(sctx, rec, prev); err != nil {
			if err == ledger.ErrVersionConflict {
				return res, ErrInProgress
			}

			return res, errors.Wrap(err, "failed to claim onboarding record")
		}

		l.Info("resuming onboarding", zap.String("status", string(rec.Status)))
	}

	return m.run(sctx, l, req, rec)
}

// run drives the forward chain from the record's current state
func (m *Manager) run(ctx context.Context, l *zap.Logger, req Request, rec ledger.Record) (res Result, err error) {
	var cred identity.Credential
	disclosed := false

	//---------------------------------------------------------------------------
	// PENDING -> IDENTITY_ISSUED
	//---------------------------------------------------------------------------
	if rec.Status == ledger.SPending {
		err = remote.Retry(ctx, "identity.issue", func(ctx context.Context) (rerr error) {
			cred, rerr = m.identities.Issue(ctx)
			return rerr
		})
		if err != nil {
			return res, m.fail(ctx, l, &rec, errors.Wrap(err, "failed to issue credential"), "")
		}

		disclosed = true
		rec.IdentityID = cred.ID

		if err = m.advance(ctx, &rec, ledger.SIdentityIssued); err != nil {
			// the credential was never persisted; revoke it so the
			// takeover cannot leave it orphaned
			if rerr := m.identities.Revoke(ctx, cred.ID); rerr != nil {
				l.Warn("failed to revoke unrecorded credential",
					zap.String("identity_id", cred.ID), zap.Error(rerr))
			}

			return res, err
		}

		l.Info("credential issued", zap.String("identity_id", cred.ID))
	} else if rec.IdentityID != "" {
		// resumed run: recover the credential reference (public part
		// only; private key material is disclosed exactly once)
		err = remote.Retry(ctx, "identity.describe", func(ctx context.Context) (rerr error) {
			cred, rerr = m.identities.Describe(ctx, rec.IdentityID)
			return rerr
		})
		if err != nil {
			return res, m.fail(ctx, l, &rec, errors.Wrap(err, "failed to recover issued credential"), "")
		}
	}

	//---------------------------------------------------------------------------
	// IDENTITY_ISSUED -> POLICY_ATTACHED
	//---------------------------------------------------------------------------
	if rec.Status == ledger.SIdentityIssued {
		name := PolicyName(req.DeviceGroup, req.TopicNamespace)
		doc := policy.NewDocument(PolicyScope(req.TopicNamespace))

		rec.PolicyName = name

		err = remote.Retry(ctx, "policy.ensure", func(ctx context.Context) error {
			_, rerr := m.policies.Ensure(ctx, name, doc)
			return rerr
		})
		if err != nil {
			return res, m.fail(ctx, l, &rec, errors.Wrap(err, "failed to ensure policy"), cred.ARN)
		}

		err = remote.Retry(ctx, "policy.attach", func(ctx context.Context) error {
			return m.policies.Attach(ctx, name, cred.ARN)
		})
		if err != nil {
			return res, m.fail(ctx, l, &rec, errors.Wrap(err, "failed to attach policy"), cred.ARN)
		}

		if err = m.advance(ctx, &rec, ledger.SPolicyAttached); err != nil {
			// attachment is idempotent and the policy name is
			// deterministic; the takeover run reconverges on its own
			return res, err
		}

		l.Info("policy attached", zap.String("policy_name", name))
	}

	//---------------------------------------------------------------------------
	// POLICY_ATTACHED -> REGISTERED
	//---------------------------------------------------------------------------
	if rec.Status == ledger.SPolicyAttached {
		name := EntryName(req.SerialNumber)

		rec.RegistryEntryName = name

		err = remote.Retry(ctx, "registry.create", func(ctx context.Context) error {
			_, cerr := m.registry.Create(ctx, name, req.DeviceGroup)
			if cerr == nil || !remote.IsConflict(cerr) {
				return cerr
			}

			// deterministic names: adopt an entry left behind by an
			// earlier run of this record, reject a foreign one
			e, derr := m.registry.Describe(ctx, name)
			if derr != nil {
				return derr
			}

			if e.Group != req.DeviceGroup {
				return cerr
			}

			if e.PrincipalARN != "" && e.PrincipalARN != cred.ARN {
				return cerr
			}

			return nil
		})
		if err != nil {
			return res, m.fail(ctx, l, &rec, errors.Wrap(err, "failed to create registry entry"), cred.ARN)
		}

		err = remote.Retry(ctx, "registry.attach_principal", func(ctx context.Context) error {
			return m.registry.AttachPrincipal(ctx, name, cred.ARN)
		})
		if err != nil {
			return res, m.fail(ctx, l, &rec, errors.Wrap(err, "failed to attach principal"), cred.ARN)
		}

		if err = m.advance(ctx, &rec, ledger.SRegistered); err != nil {
			return res, err
		}

		l.Info("registry entry created", zap.String("registry_entry", name))
	}

	//---------------------------------------------------------------------------
	// REGISTERED -> COMPLETE
	//---------------------------------------------------------------------------
	if rec.Status == ledger.SRegistered {
		if m.vault != nil && cred.CertificatePEM != "" {
			// best-effort archive of the public certificate; the vault
			// is auxiliary and must not fail the saga
			if aerr := m.vault.Archive(ctx, req.DeviceGroup, req.SerialNumber, []byte(cred.CertificatePEM)); aerr != nil {
				l.Warn("failed to archive device certificate", zap.Error(aerr))
			}
		}

		if err = m.advance(ctx, &rec, ledger.SComplete); err != nil {
			return res, err
		}

		l.Info("onboarding complete",
			zap.String("identity_id", rec.IdentityID),
			zap.String("registry_entry", rec.RegistryEntryName))
	}

	res = Result{
		IdentityID:        rec.IdentityID,
		PolicyName:        rec.PolicyName,
		RegistryEntryName: rec.RegistryEntryName,
		CertificatePEM:    cred.CertificatePEM,
	}

	if disclosed {
		res.PrivateKeyPEM = cred.PrivateKeyPEM
	}

	return res, nil
}

// replayResult builds the idempotent response for an already
// completed device: same identifiers, no key material
func (m *Manager) replayResult(ctx context.Context, rec ledger.Record) Result {
	res := Result{
		IdentityID:        rec.IdentityID,
		PolicyName:        rec.PolicyName,
		RegistryEntryName: rec.RegistryEntryName,
		Replayed:          true,
	}

	if cred, err := m.identities.Describe(ctx, rec.IdentityID); err == nil {
		res.CertificatePEM = cred.CertificatePEM
	}

	return res
}

// advance persists a state transition as a conditional write; losing
// the write means another orchestration claimed the record
func (m *Manager) advance(ctx context.Context, rec *ledger.Record, next ledger.Status) error {
	prev := rec.Version

	if err := rec.Advance(next); err != nil {
		return err
	}

	if err := m.ledger.Put(ctx, *rec, prev); err != nil {
		if err == ledger.ErrVersionConflict {
			return ErrInProgress
		}

		return errors.Wrapf(err, "failed to persist transition to %s", next)
	}

	return nil
}

// fail compensates already-performed steps in strict reverse order
// and marks the record FAILED. Callers receive a generic failure;
// details live in the logs and the ledger record.
func (m *Manager) fail(ctx context.Context, l *zap.Logger, rec *ledger.Record, cause error, principal string) error {
	l.Error("onboarding step failed, compensating", zap.Error(cause))

	comp := m.compensate(ctx, l, rec, principal)

	prev := rec.Version
	rec.LastError = cause.Error()
	rec.CompensationFailed = comp != nil

	if aerr := rec.Advance(ledger.SFailed); aerr != nil {
		l.Error("failed to mark record FAILED", zap.Error(aerr))
	} else if perr := m.ledger.Put(ctx, *rec, prev); perr != nil {
		l.Error("failed to persist FAILED record", zap.Error(perr))
	}

	if comp != nil {
		l.Error("compensation failed, operator intervention required", zap.Error(comp))
		return ErrCompensationFailed
	}

	return ErrProvisioningFailed
}

// compensate undoes the forward steps recorded so far: registry entry
// first, then the policy attachment, then the credential. A shared
// policy refusing deletion is success; missing resources are success.
func (m *Manager) compensate(ctx context.Context, l *zap.Logger, rec *ledger.Record, principal string) error {
	if rec.RegistryEntryName != "" {
		e, derr := m.registry.Describe(ctx, rec.RegistryEntryName)

		switch {
		case remote.IsNotFound(derr):
			// nothing to undo
		case derr != nil:
			return errors.Wrap(derr, "failed to inspect registry entry")
		case e.PrincipalARN != "" && principal != "" && e.PrincipalARN != principal:
			// the entry belongs to a different credential; not ours to delete
			l.Warn("leaving foreign registry entry in place",
				zap.String("registry_entry", rec.RegistryEntryName))
		default:
			if e.PrincipalARN != "" {
				err := remote.Retry(ctx, "registry.detach_principal", func(ctx context.Context) error {
					return m.registry.DetachPrincipal(ctx, rec.RegistryEntryName, e.PrincipalARN)
				})
				if err != nil && !remote.IsNotFound(err) {
					return errors.Wrap(err, "failed to detach principal")
				}
			}

			err := remote.Retry(ctx, "registry.delete", func(ctx context.Context) error {
				return m.registry.Delete(ctx, rec.RegistryEntryName)
			})
			if err != nil && !remote.IsNotFound(err) {
				return errors.Wrap(err, "failed to delete registry entry")
			}
		}
	}

	if rec.PolicyName != "" {
		if principal != "" {
			err := remote.Retry(ctx, "policy.detach", func(ctx context.Context) error {
				return m.policies.Detach(ctx, rec.PolicyName, principal)
			})
			if err != nil && !remote.IsNotFound(err) {
				return errors.Wrap(err, "failed to detach policy")
			}
		}

		err := remote.Retry(ctx, "policy.delete", func(ctx context.Context) error {
			return m.policies.DeleteIfUnreferenced(ctx, rec.PolicyName)
		})
		if err != nil && !remote.IsNotFound(err) && !remote.IsConflict(err) {
			return errors.Wrap(err, "failed to delete policy")
		}
	}

	if rec.IdentityID != "" {
		err := remote.Retry(ctx, "identity.revoke", func(ctx context.Context) error {
			return m.identities.Revoke(ctx, rec.IdentityID)
		})
		if err != nil && !remote.IsNotFound(err) {
			return errors.Wrap(err, "failed to revoke credential")
		}
	}

	return nil
}

// Deprovision decommissions a completed device by running the chain
// in reverse: registry entry, policy attachment, credential, then the
// ledger record itself. Idempotent: absent or already deprovisioned
// records are a no-op. FAILED records are accepted as the operator's
// remediation path.
func (m *Manager) Deprovision(ctx context.Context, group, serial string) error {
	if group == "" {
		return &ValidationError{Field: "deviceGroup", Reason: "must not be empty"}
	}

	if serial == "" {
		return &ValidationError{Field: "serialNumber", Reason: "must not be empty"}
	}

	l := m.Logger().With(
		zap.String("device_group", group),
		zap.String("serial_number", serial),
	)

	sctx, cancel := m.sagaContext()
	defer cancel()

	rec, err := m.ledger.Get(sctx, group, serial)
	if err == ledger.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read onboarding record")
	}

	switch rec.Status {
	case ledger.SComplete, ledger.SFailed:
	case ledger.SDeprovisioned:
		return nil
	default:
		return ErrInProgress
	}

	// claim the record so no concurrent orchestration interleaves
	if err = m.persist(sctx, &rec); err != nil {
		return err
	}

	// the principal is needed to undo attachments; a vanished
	// credential just means those steps are already moot
	principal := ""
	if rec.IdentityID != "" {
		cred, derr := m.identities.Describe(sctx, rec.IdentityID)
		switch {
		case derr == nil:
			principal = cred.ARN
		case remote.IsNotFound(derr):
		default:
			return errors.Wrap(derr, "failed to resolve credential")
		}
	}

	// each cleared field is persisted so a crashed deprovisioning
	// resumes by skipping the already-cleared steps
	if rec.RegistryEntryName != "" {
		if principal != "" {
			err = remote.Retry(sctx, "registry.detach_principal", func(ctx context.Context) error {
				return m.registry.DetachPrincipal(ctx, rec.RegistryEntryName, principal)
			})
			if err != nil && !remote.IsNotFound(err) {
				return m.deprovisionFailed(sctx, l, &rec, errors.Wrap(err, "failed to detach principal"))
			}
		}

		err = remote.Retry(sctx, "registry.delete", func(ctx context.Context) error {
			return m.registry.Delete(ctx, rec.RegistryEntryName)
		})
		if err != nil && !remote.IsNotFound(err) {
			return m.deprovisionFailed(sctx, l, &rec, errors.Wrap(err, "failed to delete registry entry"))
		}

		rec.RegistryEntryName = ""
		if err = m.persist(sctx, &rec); err != nil {
			return err
		}
	}

	if rec.PolicyName != "" {
		if principal != "" {
			err = remote.Retry(sctx, "policy.detach", func(ctx context.Context) error {
				return m.policies.Detach(ctx, rec.PolicyName, principal)
			})
			if err != nil && !remote.IsNotFound(err) {
				return m.deprovisionFailed(sctx, l, &rec, errors.Wrap(err, "failed to detach policy"))
			}
		}

		// a shared policy refuses deletion; only the attachment goes
		err = remote.Retry(sctx, "policy.delete", func(ctx context.Context) error {
			return m.policies.DeleteIfUnreferenced(ctx, rec.PolicyName)
		})
		if err != nil && !remote.IsNotFound(err) && !remote.IsConflict(err) {
			return m.deprovisionFailed(sctx, l, &rec, errors.Wrap(err, "failed to delete policy"))
		}

		rec.PolicyName = ""
		if err = m.persist(sctx, &rec); err != nil {
			return err
		}
	}

	if rec.IdentityID != "" {
		err = remote.Retry(sctx, "identity.revoke", func(ctx context.Context) error {
			return m.identities.Revoke(ctx, rec.IdentityID)
		})
		if err != nil && !remote.IsNotFound(err) {
			return m.deprovisionFailed(sctx, l, &rec, errors.Wrap(err, "failed to revoke credential"))
		}

		rec.IdentityID = ""
		if err = m.persist(sctx, &rec); err != nil {
			return err
		}
	}

	if err = m.ledger.Delete(sctx, group, serial, rec.Version); err != nil {
		if err == ledger.ErrVersionConflict {
			return ErrInProgress
		}

		return errors.Wrap(err, "failed to delete onboarding record")
	}

	l.Info("device deprovisioned")

	return nil
}

// persist stamps a new version and writes the record conditionally
func (m *Manager) persist(ctx context.Context, rec *ledger.Record) error {
	prev := rec.Version
	rec.Touch()

	if err := m.ledger.Put(ctx, *rec, prev); err != nil {
		if err == ledger.ErrVersionConflict {
			return ErrInProgress
		}

		return errors.Wrap(err, "failed to persist onboarding record")
	}

	return nil
}

// deprovisionFailed records a cleanup failure for operators; the
// partially-cleared record stays behind for a later retry
func (m *Manager) deprovisionFailed(ctx context.Context, l *zap.Logger, rec *ledger.Record, cause error) error {
	l.Error("deprovisioning step failed", zap.Error(cause))

	rec.LastError = cause.Error()
	rec.CompensationFailed = true

	if err := m.persist(ctx, rec); err != nil {
		l.Error("failed to persist deprovisioning failure", zap.Error(err))
	}

	return ErrCompensationFailed
}
