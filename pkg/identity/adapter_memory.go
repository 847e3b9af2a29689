package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sensorhub/onboarding/pkg/remote"
)

// MemoryAdapter is an in-memory identity store used for local mode
// and tests. Failure hooks, when set, are invoked before the real
// operation and may fail it; Calls records every operation performed.
type MemoryAdapter struct {
	FailIssue        func() error
	FailUpdateStatus func() error
	FailRevoke       func() error

	Calls []string

	creds map[string]Credential
	seq   int
	sync.RWMutex
}

// NewMemoryAdapter returns an initialized in-memory identity adapter
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		creds: make(map[string]Credential),
	}
}

func (a *MemoryAdapter) record(call string) {
	a.Calls = append(a.Calls, call)
}

func (a *MemoryAdapter) Issue(ctx context.Context) (c Credential, err error) {
	a.Lock()
	defer a.Unlock()

	a.record("issue")

	if a.FailIssue != nil {
		if err = a.FailIssue(); err != nil {
			return c, err
		}
	}

	certPEM, keyPEM, err := selfSignedCertificate()
	if err != nil {
		return c, remote.Permanent("identity.issue", err)
	}

	a.seq++
	id := fmt.Sprintf("id-%03d", a.seq)

	c = Credential{
		ID:             id,
		ARN:            "arn:memory:cert/" + id,
		CertificatePEM: certPEM,
		PrivateKeyPEM:  keyPEM,
		Status:         SActive,
	}

	a.creds[c.ID] = c

	return c, nil
}

func (a *MemoryAdapter) Describe(ctx context.Context, id string) (c Credential, err error) {
	a.RLock()
	defer a.RUnlock()

	c, ok := a.creds[id]
	if !ok {
		return c, remote.NotFound("identity.describe", ErrCredentialNotFound)
	}

	// private key material is disclosed at issue time only
	c.PrivateKeyPEM = ""

	return c, nil
}

func (a *MemoryAdapter) UpdateStatus(ctx context.Context, id string, status Status) error {
	a.Lock()
	defer a.Unlock()

	a.record("update_status")

	if a.FailUpdateStatus != nil {
		if err := a.FailUpdateStatus(); err != nil {
			return err
		}
	}

	c, ok := a.creds[id]
	if !ok {
		return remote.NotFound("identity.update_status", ErrCredentialNotFound)
	}

	c.Status = status
	a.creds[id] = c

	return nil
}

func (a *MemoryAdapter) Revoke(ctx context.Context, id string) error {
	a.Lock()
	defer a.Unlock()

	a.record("revoke")

	if a.FailRevoke != nil {
		if err := a.FailRevoke(); err != nil {
			return err
		}
	}

	if _, ok := a.creds[id]; !ok {
		return remote.NotFound("identity.revoke", ErrCredentialNotFound)
	}

	delete(a.creds, id)

	return nil
}

// Count returns the number of live credentials
func (a *MemoryAdapter) Count() int {
	a.RLock()
	defer a.RUnlock()

	return len(a.creds)
}

// Has reports whether a credential with this id is still allocated
func (a *MemoryAdapter) Has(id string) bool {
	a.RLock()
	defer a.RUnlock()

	_, ok := a.creds[id]

	return ok
}

// selfSignedCertificate generates a real, if short-lived, ECDSA
// certificate so that downstream code handles genuine PEM material
func selfSignedCertificate() (certPEM string, keyPEM string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to generate key pair")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return "", "", errors.Wrap(err, "failed to generate certificate serial")
	}

	tpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "device credential"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, &key.PublicKey, key)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to create certificate")
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal private key")
	}

	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))

	return certPEM, keyPEM, nil
}
