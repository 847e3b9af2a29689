package onboarding_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sensorhub/onboarding/pkg/certvault"
	"github.com/sensorhub/onboarding/pkg/identity"
	"github.com/sensorhub/onboarding/pkg/ledger"
	"github.com/sensorhub/onboarding/pkg/onboarding"
	"github.com/sensorhub/onboarding/pkg/policy"
	"github.com/sensorhub/onboarding/pkg/registry"
	"github.com/sensorhub/onboarding/pkg/remote"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

//---------------------------------------------------------------------------
// fixture
//---------------------------------------------------------------------------

type fixture struct {
	m     *onboarding.Manager
	led   ledger.Store
	ids   *identity.MemoryAdapter
	pols  *policy.MemoryAdapter
	regs  *registry.MemoryAdapter
	vault *certvault.MemoryVault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		led:   ledger.NewMemoryStore(),
		ids:   identity.NewMemoryAdapter(),
		pols:  policy.NewMemoryAdapter(),
		regs:  registry.NewMemoryAdapter(),
		vault: certvault.NewMemoryVault(),
	}

	m, err := onboarding.NewManager(f.led, f.ids, f.pols, f.regs)
	if err != nil {
		t.Fatalf("failed to initialize manager: %v", err)
	}

	if err = m.SetLogger(zap.NewNop()); err != nil {
		t.Fatalf("failed to set logger: %v", err)
	}

	if err = m.SetVault(f.vault); err != nil {
		t.Fatalf("failed to set vault: %v", err)
	}

	m.SetRootTopic("data/#")

	f.m = m

	return f
}

func testRequest(serial string) onboarding.Request {
	return onboarding.Request{
		DeviceGroup:    "sensors",
		SerialNumber:   serial,
		TopicNamespace: "data/sensors/" + serial,
	}
}

func countCalls(calls []string, name string) (n int) {
	for _, c := range calls {
		if c == name {
			n++
		}
	}

	return n
}

func permanentFailure(msg string) func() error {
	return func() error {
		return remote.Permanent("test", errors.New(msg))
	}
}

//---------------------------------------------------------------------------
// onboarding
//---------------------------------------------------------------------------

func TestOnboardFreshDevice(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)

	a.Equal("id-001", res.IdentityID)
	a.Equal("pol-sensors-data", res.PolicyName)
	a.Equal("thing-SN-001", res.RegistryEntryName)
	a.False(res.Replayed)

	// key material is returned exactly once, on the issuing run
	a.True(strings.Contains(res.CertificatePEM, "BEGIN CERTIFICATE"))
	a.True(strings.Contains(res.PrivateKeyPEM, "PRIVATE KEY"))

	a.Equal(1, f.ids.Count())
	a.True(f.pols.Has("pol-sensors-data"))
	a.True(f.regs.Has("thing-SN-001"))
	a.Equal(1, f.vault.Count())

	rec, err := f.led.Get(ctx, "sensors", "SN-001")
	a.NoError(err)
	a.Equal(ledger.SComplete, rec.Status)
	a.Equal("id-001", rec.IdentityID)
	a.Equal("pol-sensors-data", rec.PolicyName)
	a.Equal("thing-SN-001", rec.RegistryEntryName)
}

func TestOnboardIdempotentReplay(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	first, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)
	a.NotEmpty(first.PrivateKeyPEM)

	second, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)

	a.True(second.Replayed)
	a.Equal(first.IdentityID, second.IdentityID)
	a.Equal(first.PolicyName, second.PolicyName)
	a.Equal(first.RegistryEntryName, second.RegistryEntryName)

	// the certificate is recoverable, the private key is not
	a.NotEmpty(second.CertificatePEM)
	a.Empty(second.PrivateKeyPEM)

	// no second credential was issued
	a.Equal(1, countCalls(f.ids.Calls, "issue"))
	a.Equal(1, f.ids.Count())
}

func TestOnboardStepFailuresLeaveNoOrphans(t *testing.T) {
	for _, tc := range []struct {
		name   string
		inject func(f *fixture)
	}{
		{"identity issue", func(f *fixture) { f.ids.FailIssue = permanentFailure("issue down") }},
		{"policy ensure", func(f *fixture) { f.pols.FailEnsure = permanentFailure("ensure down") }},
		{"policy attach", func(f *fixture) { f.pols.FailAttach = permanentFailure("attach down") }},
		{"registry create", func(f *fixture) { f.regs.FailCreate = permanentFailure("create down") }},
		{"registry attach", func(f *fixture) { f.regs.FailAttachPrincipal = permanentFailure("principal down") }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			f := newFixture(t)
			ctx := context.Background()

			tc.inject(f)

			_, err := f.m.Onboard(ctx, testRequest("SN-001"))
			a.Equal(onboarding.ErrProvisioningFailed, err)

			// compensation must leave nothing allocated for the device
			a.Equal(0, f.ids.Count())
			a.Equal(0, f.regs.Count())
			a.Equal(0, f.pols.AttachmentCount("pol-sensors-data"))
			a.False(f.pols.Has("pol-sensors-data"))

			rec, err := f.led.Get(ctx, "sensors", "SN-001")
			a.NoError(err)
			a.Equal(ledger.SFailed, rec.Status)
			a.False(rec.CompensationFailed)
			a.NotEmpty(rec.LastError)

			// a cleanly failed device restarts from scratch
			f.ids.FailIssue = nil
			f.pols.FailEnsure = nil
			f.pols.FailAttach = nil
			f.regs.FailCreate = nil
			f.regs.FailAttachPrincipal = nil

			res, err := f.m.Onboard(ctx, testRequest("SN-001"))
			a.NoError(err)
			a.NotEmpty(res.PrivateKeyPEM)

			rec, err = f.led.Get(ctx, "sensors", "SN-001")
			a.NoError(err)
			a.Equal(ledger.SComplete, rec.Status)
		})
	}
}

func TestOnboardTransientFailureRetried(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	// fail the first two attempts, succeed on the third
	remaining := 2
	f.pols.FailEnsure = func() error {
		if remaining == 0 {
			return nil
		}

		remaining--

		return remote.Transient("test", errors.New("throttled"))
	}

	res, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)
	a.Equal("id-001", res.IdentityID)
	a.Equal(3, countCalls(f.pols.Calls, "ensure"))
}

func TestOnboardConcurrentSameKey(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)

	const workers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		start   = make(chan struct{})
		results []onboarding.Result
		errs    []error
	)

	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			<-start

			res, err := f.m.Onboard(context.Background(), testRequest("SN-001"))

			mu.Lock()
			results = append(results, res)
			errs = append(errs, err)
			mu.Unlock()
		}()
	}

	close(start)
	wg.Wait()

	disclosed := 0
	succeeded := 0

	for i, err := range errs {
		if err != nil {
			a.Equal(onboarding.ErrInProgress, err)
			continue
		}

		succeeded++

		if results[i].PrivateKeyPEM != "" {
			disclosed++
		}
	}

	// losers get "in progress", nobody sees the key twice
	a.True(succeeded >= 1)
	a.True(disclosed <= 1)

	a.Equal(1, f.ids.Count())
	a.Equal(1, f.regs.Count())

	rec, err := f.led.Get(context.Background(), "sensors", "SN-001")
	a.NoError(err)
	a.Equal(ledger.SComplete, rec.Status)
}

func TestOnboardResumesInterruptedRun(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	// simulate a crash after the credential was issued and recorded
	cred, err := f.ids.Issue(ctx)
	a.NoError(err)

	rec := ledger.NewRecord("sensors", "SN-001")
	rec.IdentityID = cred.ID
	a.NoError(rec.Advance(ledger.SIdentityIssued))
	a.NoError(f.led.Put(ctx, rec, ""))

	res, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)

	// the issued credential is reused, its key is gone for good
	a.Equal(cred.ID, res.IdentityID)
	a.Empty(res.PrivateKeyPEM)
	a.NotEmpty(res.CertificatePEM)
	a.False(res.Replayed)

	a.Equal(1, countCalls(f.ids.Calls, "issue"))
	a.True(f.pols.Has("pol-sensors-data"))
	a.True(f.regs.Has("thing-SN-001"))

	rec, err = f.led.Get(ctx, "sensors", "SN-001")
	a.NoError(err)
	a.Equal(ledger.SComplete, rec.Status)
}

func TestOnboardCompensationFailureFreezesRecord(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	f.pols.FailEnsure = permanentFailure("ensure down")
	f.ids.FailRevoke = permanentFailure("revoke down")

	_, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.Equal(onboarding.ErrCompensationFailed, err)

	rec, err := f.led.Get(ctx, "sensors", "SN-001")
	a.NoError(err)
	a.Equal(ledger.SFailed, rec.Status)
	a.True(rec.CompensationFailed)

	// frozen: retries are rejected without touching the adapters
	issued := countCalls(f.ids.Calls, "issue")

	_, err = f.m.Onboard(ctx, testRequest("SN-001"))
	a.Equal(onboarding.ErrCompensationFailed, err)
	a.Equal(issued, countCalls(f.ids.Calls, "issue"))

	// operator path: deprovision clears the wreckage
	f.ids.FailRevoke = nil

	a.NoError(f.m.Deprovision(ctx, "sensors", "SN-001"))
	a.Equal(0, f.ids.Count())

	_, err = f.led.Get(ctx, "sensors", "SN-001")
	a.Equal(ledger.ErrRecordNotFound, err)

	// and the device can onboard again
	f.pols.FailEnsure = nil

	res, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)
	a.NotEmpty(res.PrivateKeyPEM)
}

func TestOnboardRootTopicEnforced(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)

	req := testRequest("SN-001")
	req.TopicNamespace = "telemetry/sensors/SN-001"

	_, err := f.m.Onboard(context.Background(), req)
	a.Error(err)
	a.True(onboarding.IsValidation(err))

	// rejected before any remote work
	a.Empty(f.ids.Calls)
	a.Empty(f.pols.Calls)
	a.Empty(f.regs.Calls)
}

//---------------------------------------------------------------------------
// deprovisioning
//---------------------------------------------------------------------------

func TestDeprovisionRoundTrip(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	first, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)

	a.NoError(f.m.Deprovision(ctx, "sensors", "SN-001"))

	a.Equal(0, f.ids.Count())
	a.Equal(0, f.regs.Count())
	a.False(f.pols.Has("pol-sensors-data"))

	_, err = f.led.Get(ctx, "sensors", "SN-001")
	a.Equal(ledger.ErrRecordNotFound, err)

	// the same key onboards again as a fresh provisioning
	second, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)
	a.NotEmpty(second.PrivateKeyPEM)
	a.NotEqual(first.IdentityID, second.IdentityID)
}

func TestDeprovisionIdempotent(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	// absent record is a no-op success
	a.NoError(f.m.Deprovision(ctx, "sensors", "SN-404"))

	_, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)

	a.NoError(f.m.Deprovision(ctx, "sensors", "SN-001"))
	a.NoError(f.m.Deprovision(ctx, "sensors", "SN-001"))
}

func TestDeprovisionRejectsInFlightRecord(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	rec := ledger.NewRecord("sensors", "SN-001")
	a.NoError(rec.Advance(ledger.SIdentityIssued))
	a.NoError(f.led.Put(ctx, rec, ""))

	a.Equal(onboarding.ErrInProgress, f.m.Deprovision(ctx, "sensors", "SN-001"))
}

func TestDeprovisionKeepsSharedPolicy(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	one, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)

	two, err := f.m.Onboard(ctx, testRequest("SN-002"))
	a.NoError(err)

	// same device class, one shared policy
	a.Equal(one.PolicyName, two.PolicyName)
	a.Equal(2, f.pols.AttachmentCount("pol-sensors-data"))

	a.NoError(f.m.Deprovision(ctx, "sensors", "SN-001"))

	// the surviving device keeps its policy and attachment
	a.True(f.pols.Has("pol-sensors-data"))
	a.Equal(1, f.pols.AttachmentCount("pol-sensors-data"))
	a.True(f.regs.Has("thing-SN-002"))
	a.Equal(1, f.ids.Count())

	// the last device out deletes it
	a.NoError(f.m.Deprovision(ctx, "sensors", "SN-002"))
	a.False(f.pols.Has("pol-sensors-data"))
	a.Equal(0, f.ids.Count())
}

func TestDeprovisionRetryAfterCleanupFailure(t *testing.T) {
	a := assert.New(t)

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Onboard(ctx, testRequest("SN-001"))
	a.NoError(err)

	f.regs.FailDelete = permanentFailure("registry down")

	a.Equal(onboarding.ErrCompensationFailed, f.m.Deprovision(ctx, "sensors", "SN-001"))

	rec, err := f.led.Get(ctx, "sensors", "SN-001")
	a.NoError(err)
	a.True(rec.CompensationFailed)

	// the retry picks up where the failed run stopped
	f.regs.FailDelete = nil

	a.NoError(f.m.Deprovision(ctx, "sensors", "SN-001"))

	a.Equal(0, f.ids.Count())
	a.Equal(0, f.regs.Count())

	_, err = f.led.Get(ctx, "sensors", "SN-001")
	a.Equal(ledger.ErrRecordNotFound, err)
}

func TestNewManagerRejectsNilDependencies(t *testing.T) {
	a := assert.New(t)

	led := ledger.NewMemoryStore()
	ids := identity.NewMemoryAdapter()
	pols := policy.NewMemoryAdapter()
	regs := registry.NewMemoryAdapter()

	_, err := onboarding.NewManager(nil, ids, pols, regs)
	a.Equal(onboarding.ErrNilLedger, err)

	_, err = onboarding.NewManager(led, nil, pols, regs)
	a.Equal(onboarding.ErrNilIdentityAdapter, err)

	_, err = onboarding.NewManager(led, ids, nil, regs)
	a.Equal(onboarding.ErrNilPolicyAdapter, err)

	_, err = onboarding.NewManager(led, ids, pols, nil)
	a.Equal(onboarding.ErrNilRegistryAdapter, err)
}
