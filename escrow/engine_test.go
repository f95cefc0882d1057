package escrow

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testPayer = "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"
const testPayee = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
const testDigest = "0E5751C026E543B2E8AB2EB06099DAA1D1E5DF47778F7787FAAB45CDF12FE3A8"

func testEngine() *Engine {
	return NewEngine(NewMemoryStore(), DefaultGracePeriod)
}

func openLocked(t *testing.T, sut *Engine, consentID string) (*Escrow, string) {
	t.Helper()
	escrow, err := sut.Open(testPayer, testPayee, 50, consentID, testDigest, 72*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !sut.Lock(escrow.ID, 12345) {
		t.Fatal("could not lock escrow")
	}
	secret, err := sut.Preimage(escrow.ID)
	if err != nil {
		t.Fatal(err)
	}
	return escrow, secret
}

func TestEngine_Open(t *testing.T) {
	sut := testEngine()

	escrow, err := sut.Open(testPayer, testPayee, 50, "urn:uuid:consent-1", testDigest, 72*time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("commitment is published, preimage is not", func(t *testing.T) {
		assert.Len(t, escrow.Condition.Commitment, 64)
		view, err := sut.Status(escrow.ID)
		if err != nil {
			t.Fatal(err)
		}
		raw, _ := json.Marshal(view)
		assert.NotContains(t, string(raw), "preimage")
		assert.Equal(t, escrow.Condition.Commitment, view.Commitment)
	})

	t.Run("expiry trails the delivery deadline by the grace period", func(t *testing.T) {
		assert.Equal(t, escrow.Condition.DeliveryDeadline.Add(DefaultGracePeriod), escrow.ExpiresAt)
	})

	t.Run("one live escrow per consent", func(t *testing.T) {
		_, err := sut.Open(testPayer, testPayee, 10, "urn:uuid:consent-1", testDigest, time.Hour)
		assert.ErrorIs(t, err, ErrConsentBound)
	})

	t.Run("amount must be positive", func(t *testing.T) {
		_, err := sut.Open(testPayer, testPayee, 0, "urn:uuid:consent-2", testDigest, time.Hour)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestEngine_Lock(t *testing.T) {
	sut := testEngine()
	escrow, err := sut.Open(testPayer, testPayee, 50, "urn:uuid:consent-1", testDigest, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	assert.True(t, sut.Lock(escrow.ID, 12345))
	// second lock is refused, the escrow is no longer CREATED
	assert.False(t, sut.Lock(escrow.ID, 99999))

	locked, _ := sut.Get(escrow.ID)
	assert.Equal(t, StatusLocked, locked.Status)
	assert.Equal(t, uint32(12345), locked.OfferSequence)
}

func TestEngine_Fulfill(t *testing.T) {
	cases := map[string]struct {
		digest   func(secret string) string
		secret   func(secret string) string
		expectOK bool
	}{
		"all conditions hold": {
			digest:   func(s string) string { return testDigest },
			secret:   func(s string) string { return s },
			expectOK: true,
		},
		"content digest mismatch": {
			digest:   func(s string) string { return strings.Repeat("A", 64) },
			secret:   func(s string) string { return s },
			expectOK: false,
		},
		"wrong preimage": {
			digest:   func(s string) string { return testDigest },
			secret:   func(s string) string { return "deadbeef" + s[8:] },
			expectOK: false,
		},
	}

	for name, testcase := range cases {
		t.Run(name, func(t *testing.T) {
			sut := testEngine()
			escrow, secret := openLocked(t, sut, "urn:uuid:consent-1")

			ok, settlement := sut.Fulfill(escrow.ID, testcase.digest(secret), testcase.secret(secret))
			assert.Equal(t, testcase.expectOK, ok)

			current, _ := sut.Get(escrow.ID)
			if testcase.expectOK {
				assert.Equal(t, StatusFulfilled, current.Status)
				assert.Equal(t, strings.ToUpper(secret), settlement.Fulfillment)
				assert.Equal(t, uint32(12345), settlement.OfferSequence)
			} else {
				// a failed attempt leaves the escrow untouched at LOCKED
				assert.Equal(t, StatusLocked, current.Status)
				assert.Nil(t, settlement)
			}
		})
	}

	t.Run("not fulfillable before lock", func(t *testing.T) {
		sut := testEngine()
		escrow, err := sut.Open(testPayer, testPayee, 50, "urn:uuid:consent-1", testDigest, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		ok, _ := sut.Fulfill(escrow.ID, testDigest, "whatever")
		assert.False(t, ok)
	})

	t.Run("past expiry auto-transitions to EXPIRED", func(t *testing.T) {
		sut := testEngine()
		escrow, secret := openLocked(t, sut, "urn:uuid:consent-1")

		defer func() { TimeNow = func() time.Time { return time.Now().UTC() } }()
		TimeNow = func() time.Time { return escrow.ExpiresAt.Add(time.Minute) }

		ok, _ := sut.Fulfill(escrow.ID, testDigest, secret)
		assert.False(t, ok)
		current, _ := sut.Get(escrow.ID)
		assert.Equal(t, StatusExpired, current.Status)
	})
}

func TestEngine_FulfillExactlyOnce(t *testing.T) {
	sut := testEngine()
	escrow, secret := openLocked(t, sut, "urn:uuid:consent-1")

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := sut.Fulfill(escrow.ID, testDigest, secret)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for ok := range results {
		if ok {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestEngine_Cancel(t *testing.T) {
	defer func() { TimeNow = func() time.Time { return time.Now().UTC() } }()

	t.Run("before expiry always fails", func(t *testing.T) {
		sut := testEngine()
		escrow, _ := openLocked(t, sut, "urn:uuid:consent-1")

		ok, record := sut.Cancel(escrow.ID)
		assert.False(t, ok)
		assert.Nil(t, record)
		current, _ := sut.Get(escrow.ID)
		assert.Equal(t, StatusLocked, current.Status)
	})

	t.Run("after expiry yields a refund instruction", func(t *testing.T) {
		sut := testEngine()
		escrow, _ := openLocked(t, sut, "urn:uuid:consent-1")

		TimeNow = func() time.Time { return escrow.ExpiresAt.Add(time.Minute) }
		ok, record := sut.Cancel(escrow.ID)
		assert.True(t, ok)
		assert.Equal(t, escrow.ID, record.EscrowID)
		assert.Equal(t, uint32(12345), record.OfferSequence)

		// idempotent: a second cancel is a safe no-op reporting failure
		ok, _ = sut.Cancel(escrow.ID)
		assert.False(t, ok)
	})

	t.Run("fulfill and cancel are mutually exclusive", func(t *testing.T) {
		sut := testEngine()
		escrow, secret := openLocked(t, sut, "urn:uuid:consent-1")

		TimeNow = func() time.Time { return time.Now().UTC() }
		ok, _ := sut.Fulfill(escrow.ID, testDigest, secret)
		assert.True(t, ok)

		TimeNow = func() time.Time { return escrow.ExpiresAt.Add(time.Minute) }
		ok, _ = sut.Cancel(escrow.ID)
		assert.False(t, ok)
		current, _ := sut.Get(escrow.ID)
		assert.Equal(t, StatusFulfilled, current.Status)
	})
}

func TestEngine_Abort(t *testing.T) {
	t.Run("a CREATED escrow aborts regardless of expiry", func(t *testing.T) {
		sut := testEngine()
		escrow, err := sut.Open(testPayer, testPayee, 50, "urn:uuid:consent-1", testDigest, 72*time.Hour)
		if err != nil {
			t.Fatal(err)
		}

		ok, record := sut.Abort(escrow.ID)
		assert.True(t, ok)
		assert.Equal(t, escrow.ID, record.EscrowID)
		assert.Equal(t, "aborted", record.Reason)

		current, _ := sut.Get(escrow.ID)
		assert.Equal(t, StatusCancelled, current.Status)

		// the consent binding is freed for a fresh escrow
		_, err = sut.Open(testPayer, testPayee, 50, "urn:uuid:consent-1", testDigest, 72*time.Hour)
		assert.NoError(t, err)
	})

	t.Run("a LOCKED escrow cannot be aborted", func(t *testing.T) {
		sut := testEngine()
		escrow, _ := openLocked(t, sut, "urn:uuid:consent-1")

		ok, record := sut.Abort(escrow.ID)
		assert.False(t, ok)
		assert.Nil(t, record)
		current, _ := sut.Get(escrow.ID)
		assert.Equal(t, StatusLocked, current.Status)
	})

	t.Run("preimage is dropped on abort", func(t *testing.T) {
		sut := testEngine()
		escrow, err := sut.Open(testPayer, testPayee, 50, "urn:uuid:consent-1", testDigest, time.Hour)
		if err != nil {
			t.Fatal(err)
		}

		sut.Abort(escrow.ID)
		_, err = sut.Preimage(escrow.ID)
		assert.Error(t, err)
	})
}

func TestEngine_PreimageHygiene(t *testing.T) {
	sut := testEngine()
	escrow, err := sut.Open(testPayer, testPayee, 50, "urn:uuid:consent-1", testDigest, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	// not revealed before the funds are committed
	_, err = sut.Preimage(escrow.ID)
	assert.ErrorIs(t, err, ErrNotLocked)

	sut.Lock(escrow.ID, 1)
	secret, err := sut.Preimage(escrow.ID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, commitmentFor(secret), escrow.Condition.Commitment)

	ok, _ := sut.Fulfill(escrow.ID, testDigest, secret)
	assert.True(t, ok)

	// gone once the escrow settles
	_, err = sut.Preimage(escrow.ID)
	assert.Error(t, err)
}
