package pkg

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/SportiQue-XRPL/XRP-LEDGER/audit"
	transactionCommands "github.com/SportiQue-XRPL/XRP-LEDGER/domain/transaction/commands"
	"github.com/SportiQue-XRPL/XRP-LEDGER/escrow"
	"github.com/SportiQue-XRPL/XRP-LEDGER/ledger"
	ledgerMock "github.com/SportiQue-XRPL/XRP-LEDGER/ledger/mock"
	record_utils "github.com/SportiQue-XRPL/XRP-LEDGER/record-utils"
)

const testRequesterDID = "did:xrpl:pharma-research"
const testRequesterAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
const testSubjectDID = "did:xrpl:subject123"
const testSubjectAddress = "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe"

func testPlatform(t *testing.T) *Platform {
	t.Helper()
	platform := &Platform{}
	if err := platform.Start(); err != nil {
		t.Fatal(err)
	}
	return platform
}

func testOffer() DataOffer {
	return DataOffer{
		Requester:        DID(testRequesterDID),
		RequesterName:    "Pharma Research Lab",
		RequesterAddress: Address(testRequesterAddress),
		DataTypes:        []string{"heart_rate", "steps", "sleep"},
		Purpose:          "diabetes_research",
		Compensation:     50,
		CollectionPeriod: "3months",
		RetentionPeriod:  "5years",
		ValidUntil:       TimeNow().Add(30 * 24 * time.Hour),
	}
}

func testSubject() SubjectProfile {
	return SubjectProfile{
		DID:        DID(testSubjectDID),
		Address:    Address(testSubjectAddress),
		Age:        34,
		Conditions: []string{"diabetes"},
	}
}

func TestPlatform_CreateDataOffer(t *testing.T) {
	sut := testPlatform(t)

	t.Run("publishes a pending offer and audits the request", func(t *testing.T) {
		offer, err := sut.CreateDataOffer(testOffer())

		if !assert.NoError(t, err) {
			return
		}
		assert.True(t, strings.HasPrefix(offer.ID, "offer_"))
		assert.Equal(t, OfferPending, offer.Status)

		events := sut.Audit.Query(audit.Filter{ResourceID: offer.ID})
		if assert.Len(t, events, 1) {
			assert.Equal(t, audit.KindDataRequested, events[0].Kind)
		}
	})

	t.Run("refused without compensation", func(t *testing.T) {
		offer := testOffer()
		offer.Compensation = 0

		_, err := sut.CreateDataOffer(offer)

		assert.Error(t, err)
	})

	t.Run("refused without data types", func(t *testing.T) {
		offer := testOffer()
		offer.DataTypes = nil

		_, err := sut.CreateDataOffer(offer)

		assert.Error(t, err)
	})

	t.Run("refused without a ledger address", func(t *testing.T) {
		offer := testOffer()
		offer.RequesterAddress = ""

		_, err := sut.CreateDataOffer(offer)

		assert.Error(t, err)
	})
}

func TestPlatform_AvailableOffers(t *testing.T) {
	cases := map[string]struct {
		criteria map[string]interface{}
		profile  SubjectProfile
		visible  bool
	}{
		"no criteria": {
			nil,
			testSubject(),
			true,
		},
		"age inside range": {
			map[string]interface{}{"min_age": 18, "max_age": 65},
			testSubject(),
			true,
		},
		"below minimum age": {
			map[string]interface{}{"min_age": 40},
			testSubject(),
			false,
		},
		"above maximum age": {
			map[string]interface{}{"max_age": 30},
			testSubject(),
			false,
		},
		"condition matches": {
			map[string]interface{}{"conditions": []string{"diabetes", "hypertension"}},
			testSubject(),
			true,
		},
		"condition missing": {
			map[string]interface{}{"conditions": []string{"asthma"}},
			testSubject(),
			false,
		},
	}

	for name, testcase := range cases {
		t.Run(name, func(t *testing.T) {
			sut := testPlatform(t)
			offer := testOffer()
			offer.TargetCriteria = testcase.criteria
			published, err := sut.CreateDataOffer(offer)
			if !assert.NoError(t, err) {
				return
			}

			visible := false
			for _, available := range sut.AvailableOffers(testcase.profile) {
				if available.ID == published.ID {
					visible = true
				}
			}
			assert.Equal(t, testcase.visible, visible)
		})
	}

	t.Run("accepted offers are not listed", func(t *testing.T) {
		sut := testPlatform(t)
		published, err := sut.CreateDataOffer(testOffer())
		assert.NoError(t, err)
		_, err = sut.AcceptOffer(context.Background(), published.ID, testSubject())
		assert.NoError(t, err)

		assert.Empty(t, sut.AvailableOffers(testSubject()))
	})
}

func TestPlatform_AcceptOffer(t *testing.T) {
	sut := testPlatform(t)
	published, err := sut.CreateDataOffer(testOffer())
	if err != nil {
		t.Fatal(err)
	}

	transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
	if !assert.NoError(t, err) {
		return
	}

	t.Run("transaction awaits delivery", func(t *testing.T) {
		assert.Equal(t, TransactionDeliveryLocked, transaction.Status)
		assert.NotEmpty(t, transaction.ConsentID)
		assert.NotEmpty(t, transaction.EscrowID)
		assert.Len(t, transaction.ContentDigest, 64)
	})

	t.Run("consent credential verifies for the requester", func(t *testing.T) {
		assert.True(t, sut.Consents.VerifyByID(transaction.ConsentID, testRequesterDID))
		assert.False(t, sut.Consents.VerifyByID(transaction.ConsentID, "did:xrpl:someone-else"))
	})

	t.Run("escrow holds the compensation, locked", func(t *testing.T) {
		view, err := sut.Escrows.Status(transaction.EscrowID)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, escrow.StatusLocked, view.Status)
		assert.Equal(t, 50.0, view.Amount)
		assert.Equal(t, testRequesterAddress, view.Payer)
		assert.Equal(t, testSubjectAddress, view.Payee)
	})

	t.Run("audit trail covers consent and escrow", func(t *testing.T) {
		consentEvents := sut.Audit.Query(audit.Filter{ResourceID: transaction.ConsentID})
		if assert.NotEmpty(t, consentEvents) {
			assert.Equal(t, audit.KindConsentCreated, consentEvents[0].Kind)
			assert.Equal(t, audit.Compliant, consentEvents[0].Compliance)
		}

		escrowEvents := sut.Audit.Query(audit.Filter{ResourceID: transaction.EscrowID})
		kinds := map[audit.Kind]bool{}
		for _, event := range escrowEvents {
			kinds[event.Kind] = true
		}
		assert.True(t, kinds[audit.KindEscrowCreated])
		assert.True(t, kinds[audit.KindEscrowLocked])
	})

	t.Run("escrow integrity verifies", func(t *testing.T) {
		report := sut.Audit.VerifyIntegrity(transaction.EscrowID)
		assert.True(t, report.Valid, report.Reason)
	})

	t.Run("a second acceptance is refused", func(t *testing.T) {
		_, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
		assert.Error(t, err)
	})

	t.Run("unknown offer is refused", func(t *testing.T) {
		_, err := sut.AcceptOffer(context.Background(), "offer_missing", testSubject())
		assert.Error(t, err)
	})
}

func TestPlatform_AcceptOffer_LedgerFailureCompensates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	clientMock := ledgerMock.NewMockClient(ctrl)
	clientMock.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(ledger.Result{}, errors.New("connection refused"))

	sut := &Platform{Ledger: clientMock}
	if err := sut.Start(); err != nil {
		t.Fatal(err)
	}
	published, err := sut.CreateDataOffer(testOffer())
	if err != nil {
		t.Fatal(err)
	}

	_, err = sut.AcceptOffer(context.Background(), published.ID, testSubject())
	assert.Error(t, err)

	// the issued credential was revoked as compensation
	assert.Empty(t, sut.Consents.ActiveForSubject(testSubjectDID))

	kinds := map[audit.Kind]bool{}
	abortedEscrowID := ""
	for _, event := range sut.Audit.Query(audit.Filter{}) {
		kinds[event.Kind] = true
		if event.Kind == audit.KindEscrowCancelled {
			abortedEscrowID = event.ResourceID
		}
	}
	assert.True(t, kinds[audit.KindStepFailed])
	assert.True(t, kinds[audit.KindConsentWithdrawn])

	// the orphaned escrow is closed and carries its own audit trail
	if assert.NotEmpty(t, abortedEscrowID) {
		current, err := sut.Escrows.Get(abortedEscrowID)
		assert.NoError(t, err)
		assert.Equal(t, escrow.StatusCancelled, current.Status)
		report := sut.Audit.VerifyIntegrity(abortedEscrowID)
		assert.True(t, report.Valid, report.Reason)
	}

	// the offer survives for the next acceptance attempt
	offer, err := sut.Offer(published.ID)
	assert.NoError(t, err)
	assert.Equal(t, OfferPending, offer.Status)

	clientMock.EXPECT().Submit(gomock.Any(), gomock.Any()).
		Return(ledger.Result{TxHash: "F00D", Validated: true, Sequence: 7}, nil)
	transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
	assert.NoError(t, err)
	assert.Equal(t, TransactionDeliveryLocked, transaction.Status)
}

func TestPlatform_AcceptOffer_LockRaceCompensates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	clientMock := ledgerMock.NewMockClient(ctrl)
	sut := &Platform{Ledger: clientMock}
	if err := sut.Start(); err != nil {
		t.Fatal(err)
	}

	// another transition claims the escrow between ledger validation and the
	// lock; the acceptance must fail without a transaction or a false
	// escrow_locked entry
	racedEscrowID := ""
	clientMock.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, envelope ledger.Envelope) (ledger.Result, error) {
			memo := envelope["Memos"].([]interface{})[0].(map[string]interface{})["Memo"].(map[string]interface{})
			decoded, err := hex.DecodeString(memo["MemoData"].(string))
			if err != nil {
				t.Fatal(err)
			}
			fields := map[string]interface{}{}
			if err := json.Unmarshal(decoded, &fields); err != nil {
				t.Fatal(err)
			}
			racedEscrowID = fields["EscrowID"].(string)
			sut.Escrows.Lock(racedEscrowID, 99)
			return ledger.Result{TxHash: "BEEF", Validated: true, Sequence: 100}, nil
		})

	published, err := sut.CreateDataOffer(testOffer())
	if err != nil {
		t.Fatal(err)
	}

	_, err = sut.AcceptOffer(context.Background(), published.ID, testSubject())
	assert.Error(t, err)
	assert.Empty(t, sut.openTransactions())

	kinds := map[audit.Kind]bool{}
	for _, event := range sut.Audit.Query(audit.Filter{}) {
		kinds[event.Kind] = true
	}
	assert.True(t, kinds[audit.KindStepFailed])
	assert.False(t, kinds[audit.KindEscrowLocked])

	// the stranded escrow still has an audit trail on its own resource
	if assert.NotEmpty(t, racedEscrowID) {
		report := sut.Audit.VerifyIntegrity(racedEscrowID)
		assert.True(t, report.Valid, report.Reason)
	}
}

func TestPlatform_ConfirmDelivery(t *testing.T) {
	sut := testPlatform(t)
	published, err := sut.CreateDataOffer(testOffer())
	if err != nil {
		t.Fatal(err)
	}
	transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
	if err != nil {
		t.Fatal(err)
	}

	completed, err := sut.ConfirmDelivery(context.Background(), transaction.ID)
	if !assert.NoError(t, err) {
		return
	}

	t.Run("transaction and offer settle", func(t *testing.T) {
		assert.Equal(t, TransactionCompleted, completed.Status)
		assert.NotNil(t, completed.CompletedAt)

		offer, err := sut.Offer(published.ID)
		assert.NoError(t, err)
		assert.Equal(t, OfferCompleted, offer.Status)
	})

	t.Run("escrow is fulfilled with a recorded ledger tx", func(t *testing.T) {
		view, err := sut.Escrows.Status(transaction.EscrowID)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, escrow.StatusFulfilled, view.Status)
		assert.NotEmpty(t, view.FulfillmentTx)
		assert.True(t, sut.Audit.HasLedgerTransaction(view.FulfillmentTx))
	})

	t.Run("consent creation is audited before payment completion", func(t *testing.T) {
		events := sut.Audit.Query(audit.Filter{})
		consentAt := -1
		paymentAt := -1
		for i, event := range events {
			if event.Kind == audit.KindConsentCreated && consentAt == -1 {
				consentAt = i
			}
			if event.Kind == audit.KindPaymentCompleted {
				paymentAt = i
			}
		}
		assert.True(t, consentAt >= 0)
		assert.True(t, paymentAt > consentAt)
	})

	t.Run("access is logged for the requester", func(t *testing.T) {
		history := sut.Audit.AccessHistory(testSubjectDID, 1)
		if assert.NotEmpty(t, history) {
			assert.Equal(t, testRequesterDID, history[0].Accessor)
			assert.Equal(t, transaction.ConsentID, history[0].ConsentID)
		}
	})

	t.Run("bundle is released to the requester only", func(t *testing.T) {
		payload, err := sut.Bundle(transaction.ID, DID(testRequesterDID))
		assert.NoError(t, err)
		assert.NotEmpty(t, payload)

		_, err = sut.Bundle(transaction.ID, "did:xrpl:someone-else")
		assert.Error(t, err)
	})

	t.Run("a second confirmation is refused", func(t *testing.T) {
		_, err := sut.ConfirmDelivery(context.Background(), transaction.ID)
		assert.Error(t, err)
	})
}

func TestPlatform_ConfirmDelivery_WithdrawnConsent(t *testing.T) {
	sut := testPlatform(t)
	published, err := sut.CreateDataOffer(testOffer())
	if err != nil {
		t.Fatal(err)
	}
	transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
	if err != nil {
		t.Fatal(err)
	}

	// the escrow window has not lapsed, so withdrawal leaves the escrow alone
	err = sut.WithdrawConsent(context.Background(), DID(testSubjectDID), transaction.ConsentID)
	assert.NoError(t, err)

	_, err = sut.ConfirmDelivery(context.Background(), transaction.ID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), ReasonConsentInvalid)

	// no partial advance anywhere
	stored, err := sut.Transaction(transaction.ID)
	assert.NoError(t, err)
	assert.Equal(t, TransactionDeliveryLocked, stored.Status)
	view, err := sut.Escrows.Status(transaction.EscrowID)
	assert.NoError(t, err)
	assert.Equal(t, escrow.StatusLocked, view.Status)
}

func TestPlatform_WithdrawConsent(t *testing.T) {
	t.Run("only the subject may withdraw", func(t *testing.T) {
		sut := testPlatform(t)
		published, _ := sut.CreateDataOffer(testOffer())
		transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
		if err != nil {
			t.Fatal(err)
		}

		err = sut.WithdrawConsent(context.Background(), "did:xrpl:someone-else", transaction.ConsentID)
		assert.Error(t, err)
	})

	t.Run("lapsed escrow is refunded and the transaction closes", func(t *testing.T) {
		sut := testPlatform(t)
		published, _ := sut.CreateDataOffer(testOffer())
		transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
		if err != nil {
			t.Fatal(err)
		}

		// move the escrow clock past the grace period
		escrow.TimeNow = func() time.Time {
			return time.Now().UTC().Add(sut.Config.DeliveryWindow + escrow.DefaultGracePeriod + time.Hour)
		}
		defer func() {
			escrow.TimeNow = func() time.Time { return time.Now().UTC() }
		}()

		err = sut.WithdrawConsent(context.Background(), DID(testSubjectDID), transaction.ConsentID)
		assert.NoError(t, err)

		stored, err := sut.Transaction(transaction.ID)
		assert.NoError(t, err)
		assert.Equal(t, TransactionCancelled, stored.Status)

		view, err := sut.Escrows.Status(transaction.EscrowID)
		assert.NoError(t, err)
		assert.Equal(t, escrow.StatusCancelled, view.Status)

		events := sut.Audit.Query(audit.Filter{ResourceID: transaction.EscrowID})
		kinds := map[audit.Kind]bool{}
		for _, event := range events {
			kinds[event.Kind] = true
		}
		assert.True(t, kinds[audit.KindEscrowCancelled])
	})
}

func TestPlatform_ExpireOverdue(t *testing.T) {
	sut := testPlatform(t)
	published, _ := sut.CreateDataOffer(testOffer())
	transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("nothing to do before the window lapses", func(t *testing.T) {
		assert.Equal(t, 0, sut.ExpireOverdue(context.Background()))
	})

	t.Run("lapsed transactions expire with a refund", func(t *testing.T) {
		escrow.TimeNow = func() time.Time {
			return time.Now().UTC().Add(sut.Config.DeliveryWindow + escrow.DefaultGracePeriod + time.Hour)
		}
		defer func() {
			escrow.TimeNow = func() time.Time { return time.Now().UTC() }
		}()

		assert.Equal(t, 1, sut.ExpireOverdue(context.Background()))

		stored, err := sut.Transaction(transaction.ID)
		assert.NoError(t, err)
		assert.Equal(t, TransactionExpired, stored.Status)
	})
}

func TestPlatform_TransactionStatus(t *testing.T) {
	sut := testPlatform(t)
	published, _ := sut.CreateDataOffer(testOffer())
	transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
	if err != nil {
		t.Fatal(err)
	}

	view, err := sut.TransactionStatus(transaction.ID)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, TransactionDeliveryLocked, view.Transaction.Status)
	assert.True(t, view.ConsentValid)
	assert.False(t, view.ConsentRevoked)
	if assert.NotNil(t, view.Escrow) {
		assert.Equal(t, escrow.StatusLocked, view.Escrow.Status)
	}

	sut.WithdrawConsent(context.Background(), DID(testSubjectDID), transaction.ConsentID)
	view, err = sut.TransactionStatus(transaction.ID)
	assert.NoError(t, err)
	assert.False(t, view.ConsentValid)
	assert.True(t, view.ConsentRevoked)
}

func TestPlatform_Dashboard(t *testing.T) {
	sut := testPlatform(t)
	published, _ := sut.CreateDataOffer(testOffer())
	transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sut.ConfirmDelivery(context.Background(), transaction.ID); err != nil {
		t.Fatal(err)
	}

	dashboard := sut.Dashboard()

	assert.Equal(t, 1, dashboard.Offers[OfferCompleted])
	assert.Equal(t, 1, dashboard.Transactions[TransactionCompleted])
	assert.Equal(t, 50.0, dashboard.SettledVolume)
	assert.Equal(t, 1, dashboard.Compliance.TotalConsents)
}

func TestPlatform_CommandBusHandlesTransactionCommands(t *testing.T) {
	sut := testPlatform(t)

	err := sut.CommandBus.HandleCommand(context.Background(), &transactionCommands.Begin{
		ID:        uuid.New(),
		OfferID:   "offer_1",
		SubjectID: testSubjectDID,
		ConsentID: "urn:uuid:consent-1",
		EscrowID:  "escrow_1",
		Amount:    50,
		Deadline:  time.Now().UTC().Add(72 * time.Hour),
	})

	assert.NoError(t, err)
}

func TestPlatform_LedgerNetworkConfig(t *testing.T) {
	t.Run("defaults to the testnet", func(t *testing.T) {
		sut := testPlatform(t)
		assert.Equal(t, ledger.TestnetConfig(), sut.Config.Ledger)
		assert.Equal(t, ledger.TestnetConfig(), sut.Ledger.(*ledger.LocalClient).Config)
	})

	t.Run("configured network reaches the client and the audit trail", func(t *testing.T) {
		sut := &Platform{Config: PlatformConfig{Ledger: ledger.MainnetConfig()}}
		if err := sut.Start(); err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, ledger.MainnetConfig(), sut.Ledger.(*ledger.LocalClient).Config)

		published, err := sut.CreateDataOffer(testOffer())
		if err != nil {
			t.Fatal(err)
		}
		transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
		if err != nil {
			t.Fatal(err)
		}

		events := sut.Audit.Query(audit.Filter{ResourceID: transaction.EscrowID})
		link := ""
		for _, event := range events {
			if event.Kind == audit.KindEscrowCreated {
				link, _ = event.Metadata["explorerLink"].(string)
			}
		}
		assert.Contains(t, link, ledger.MainnetConfig().ExplorerURL)
	})
}

func TestPlatform_AcceptOffer_WithMockBundles(t *testing.T) {
	sut := &Platform{Bundles: record_utils.MockBundleBuilder{}}
	if err := sut.Start(); err != nil {
		t.Fatal(err)
	}
	published, err := sut.CreateDataOffer(testOffer())
	if err != nil {
		t.Fatal(err)
	}

	transaction, err := sut.AcceptOffer(context.Background(), published.ID, testSubject())
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, TransactionDeliveryLocked, transaction.Status)
	assert.Len(t, transaction.ContentDigest, 64)

	completed, err := sut.ConfirmDelivery(context.Background(), transaction.ID)
	assert.NoError(t, err)
	assert.Equal(t, TransactionCompleted, completed.Status)
}
