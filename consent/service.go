package consent

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/jwk"

	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg/logger"
)

const proofType = "RsaSignature2018"
const proofPurpose = "assertionMethod"

// TimeNow returns the current time. This can be overwritten during tests
var TimeNow = func() time.Time {
	return time.Now().UTC()
}

// Service issues, verifies and revokes consent credentials on behalf of the
// platform issuer.
type Service struct {
	issuerDID  string
	signingKey *rsa.PrivateKey
	store      Store

	mu      sync.RWMutex
	trusted map[string]*rsa.PublicKey
}

// NewService creates a credential service signing as issuerDID. The issuer's
// own key is implicitly trusted for verification.
func NewService(issuerDID string, signingKey *rsa.PrivateKey, store Store) *Service {
	return &Service{
		issuerDID:  issuerDID,
		signingKey: signingKey,
		store:      store,
		trusted:    map[string]*rsa.PublicKey{issuerDID: &signingKey.PublicKey},
	}
}

// Issue mints a signed consent credential for the subject under the given
// terms. The proof uses RSA-PSS, so two signatures over the same content
// never repeat.
func (s *Service) Issue(subjectDID string, terms Terms) (*Credential, error) {
	now := TimeNow()
	currency := terms.Currency
	if currency == "" {
		currency = "XRP"
	}

	credential := &Credential{
		Context:        DefaultContexts,
		ID:             fmt.Sprintf("urn:uuid:%s", uuid.New()),
		Type:           DefaultTypes,
		Issuer:         s.issuerDID,
		IssuanceDate:   now,
		ExpirationDate: terms.ValidUntil,
		CredentialSubject: SubjectClaims{
			ID:           subjectDID,
			ConsentGiven: true,
			Terms: ClaimedTerms{
				Recipient:         terms.Recipient,
				Purpose:           terms.Scope.UsagePurpose,
				DataTypes:         terms.Scope.DataTypes,
				CollectionPeriod:  terms.Scope.CollectionPeriod,
				RetentionPeriod:   terms.Scope.RetentionPeriod,
				ThirdPartySharing: terms.Scope.ThirdPartySharing,
				Compensation:      Compensation{Amount: terms.Compensation, Currency: currency},
				WithdrawalRight:   terms.WithdrawalRight,
			},
			ConsentDate: now.Format(time.RFC3339),
			ValidUntil:  terms.ValidUntil.UTC().Format(time.RFC3339),
		},
	}

	proof, err := s.sign(*credential)
	if err != nil {
		return nil, fmt.Errorf("could not sign credential: %w", err)
	}
	credential.Proof = proof

	if err := s.store.Put(credential); err != nil {
		return nil, err
	}
	logger.Logger().Debugf("issued consent credential %s for subject %s", credential.ID, subjectDID)
	return credential, nil
}

// Verify checks a credential against the expected recipient. It fails closed:
// any problem (expiry, revocation, recipient mismatch, unknown issuer, bad
// signature) yields false, never an error to the caller.
func (s *Service) Verify(credential *Credential, expectedRecipient string) bool {
	if credential == nil || credential.Proof == nil {
		return false
	}
	if !TimeNow().Before(credential.ExpirationDate) {
		return false
	}
	if credential.Revoked || !credential.CredentialSubject.ConsentGiven {
		return false
	}
	if credential.CredentialSubject.Terms.Recipient != expectedRecipient {
		return false
	}

	key := s.trustedKey(credential.Issuer)
	if key == nil {
		return false
	}

	payload, err := credential.canonicalForm()
	if err != nil {
		return false
	}
	digest := sha256.Sum256(payload)
	signature, err := hex.DecodeString(credential.Proof.SignatureValue)
	if err != nil {
		return false
	}
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}
	return rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, opts) == nil
}

// VerifyByID resolves the credential and verifies it, see Verify.
func (s *Service) VerifyByID(credentialID string, expectedRecipient string) bool {
	credential, err := s.store.Get(credentialID)
	if err != nil {
		return false
	}
	return s.Verify(credential, expectedRecipient)
}

// Revoke withdraws a consent. Only the original subject may revoke and the
// flip is irreversible. Credentials stay in the store for audit.
func (s *Service) Revoke(credentialID string, requestingSubject string) bool {
	credential, err := s.store.Get(credentialID)
	if err != nil {
		return false
	}
	if credential.CredentialSubject.ID != requestingSubject {
		logger.Logger().Warnf("revoke of %s denied for %s: not the subject", credentialID, requestingSubject)
		return false
	}
	if err := s.store.CompareAndSwapRevoked(credentialID, TimeNow()); err != nil {
		return false
	}
	return true
}

// Get returns the stored credential.
func (s *Service) Get(credentialID string) (*Credential, error) {
	return s.store.Get(credentialID)
}

// ActiveForSubject lists non-revoked, non-expired credentials of a subject.
func (s *Service) ActiveForSubject(subjectDID string) []*Credential {
	now := TimeNow()
	var out []*Credential
	for _, credential := range s.store.All() {
		if credential.CredentialSubject.ID != subjectDID {
			continue
		}
		if credential.Revoked || !now.Before(credential.ExpirationDate) {
			continue
		}
		out = append(out, credential)
	}
	return out
}

// VerificationKeyAsJWK publishes the issuer's verification key.
func (s *Service) VerificationKeyAsJWK() ([]byte, error) {
	key, err := jwk.New(&s.signingKey.PublicKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(key)
}

// AddTrustedIssuer registers another issuer's verification key from its JWK
// representation.
func (s *Service) AddTrustedIssuer(issuerDID string, jwkJSON []byte) error {
	set, err := jwk.ParseBytes(jwkJSON)
	if err != nil {
		return fmt.Errorf("could not parse issuer key: %w", err)
	}
	if len(set.Keys) == 0 {
		return fmt.Errorf("issuer key set for %s is empty", issuerDID)
	}
	raw, err := set.Keys[0].Materialize()
	if err != nil {
		return fmt.Errorf("could not materialize issuer key: %w", err)
	}
	publicKey, ok := raw.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("issuer key for %s is not an RSA public key", issuerDID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted[issuerDID] = publicKey
	return nil
}

func (s *Service) trustedKey(issuerDID string) *rsa.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trusted[issuerDID]
}

func (s *Service) sign(credential Credential) (*Proof, error) {
	payload, err := credential.canonicalForm()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}
	signature, err := rsa.SignPSS(rand.Reader, s.signingKey, crypto.SHA256, digest[:], opts)
	if err != nil {
		return nil, err
	}
	return &Proof{
		Type:               proofType,
		Created:            TimeNow().Format(time.RFC3339),
		VerificationMethod: fmt.Sprintf("%s#key-1", s.issuerDID),
		ProofPurpose:       proofPurpose,
		SignatureValue:     hex.EncodeToString(signature),
	}, nil
}
