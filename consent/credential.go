package consent

import (
	"encoding/json"
	"time"
)

// Context identifiers and type tags for issued consent credentials.
var DefaultContexts = []string{
	"https://www.w3.org/2018/credentials/v1",
	"https://www.w3.org/2018/credentials/examples/v1",
	"https://sportique.health/contexts/consent/v1",
}

var DefaultTypes = []string{"VerifiableCredential", "HealthDataConsentCredential"}

// Scope bounds what a consent covers.
type Scope struct {
	DataTypes         []string `json:"dataTypes"`
	CollectionPeriod  string   `json:"collectionPeriod"`
	UsagePurpose      string   `json:"purpose"`
	ThirdPartySharing bool     `json:"thirdPartySharing"`
	RetentionPeriod   string   `json:"retentionPeriod"`
}

// Terms are the conditions a subject agrees to when consenting.
type Terms struct {
	Recipient       string
	Scope           Scope
	Compensation    float64
	Currency        string
	ValidUntil      time.Time
	WithdrawalRight bool
}

// Compensation is the payment promised for the consented data.
type Compensation struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// SubjectClaims is the credentialSubject block of a consent credential.
type SubjectClaims struct {
	ID           string       `json:"id"`
	ConsentGiven bool         `json:"consentGiven"`
	Terms        ClaimedTerms `json:"consentTerms"`
	ConsentDate  string       `json:"consentDate"`
	ValidUntil   string       `json:"validUntil"`
}

// ClaimedTerms mirrors Terms in the credential's wire form.
type ClaimedTerms struct {
	Recipient         string       `json:"recipient"`
	Purpose           string       `json:"purpose"`
	DataTypes         []string     `json:"dataTypes"`
	CollectionPeriod  string       `json:"collectionPeriod"`
	RetentionPeriod   string       `json:"retentionPeriod"`
	ThirdPartySharing bool         `json:"thirdPartySharing"`
	Compensation      Compensation `json:"compensation"`
	WithdrawalRight   bool         `json:"withdrawalRight"`
}

// Proof is the signature block over the credential's canonical form.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	SignatureValue     string `json:"signatureValue"`
}

// Credential is a signed, time-boxed consent claim. Revocation state lives
// outside the signed payload: flipping it must not disturb the proof, the
// verifier checks the flag before the signature.
type Credential struct {
	Context           []string      `json:"@context"`
	ID                string        `json:"id"`
	Type              []string      `json:"type"`
	Issuer            string        `json:"issuer"`
	IssuanceDate      time.Time     `json:"issuanceDate"`
	ExpirationDate    time.Time     `json:"expirationDate"`
	CredentialSubject SubjectClaims `json:"credentialSubject"`
	Proof             *Proof        `json:"proof,omitempty"`

	Revoked   bool       `json:"-"`
	RevokedAt *time.Time `json:"-"`
}

// canonicalForm serializes the credential deterministically: stable key
// ordering, no whitespace, proof excluded. Signatures are computed over this
// form so issuer and verifier agree on the digest input.
func (c Credential) canonicalForm() ([]byte, error) {
	subject, err := toSortedMap(c.CredentialSubject)
	if err != nil {
		return nil, err
	}
	form := map[string]interface{}{
		"@context":          c.Context,
		"id":                c.ID,
		"type":              c.Type,
		"issuer":            c.Issuer,
		"issuanceDate":      c.IssuanceDate.UTC().Format(time.RFC3339),
		"expirationDate":    c.ExpirationDate.UTC().Format(time.RFC3339),
		"credentialSubject": subject,
	}
	// encoding/json writes map keys in sorted order without indentation,
	// which is exactly the canonical form.
	return json.Marshal(form)
}

func toSortedMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
