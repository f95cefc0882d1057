package record_utils

import (
	"time"
)

// BundleData holds everything needed to assemble a deliverable data bundle
// for a settled transaction.
type BundleData struct {
	BundleID  string
	SubjectID string
	ConsentID string
	DataTypes []string
	Start     time.Time
	End       time.Time
}

// BundleBuilder assembles the deliverable content blob for a data
// transaction. A bundle can be represented in a known domain format like
// FHIR, or just plain JSON. The digest of the built bundle is what the
// escrow condition commits to.
type BundleBuilder interface {
	BuildBundle(data BundleData) ([]byte, error)
	VerifyBundle([]byte) (bool, error)
	BundleFromBytes([]byte) (BundleRecord, error)
}

// BundleRecord is the read side of a built bundle.
type BundleRecord interface {
	ID() string
	Subject() string
	ConsentID() string
	DataTypes() []string
	Timestamp() time.Time
	Digest() string
	Payload() []byte
}
