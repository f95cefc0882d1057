package record_utils

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

type MockBundleBuilder struct{}

func (m MockBundleBuilder) BuildBundle(data BundleData) ([]byte, error) {
	bundle := MockBundleRecord{
		id:        data.BundleID,
		subject:   data.SubjectID,
		consentID: data.ConsentID,
		dataTypes: data.DataTypes,
		timestamp: data.Start,
	}
	return bundle.Payload(), nil
}

func (m MockBundleBuilder) VerifyBundle(bytes []byte) (bool, error) {
	return true, nil
}

func (m MockBundleBuilder) BundleFromBytes(bytes []byte) (BundleRecord, error) {
	bundle := &MockBundleRecord{}
	json.Unmarshal(bytes, bundle)
	return *bundle, nil
}

type MockBundleRecord struct {
	id        string
	subject   string
	consentID string
	dataTypes []string
	timestamp time.Time
}

func (m *MockBundleRecord) UnmarshalJSON(bytes []byte) error {
	s := &struct {
		Id        string
		Subject   string
		ConsentID string
		DataTypes []string
		Timestamp time.Time
	}{}
	if err := json.Unmarshal(bytes, s); err != nil {
		return err
	}
	m.id = s.Id
	m.subject = s.Subject
	m.consentID = s.ConsentID
	m.dataTypes = s.DataTypes
	m.timestamp = s.Timestamp

	return nil
}

func (m MockBundleRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Id        string
		Subject   string
		ConsentID string
		DataTypes []string
		Timestamp time.Time
	}{
		Id:        m.id,
		Subject:   m.subject,
		ConsentID: m.consentID,
		DataTypes: m.dataTypes,
		Timestamp: m.timestamp,
	})
}

func (m MockBundleRecord) ID() string {
	return m.id
}

func (m MockBundleRecord) Subject() string {
	return m.subject
}

func (m MockBundleRecord) ConsentID() string {
	return m.consentID
}

func (m MockBundleRecord) DataTypes() []string {
	return m.dataTypes
}

func (m MockBundleRecord) Timestamp() time.Time {
	return m.timestamp
}

func (m MockBundleRecord) Digest() string {
	return fmt.Sprintf("%x", sha256.Sum256(m.Payload()))
}

func (m MockBundleRecord) Payload() []byte {
	str, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return str
}
