package record_utils

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/thedevsaddam/gojsonq/v2"
)

// FhirBundleRecord reads bundle fields straight from the JSON payload.
type FhirBundleRecord struct {
	payload []byte
}

func (r FhirBundleRecord) ID() string {
	jsonq := gojsonq.New().FromString(string(r.payload))
	id, ok := jsonq.Copy().Find("id").(string)
	if ok {
		return id
	}
	return ""
}

func (r FhirBundleRecord) Subject() string {
	jsonq := gojsonq.New().FromString(string(r.payload))
	subject, ok := jsonq.Copy().Find("entry.[0].resource.subject.identifier.value").(string)
	if ok {
		return subject
	}
	return ""
}

func (r FhirBundleRecord) ConsentID() string {
	jsonq := gojsonq.New().FromString(string(r.payload))
	consentID, ok := jsonq.Copy().Find("meta.tag.[0].code").(string)
	if ok {
		return consentID
	}
	return ""
}

func (r FhirBundleRecord) DataTypes() []string {
	jsonq := gojsonq.New().FromString(string(r.payload))
	entries, ok := jsonq.Copy().Find("entry").([]interface{})
	if !ok {
		return nil
	}
	var dataTypes []string
	for i := range entries {
		path := fmt.Sprintf("entry.[%d].resource.code.coding.[0].code", i)
		if code, ok := jsonq.Copy().Find(path).(string); ok {
			dataTypes = append(dataTypes, code)
		}
	}
	return dataTypes
}

func (r FhirBundleRecord) Timestamp() time.Time {
	jsonq := gojsonq.New().FromString(string(r.payload))
	raw, ok := jsonq.Copy().Find("timestamp").(string)
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func (r FhirBundleRecord) Digest() string {
	return fmt.Sprintf("%x", sha256.Sum256(r.payload))
}

func (r FhirBundleRecord) Payload() []byte {
	return r.payload
}
