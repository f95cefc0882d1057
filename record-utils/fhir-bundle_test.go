package record_utils

import (
	"testing"
	"time"
)

func TestFhirBundleRecord(t *testing.T) {
	payload, err := FhirBundleBuilder{}.BuildBundle(testBundleData())
	if err != nil {
		t.Fatal(err)
	}
	sut := FhirBundleRecord{payload: payload}

	testcases := map[string]struct {
		exp string
		got func() string
	}{
		"parse the bundle id": {
			exp: "bundle_0001",
			got: func() string {
				return sut.ID()
			},
		},
		"parse the subject": {
			exp: "did:xrpl:subject123",
			got: func() string {
				return sut.Subject()
			},
		},
		"parse the consent reference": {
			exp: "urn:uuid:d7f6c1f0-0000-4000-8000-000000000001",
			got: func() string {
				return sut.ConsentID()
			},
		},
	}

	for name, testcase := range testcases {
		t.Run(name, func(t *testing.T) {
			exp := testcase.exp
			got := testcase.got()
			if got != exp {
				t.Fail()
				t.Logf("exp: %s, got: %s\n", exp, got)
			}
		})
	}

	t.Run("parse the data types", func(t *testing.T) {
		dataTypes := sut.DataTypes()
		if len(dataTypes) != 3 || dataTypes[0] != "heart_rate" || dataTypes[2] != "sleep" {
			t.Fail()
			t.Logf("unexpected data types: %v\n", dataTypes)
		}
	})

	t.Run("parse the timestamp", func(t *testing.T) {
		exp := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		if !sut.Timestamp().Equal(exp) {
			t.Fail()
			t.Logf("exp: %s, got: %s\n", exp, sut.Timestamp())
		}
	})

	t.Run("digest is stable", func(t *testing.T) {
		if sut.Digest() != sut.Digest() || len(sut.Digest()) != 64 {
			t.Fail()
		}
	})
}
