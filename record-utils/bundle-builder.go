package record_utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/thedevsaddam/gojsonq/v2"
)

// FhirBundleBuilder renders data bundles as FHIR collection Bundles.
type FhirBundleBuilder struct{}

func (b FhirBundleBuilder) BuildBundle(data BundleData) ([]byte, error) {
	if data.BundleID == "" || data.SubjectID == "" || data.ConsentID == "" {
		return nil, fmt.Errorf("bundle requires id, subject and consent reference")
	}
	if len(data.DataTypes) == 0 {
		return nil, fmt.Errorf("bundle requires at least one data type")
	}

	entries := make([]map[string]string, len(data.DataTypes))
	for i, dataType := range data.DataTypes {
		entries[i] = map[string]string{
			"code":    dataType,
			"subject": data.SubjectID,
			"start":   data.Start.Format(time.RFC3339),
		}
		if !data.End.IsZero() {
			entries[i]["end"] = data.End.Format(time.RFC3339)
		}
	}
	viewModel := map[string]interface{}{
		"bundleId":  data.BundleID,
		"consentId": data.ConsentID,
		"timestamp": data.Start.Format(time.RFC3339),
		"entries":   entries,
	}

	res, err := mustache.Render(template, viewModel)
	if err != nil {
		return nil, err
	}

	// filter the last comma out of [{},{},] since mustache templates cannot handle this:
	// https://stackoverflow.com/questions/6114435/in-mustache-templating-is-there-an-elegant-way-of-expressing-a-comma-separated-l
	re := regexp.MustCompile(`\},(\s*)]`)
	res = re.ReplaceAllString(res, `}$1]`)

	return cleanupJSON(res)
}

func (b FhirBundleBuilder) VerifyBundle(payload []byte) (bool, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return false, err
	}
	if parsed["resourceType"] != "Bundle" {
		return false, fmt.Errorf("payload is not a Bundle resource")
	}
	jsonq := gojsonq.New().FromString(string(payload))
	if _, ok := jsonq.Copy().Find("id").(string); !ok {
		return false, fmt.Errorf("bundle is missing its identifier")
	}
	if _, ok := jsonq.Copy().Find("meta.tag.[0].code").(string); !ok {
		return false, fmt.Errorf("bundle is missing its consent reference")
	}
	return true, nil
}

func (b FhirBundleBuilder) BundleFromBytes(payload []byte) (BundleRecord, error) {
	if ok, err := b.VerifyBundle(payload); !ok {
		return nil, err
	}
	return FhirBundleRecord{payload: payload}, nil
}

// cleanupJSON re-marshals the rendered template so the stored payload, and
// therefore its digest, does not depend on template whitespace.
func cleanupJSON(value string) ([]byte, error) {
	var parsedValue interface{}
	if err := json.Unmarshal([]byte(value), &parsedValue); err != nil {
		return nil, err
	}
	return json.Marshal(parsedValue)
}
