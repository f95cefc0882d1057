package record_utils

const template = `
{
  "resourceType": "Bundle",
  "id": "{{bundleId}}",
  "type": "collection",
  "timestamp": "{{timestamp}}",
  "meta": {
    "lastUpdated": "{{timestamp}}",
    "tag": [
      {
        "system": "urn:sportique:consent",
        "code": "{{consentId}}"
      }
    ]
  },
  "entry": [
    {{#entries}}
    {
      "resource": {
        "resourceType": "Observation",
        "status": "final",
        "code": {
          "coding": [
            {
              "system": "urn:sportique:datatype",
              "code": "{{code}}"
            }
          ]
        },
        "subject": {
          "identifier": {
            "system": "urn:sportique:subject",
            "value": "{{subject}}"
          }
        },
        "effectivePeriod": {
          "start": "{{start}}"{{#end}},
          "end": "{{end}}"{{/end}}
        }
      }
    },
    {{/entries}}
  ]
}
`
