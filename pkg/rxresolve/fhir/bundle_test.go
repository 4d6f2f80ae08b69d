package fhir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const syntheaBundle = `{
  "resourceType": "Bundle",
  "type": "transaction",
  "entry": [
    {"fullUrl": "urn:uuid:p1", "resource": {"resourceType": "Patient", "id": "p1", "gender": "female", "birthDate": "1984-03-02"}},
    {"resource": {"resourceType": "MedicationRequest", "status": "active",
      "medicationCodeableConcept": {"coding": [{"system": "http://www.nlm.nih.gov/research/umls/rxnorm", "code": "389221", "display": "Etonogestrel 68 MG Drug Implant"}], "text": "Nexplanon 68 MG Drug Implant"}}},
    {"resource": {"resourceType": "Encounter", "id": "e1"}},
    {"resource": {"resourceType": "Medication", "code": {"coding": [{"display": "Acetaminophen 325 MG Oral Tablet"}]}}},
    {"resource": {"resourceType": "MedicationStatement",
      "medicationCodeableConcept": {"coding": [{"display": "Ibuprofen 200 MG Oral Tablet"}, {"display": "ignored second coding"}]}}},
    {"resource": {"resourceType": "MedicationRequest", "medicationReference": {"reference": "urn:uuid:m1"}}},
    {"resource": {"resourceType": "Medication", "code": {"text": "", "coding": []}}}
  ]
}`

func TestParseTypedEntries(t *testing.T) {
	b, err := Parse([]byte(syntheaBundle))
	require.NoError(t, err)
	require.Len(t, b.Entry, 7)

	assert.Equal(t, "Bundle", b.ResourceType)
	assert.IsType(t, &Patient{}, b.Entry[0].Resource)
	assert.IsType(t, &MedicationRequest{}, b.Entry[1].Resource)
	assert.Equal(t, "Encounter", b.Entry[2].Resource.Kind())
	assert.IsType(t, &Medication{}, b.Entry[3].Resource)
	assert.IsType(t, &MedicationStatement{}, b.Entry[4].Resource)
	assert.Equal(t, "urn:uuid:p1", b.Entry[0].FullURL)
}

func TestExtractMedicationsOrderAndFallback(t *testing.T) {
	b, err := Parse([]byte(syntheaBundle))
	require.NoError(t, err)

	meds := ExtractMedications(b)
	assert.Equal(t, []string{
		"Acetaminophen 325 MG Oral Tablet",
		"Nexplanon 68 MG Drug Implant",
		"Ibuprofen 200 MG Oral Tablet",
	}, meds)
}

func TestCodeableConceptDisplay(t *testing.T) {
	tests := []struct {
		name    string
		concept *CodeableConcept
		want    string
		ok      bool
	}{
		{"nil", nil, "", false},
		{"text wins", &CodeableConcept{Text: "Aleve", Coding: []Coding{{Display: "Naproxen"}}}, "Aleve", true},
		{"first coding", &CodeableConcept{Coding: []Coding{{Display: "Naproxen"}, {Display: "Other"}}}, "Naproxen", true},
		{"first coding blank", &CodeableConcept{Coding: []Coding{{Code: "1"}, {Display: "Other"}}}, "", false},
		{"empty", &CodeableConcept{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.concept.Display()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseBundleWithoutEntries(t *testing.T) {
	b, err := Parse([]byte(`{"resourceType":"Bundle"}`))
	require.NoError(t, err)
	assert.Empty(t, ExtractMedications(b))
	assert.Nil(t, ExtractMedications(nil))
}

func TestParseNullResource(t *testing.T) {
	b, err := Parse([]byte(`{"entry":[{"resource":null},{}]}`))
	require.NoError(t, err)
	require.Len(t, b.Entry, 2)
	assert.Nil(t, b.Entry[0].Resource)
	assert.Empty(t, ExtractMedications(b))
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"entry": [`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"entry": "not-a-list"}`))
	assert.Error(t, err)
}

func TestParseBadResourceKeepsOtherEntries(t *testing.T) {
	b, err := Parse([]byte(`{"resourceType": "Bundle", "entry": [
		{"resource": {"resourceType": "Patient", "birthDate": 19800101}},
		{"resource": {"resourceType": "Medication", "code": "not-an-object"}},
		{"resource": {"resourceType": "MedicationRequest", "medicationCodeableConcept": {"text": "Nexplanon 68 MG Drug Implant"}}}
	]}`))
	require.NoError(t, err)
	require.Len(t, b.Entry, 3)

	assert.Equal(t, &Other{Type: KindPatient}, b.Entry[0].Resource)
	assert.Equal(t, &Other{Type: KindMedication}, b.Entry[1].Resource)
	assert.Equal(t, []string{"Nexplanon 68 MG Drug Implant"}, ExtractMedications(b))

	_, ok := FindPatient(b)
	assert.False(t, ok)
}

func TestParseNonObjectEntriesSkipped(t *testing.T) {
	b, err := Parse([]byte(`{"entry": [
		"stray",
		{"fullUrl": "urn:uuid:1", "resource": "text"},
		{"resource": [1, 2]},
		{"resource": {"resourceType": "MedicationStatement", "medicationCodeableConcept": {"coding": [{"display": "Aleve 220 MG Oral Tablet"}]}}}
	]}`))
	require.NoError(t, err)
	require.Len(t, b.Entry, 4)

	assert.Nil(t, b.Entry[0].Resource)
	assert.Nil(t, b.Entry[1].Resource)
	assert.Equal(t, "urn:uuid:1", b.Entry[1].FullURL)
	assert.Nil(t, b.Entry[2].Resource)
	assert.Equal(t, []string{"Aleve 220 MG Oral Tablet"}, ExtractMedications(b))
}

func TestFindPatient(t *testing.T) {
	b, err := Parse([]byte(syntheaBundle))
	require.NoError(t, err)

	p, ok := FindPatient(b)
	require.True(t, ok)
	assert.Equal(t, "female", p.Gender)
	assert.Equal(t, "1984-03-02", p.BirthDate)

	_, ok = FindPatient(&Bundle{})
	assert.False(t, ok)
}
