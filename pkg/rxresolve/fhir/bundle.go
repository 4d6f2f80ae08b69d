// Package fhir decodes the subset of FHIR bundles the resolver reads:
// medication resources and the patient header. Every other resource kind
// decodes to *Other so bundles of any shape parse.
package fhir

import (
	"encoding/json"
)

// Resource kinds recognized by the decoder.
const (
	KindMedication          = "Medication"
	KindMedicationRequest   = "MedicationRequest"
	KindMedicationStatement = "MedicationStatement"
	KindPatient             = "Patient"
)

// Bundle is a FHIR bundle with typed entries.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	Type         string  `json:"type,omitempty"`
	Entry        []Entry `json:"entry"`
}

// Entry wraps one resource of a bundle.
type Entry struct {
	FullURL  string
	Resource Resource
}

// Resource is implemented by every decoded resource kind.
type Resource interface {
	Kind() string
}

// Coding is a single code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a set of codings plus free text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Display returns the concept's human-readable name: the text field when
// set, otherwise the display of the first coding.
func (c *CodeableConcept) Display() (string, bool) {
	if c == nil {
		return "", false
	}
	if c.Text != "" {
		return c.Text, true
	}
	if len(c.Coding) > 0 && c.Coding[0].Display != "" {
		return c.Coding[0].Display, true
	}
	return "", false
}

// Medication is a referenced medication definition.
type Medication struct {
	ID   string           `json:"id,omitempty"`
	Code *CodeableConcept `json:"code,omitempty"`
}

func (*Medication) Kind() string { return KindMedication }

// MedicationRequest is an order for a medication.
type MedicationRequest struct {
	ID                        string           `json:"id,omitempty"`
	Status                    string           `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
}

func (*MedicationRequest) Kind() string { return KindMedicationRequest }

// MedicationStatement records a medication being taken.
type MedicationStatement struct {
	ID                        string           `json:"id,omitempty"`
	Status                    string           `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
}

func (*MedicationStatement) Kind() string { return KindMedicationStatement }

// Patient carries the demographic header of a record.
type Patient struct {
	ID        string `json:"id,omitempty"`
	Gender    string `json:"gender,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`
}

func (*Patient) Kind() string { return KindPatient }

// Other is any resource kind the decoder does not model.
type Other struct {
	Type string
}

func (o *Other) Kind() string { return o.Type }

// UnmarshalJSON decodes the resource by its resourceType discriminator.
// A malformed entry never fails the bundle: an entry or resource that is
// not a JSON object leaves Resource nil, and a known resource whose fields
// do not decode is kept as *Other.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		FullURL  string          `json:"fullUrl"`
		Resource json.RawMessage `json:"resource"`
	}
	*e = Entry{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	e.FullURL = raw.FullURL

	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if len(raw.Resource) == 0 || string(raw.Resource) == "null" || json.Unmarshal(raw.Resource, &head) != nil {
		return nil
	}

	var res Resource
	switch head.ResourceType {
	case KindMedication:
		res = &Medication{}
	case KindMedicationRequest:
		res = &MedicationRequest{}
	case KindMedicationStatement:
		res = &MedicationStatement{}
	case KindPatient:
		res = &Patient{}
	default:
		e.Resource = &Other{Type: head.ResourceType}
		return nil
	}
	if err := json.Unmarshal(raw.Resource, res); err != nil {
		e.Resource = &Other{Type: head.ResourceType}
		return nil
	}
	e.Resource = res
	return nil
}

// Parse decodes a bundle document.
func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ExtractMedications returns the medication display strings of a bundle.
//
// Medication resources come first, in entry order, followed by
// MedicationRequest and MedicationStatement entries. Each resource
// contributes at most one string: its concept text, falling back to the
// first coding's display.
func ExtractMedications(b *Bundle) []string {
	if b == nil {
		return nil
	}
	var meds []string
	for _, e := range b.Entry {
		if m, ok := e.Resource.(*Medication); ok {
			if name, ok := m.Code.Display(); ok {
				meds = append(meds, name)
			}
		}
	}
	for _, e := range b.Entry {
		var concept *CodeableConcept
		switch r := e.Resource.(type) {
		case *MedicationRequest:
			concept = r.MedicationCodeableConcept
		case *MedicationStatement:
			concept = r.MedicationCodeableConcept
		default:
			continue
		}
		if name, ok := concept.Display(); ok {
			meds = append(meds, name)
		}
	}
	return meds
}

// FindPatient returns the first Patient resource of a bundle.
func FindPatient(b *Bundle) (*Patient, bool) {
	if b == nil {
		return nil, false
	}
	for _, e := range b.Entry {
		if p, ok := e.Resource.(*Patient); ok {
			return p, true
		}
	}
	return nil, false
}
