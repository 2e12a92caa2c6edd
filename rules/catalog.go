package rules

import (
	"errors"
	"fmt"
)

// Category is the closed set of registration package kinds. Adding a
// category means adding a constant here and a Definition in the catalog
// below; Get refuses anything else.
type Category string

const (
	CategoryNewRegistration    Category = "new-registration"
	CategoryRegistrationUpdate Category = "registration-update"
	CategoryAggregatePartner   Category = "aggregate-partner"
	CategoryEquipmentOnly      Category = "equipment-only"
)

// DocumentType enumerates the accepted upload kinds.
type DocumentType string

const (
	DocVehicleRegistration DocumentType = "vehicle-registration"
	DocDriverLicense       DocumentType = "driver-license"
	DocInsuranceCert       DocumentType = "insurance-certificate"
	DocPartnerContract     DocumentType = "partner-contract"
	DocTaxClearance        DocumentType = "tax-clearance"
	DocEquipmentInventory  DocumentType = "equipment-inventory"
	// DocOther is the catch-all type; uploads of this type carry a free-text
	// description instead of a fixed meaning.
	DocOther DocumentType = "other"
)

// ErrUnknownCategory is returned for any category outside the closed set.
var ErrUnknownCategory = errors.New("unknown category")

// Definition holds the completeness rules for one category. Immutable at
// runtime; the catalog is populated once below and never mutated, so it is
// safe for concurrent lookups without synchronization.
type Definition struct {
	RequiredFields []string
	OptionalFields []string
	// RequiredDocuments maps a document type to the minimum number of
	// uploads of that type. Absent from the map = not required.
	RequiredDocuments map[DocumentType]int
	OptionalDocuments []DocumentType
	// TrackingThreshold, when set, raises the tracking requirement flag for
	// submissions whose declared cargo value meets or exceeds it. It never
	// blocks creation on its own.
	TrackingThreshold *float64
}

func threshold(v float64) *float64 { return &v }

var catalog = map[Category]Definition{
	CategoryNewRegistration: {
		RequiredFields: []string{"operator_name", "national_id", "vehicle_plate", "vehicle_model", "contact_phone"},
		OptionalFields: []string{"contact_email", "notes"},
		RequiredDocuments: map[DocumentType]int{
			DocVehicleRegistration: 3,
			DocDriverLicense:       1,
			DocInsuranceCert:       1,
		},
		OptionalDocuments: []DocumentType{DocTaxClearance, DocOther},
		TrackingThreshold: threshold(500000),
	},
	CategoryRegistrationUpdate: {
		RequiredFields: []string{"operator_name", "vehicle_plate", "change_summary"},
		OptionalFields: []string{"contact_phone", "contact_email", "notes"},
		RequiredDocuments: map[DocumentType]int{
			DocVehicleRegistration: 1,
		},
		OptionalDocuments: []DocumentType{DocDriverLicense, DocInsuranceCert, DocOther},
		TrackingThreshold: threshold(500000),
	},
	CategoryAggregatePartner: {
		RequiredFields: []string{"partner_name", "tax_id", "fleet_size", "contact_phone"},
		OptionalFields: []string{"contact_email", "billing_address", "notes"},
		RequiredDocuments: map[DocumentType]int{
			DocPartnerContract:     1,
			DocTaxClearance:        1,
			DocVehicleRegistration: 1,
		},
		OptionalDocuments: []DocumentType{DocInsuranceCert, DocOther},
		TrackingThreshold: threshold(1000000),
	},
	CategoryEquipmentOnly: {
		RequiredFields: []string{"owner_name", "equipment_serial", "contact_phone"},
		OptionalFields: []string{"contact_email", "notes"},
		RequiredDocuments: map[DocumentType]int{
			DocEquipmentInventory: 2,
		},
		OptionalDocuments: []DocumentType{DocInsuranceCert, DocOther},
	},
}

// Get returns the completeness rules for a category.
func Get(c Category) (Definition, error) {
	def, ok := catalog[c]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return def, nil
}

// IsValid reports whether c is one of the known categories.
func IsValid(c Category) bool {
	_, ok := catalog[c]
	return ok
}

// Categories lists the known categories in a fixed order.
func Categories() []Category {
	return []Category{
		CategoryNewRegistration,
		CategoryRegistrationUpdate,
		CategoryAggregatePartner,
		CategoryEquipmentOnly,
	}
}

// DocumentTypes lists the accepted document types in a fixed order.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocVehicleRegistration,
		DocDriverLicense,
		DocInsuranceCert,
		DocPartnerContract,
		DocTaxClearance,
		DocEquipmentInventory,
		DocOther,
	}
}

// IsValidDocumentType reports whether t is an accepted document type.
func IsValidDocumentType(t DocumentType) bool {
	for _, known := range DocumentTypes() {
		if t == known {
			return true
		}
	}
	return false
}
