package transaction

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	FieldType        = "type"
	FieldAmount      = "amount"
	FieldCategory    = "category"
	FieldDescription = "description"
	FieldTimestamp   = "timestamp"
)

// writable fields in the order they are reported back to clients
var fieldNames = []string{FieldType, FieldAmount, FieldCategory, FieldDescription, FieldTimestamp}

// Fields holds the writable attributes of a transaction as sent by a client.
// A nil pointer means the field was absent, explicitly null or of the wrong JSON type;
// Has and the Validate methods tell these apart for bodies read by DecodeFields.
type Fields struct {
	Type        *Kind
	Amount      *decimal.Decimal
	Category    *string
	Description *string
	Timestamp   *time.Time

	// keys present in the decoded body, explicit nulls included
	present map[string]bool
	// keys whose value could not be decoded
	malformed map[string]bool
}

// DecodeFields reads a JSON object into Fields. Unknown keys are ignored.
// A body that is not a JSON object yields ErrInvalidJSON. Values of the wrong
// type are kept aside and reported as invalid by ValidateCreate and ValidateUpdate.
func DecodeFields(body []byte) (Fields, error) {
	f := Fields{present: make(map[string]bool), malformed: make(map[string]bool)}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return f, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return Fields{}, ErrInvalidJSON
	}

	for _, name := range fieldNames {
		value, ok := raw[name]
		if !ok {
			continue
		}
		f.present[name] = true
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}

		if err := f.decode(name, value); err != nil {
			f.malformed[name] = true
		}
	}

	return f, nil
}

func (f *Fields) decode(name string, value json.RawMessage) error {
	switch name {
	case FieldType:
		var v Kind
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		f.Type = &v
	case FieldAmount:
		var v decimal.Decimal
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		f.Amount = &v
	case FieldCategory:
		var v string
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		f.Category = &v
	case FieldDescription:
		var v string
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		f.Description = &v
	case FieldTimestamp:
		var v time.Time
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		f.Timestamp = &v
	}
	return nil
}

// Has reports whether the named field was supplied, even as null.
func (f Fields) Has(name string) bool {
	if f.present[name] {
		return true
	}
	switch name {
	case FieldType:
		return f.Type != nil
	case FieldAmount:
		return f.Amount != nil
	case FieldCategory:
		return f.Category != nil
	case FieldDescription:
		return f.Description != nil
	case FieldTimestamp:
		return f.Timestamp != nil
	}
	return false
}

// Empty reports whether no writable field was supplied.
func (f Fields) Empty() bool {
	for _, name := range fieldNames {
		if f.Has(name) {
			return false
		}
	}
	return true
}

// ValidateCreate checks the fields form a complete new transaction
func (f Fields) ValidateCreate() error {
	verr := &ValidationError{}

	switch {
	case f.malformed[FieldType]:
		verr.Invalid = append(verr.Invalid, FieldType)
	case f.Type == nil || *f.Type == "":
		verr.Missing = append(verr.Missing, FieldType)
	case !f.Type.Valid():
		verr.Invalid = append(verr.Invalid, FieldType)
	}
	switch {
	case f.malformed[FieldAmount]:
		verr.Invalid = append(verr.Invalid, FieldAmount)
	case f.Amount == nil:
		verr.Missing = append(verr.Missing, FieldAmount)
	}
	switch {
	case f.malformed[FieldCategory]:
		verr.Invalid = append(verr.Invalid, FieldCategory)
	case f.Category == nil || *f.Category == "":
		verr.Missing = append(verr.Missing, FieldCategory)
	}
	f.checkOptional(verr)

	return finish(verr, "Invalid transaction data")
}

// ValidateUpdate checks that applying the supplied fields to a valid transaction
// leaves it valid. Absent fields are not checked.
func (f Fields) ValidateUpdate() error {
	verr := &ValidationError{}

	if f.Has(FieldType) {
		switch {
		case f.malformed[FieldType]:
			verr.Invalid = append(verr.Invalid, FieldType)
		case f.Type == nil || *f.Type == "":
			verr.Missing = append(verr.Missing, FieldType)
		case !f.Type.Valid():
			verr.Invalid = append(verr.Invalid, FieldType)
		}
	}
	if f.Has(FieldAmount) {
		switch {
		case f.malformed[FieldAmount]:
			verr.Invalid = append(verr.Invalid, FieldAmount)
		case f.Amount == nil:
			verr.Missing = append(verr.Missing, FieldAmount)
		}
	}
	if f.Has(FieldCategory) {
		switch {
		case f.malformed[FieldCategory]:
			verr.Invalid = append(verr.Invalid, FieldCategory)
		case f.Category == nil || *f.Category == "":
			verr.Missing = append(verr.Missing, FieldCategory)
		}
	}
	if f.Has(FieldTimestamp) && f.Timestamp == nil && !f.malformed[FieldTimestamp] {
		verr.Invalid = append(verr.Invalid, FieldTimestamp)
	}
	f.checkOptional(verr)

	return finish(verr, "Invalid update data")
}

// checkOptional flags description and timestamp values of the wrong type
func (f Fields) checkOptional(verr *ValidationError) {
	for _, name := range []string{FieldDescription, FieldTimestamp} {
		if f.malformed[name] {
			verr.Invalid = append(verr.Invalid, name)
		}
	}
}

func finish(verr *ValidationError, invalidMsg string) error {
	if verr.empty() {
		return nil
	}
	if len(verr.Missing) > 0 {
		verr.Message = "Missing required fields"
	} else {
		verr.Message = invalidMsg
	}
	return verr
}

// Transaction builds a new, not yet stored, transaction from validated create fields.
// A zero Timestamp is left for the store to fill in.
func (f Fields) Transaction() *Transaction {
	t := &Transaction{}
	f.Apply(t)
	return t
}

// Apply copies every supplied field onto t. An explicit null description clears it.
func (f Fields) Apply(t *Transaction) {
	if f.Type != nil {
		t.Type = *f.Type
	}
	if f.Amount != nil {
		t.Amount = *f.Amount
	}
	if f.Category != nil {
		t.Category = *f.Category
	}
	if f.Description != nil {
		t.Description = *f.Description
	} else if f.Has(FieldDescription) {
		t.Description = ""
	}
	if f.Timestamp != nil {
		t.Timestamp = *f.Timestamp
	}
}
