package ledger

import (
	"encoding/json"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// ReferenceType names the kind of business event a movement belongs to.
type ReferenceType string

const (
	RefSale       ReferenceType = "sale"
	RefReturn     ReferenceType = "return"
	RefPurchase   ReferenceType = "purchase"
	RefTransfer   ReferenceType = "transfer"
	RefAdjustment ReferenceType = "adjustment"
)

// Valid reports whether t is a known reference type.
func (t ReferenceType) Valid() bool {
	switch t {
	case RefSale, RefReturn, RefPurchase, RefTransfer, RefAdjustment:
		return true
	}
	return false
}

// Reference points a movement at the business event that caused it.
// The zero value is "no reference" and is rejected by the recorder.
type Reference struct {
	kind ReferenceType
	id   id.ID
}

func SaleRef(saleID id.ID) Reference         { return Reference{kind: RefSale, id: saleID} }
func ReturnRef(returnID id.ID) Reference     { return Reference{kind: RefReturn, id: returnID} }
func PurchaseRef(purchaseID id.ID) Reference { return Reference{kind: RefPurchase, id: purchaseID} }
func TransferRef(transferID id.ID) Reference { return Reference{kind: RefTransfer, id: transferID} }
func AdjustmentRef(adjID id.ID) Reference    { return Reference{kind: RefAdjustment, id: adjID} }

// ParseReference rebuilds a Reference from its stored columns.
func ParseReference(kind string, refID id.ID) (Reference, error) {
	t := ReferenceType(kind)
	if !t.Valid() {
		return Reference{}, apperror.NewValidation("unknown reference type").
			WithDetail("field", "referenceType").
			WithDetail("value", kind)
	}
	if id.IsNil(refID) {
		return Reference{}, apperror.NewValidation("reference id is required").
			WithDetail("field", "referenceId")
	}
	return Reference{kind: t, id: refID}, nil
}

// Type returns the reference kind.
func (r Reference) Type() ReferenceType { return r.kind }

// ID returns the referenced entity ID.
func (r Reference) ID() id.ID { return r.id }

// IsZero reports whether r carries no reference.
func (r Reference) IsZero() bool { return r.kind == "" }

func (r Reference) String() string {
	if r.IsZero() {
		return ""
	}
	return string(r.kind) + ":" + r.id.String()
}

type referenceJSON struct {
	Type ReferenceType `json:"type"`
	ID   id.ID         `json:"id"`
}

func (r Reference) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(referenceJSON{Type: r.kind, ID: r.id})
}

func (r *Reference) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Reference{}
		return nil
	}
	var raw referenceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ref, err := ParseReference(string(raw.Type), raw.ID)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
