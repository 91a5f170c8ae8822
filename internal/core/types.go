package core

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CatalogItem is a purchasable item as listed by the order service
type CatalogItem struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
}

// UnmarshalJSON accepts both the document id ("_id") and a plain "id"
func (i *CatalogItem) UnmarshalJSON(data []byte) error {
	type plain CatalogItem
	var aux struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = CatalogItem(aux.plain)
	if i.ID == "" {
		i.ID = aux.AltID
	}
	return nil
}

// Token is an opaque session credential. It redacts itself when printed
// so it never ends up in logs.
type Token string

func (t Token) String() string {
	if t == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString ensures tokens are redacted when using %#v format
func (t Token) GoString() string {
	if t == "" {
		return `""`
	}
	return `"[REDACTED]"`
}

// MarshalJSON ensures tokens are redacted when marshaled to JSON
func (t Token) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// Value returns the raw credential for use on the wire
func (t Token) Value() string {
	return string(t)
}

// CartSnapshot is a point-in-time copy of the cart published to observers
type CartSnapshot struct {
	Items map[string]int  `json:"items"`
	Total decimal.Decimal `json:"total"`
}
