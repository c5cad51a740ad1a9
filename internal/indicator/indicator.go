// Package indicator defines the threat-intelligence record model returned by
// the ThreatConnect indicator API.
package indicator

import (
	"encoding/json"
	"time"
)

// Indicator is one threat-intelligence observation. Values are immutable once
// decoded; a new search replaces them wholesale.
type Indicator struct {
	ID                   int64         `json:"id"`
	Type                 string        `json:"type"`
	Summary              string        `json:"summary"`
	Rating               float64       `json:"rating"`
	Confidence           int           `json:"confidence"`
	DateAdded            time.Time     `json:"dateAdded"`
	LastModified         time.Time     `json:"lastModified"`
	OwnerName            string        `json:"ownerName"`
	OwnerID              int64         `json:"ownerId"`
	WebLink              string        `json:"webLink,omitempty"`
	Description          string        `json:"description,omitempty"`
	Source               string        `json:"source,omitempty"`
	Active               bool          `json:"active"`
	FalsePositiveFlag    bool          `json:"falsePositiveFlag"`
	Tags                 []Tag         `json:"tags,omitempty"`
	Attributes           []Attribute   `json:"attributes,omitempty"`
	AssociatedGroups     []Association `json:"associatedGroups,omitempty"`
	AssociatedIndicators []Association `json:"associatedIndicators,omitempty"`
}

// Tag is a label attached to an indicator.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Attribute is a typed key/value annotation on an indicator.
type Attribute struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	Value        string    `json:"value"`
	DateAdded    time.Time `json:"dateAdded"`
	LastModified time.Time `json:"lastModified"`
}

// Association is a lightweight reference to a related group or indicator.
type Association struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	ObjectType string `json:"objectType,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ListResponse is the API envelope for list endpoints. Only Data is consumed.
type ListResponse[T any] struct {
	Data   []T    `json:"data"`
	Status string `json:"status,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// wireIndicator mirrors Indicator with the fields whose wire form differs:
// active is optional (absent means true) and nested collections may arrive
// either bare or wrapped in {"data": [...]}.
type wireIndicator struct {
	ID                   int64                   `json:"id"`
	Type                 string                  `json:"type"`
	Summary              string                  `json:"summary"`
	Rating               float64                 `json:"rating"`
	Confidence           int                     `json:"confidence"`
	DateAdded            time.Time               `json:"dateAdded"`
	LastModified         time.Time               `json:"lastModified"`
	OwnerName            string                  `json:"ownerName"`
	OwnerID              int64                   `json:"ownerId"`
	WebLink              string                  `json:"webLink"`
	Description          string                  `json:"description"`
	Source               string                  `json:"source"`
	Active               *bool                   `json:"active"`
	FalsePositiveFlag    bool                    `json:"falsePositiveFlag"`
	Tags                 collection[Tag]         `json:"tags"`
	Attributes           collection[Attribute]   `json:"attributes"`
	AssociatedGroups     collection[Association] `json:"associatedGroups"`
	AssociatedIndicators collection[Association] `json:"associatedIndicators"`
}

// UnmarshalJSON decodes an indicator, filling wire defaults.
func (i *Indicator) UnmarshalJSON(b []byte) error {
	var w wireIndicator
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	active := true
	if w.Active != nil {
		active = *w.Active
	}

	*i = Indicator{
		ID:                   w.ID,
		Type:                 w.Type,
		Summary:              w.Summary,
		Rating:               w.Rating,
		Confidence:           w.Confidence,
		DateAdded:            w.DateAdded.UTC(),
		LastModified:         w.LastModified.UTC(),
		OwnerName:            w.OwnerName,
		OwnerID:              w.OwnerID,
		WebLink:              w.WebLink,
		Description:          w.Description,
		Source:               w.Source,
		Active:               active,
		FalsePositiveFlag:    w.FalsePositiveFlag,
		Tags:                 w.Tags,
		Attributes:           w.Attributes,
		AssociatedGroups:     w.AssociatedGroups,
		AssociatedIndicators: w.AssociatedIndicators,
	}
	return nil
}

// collection accepts `[...]`, `{"data": [...]}` and null.
type collection[T any] []T

func (c *collection[T]) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*c = nil
		return nil
	}
	if b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*c = items
		return nil
	}
	var wrapped struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	*c = wrapped.Data
	return nil
}

// IDs returns the ids of the given indicators in order.
func IDs(in []Indicator) []int64 {
	out := make([]int64, len(in))
	for i := range in {
		out[i] = in[i].ID
	}
	return out
}
