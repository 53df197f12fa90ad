package model

import "strings"

// Item is a catalogue entry. ID is assigned by the store.
type Item struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Price       float64  `json:"price"`
	Tags        []string `json:"tags"`
}

// Clone returns a deep copy.
func (i Item) Clone() Item {
	i.Tags = cloneTags(i.Tags)
	if i.Description != nil {
		d := *i.Description
		i.Description = &d
	}
	return i
}

// ItemQuery narrows GET /search. Nil fields are not applied.
type ItemQuery struct {
	Q        *string
	PriceMin *float64
	PriceMax *float64
}

// Match applies the case-insensitive name match, then the price bounds.
func (q ItemQuery) Match(i Item) bool {
	if q.Q != nil && !strings.Contains(strings.ToLower(i.Name), strings.ToLower(*q.Q)) {
		return false
	}
	if q.PriceMin != nil && i.Price < *q.PriceMin {
		return false
	}
	if q.PriceMax != nil && i.Price > *q.PriceMax {
		return false
	}
	return true
}

// Apply returns the items matching q in their original order.
func (q ItemQuery) Apply(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, i := range items {
		if q.Match(i) {
			out = append(out, i)
		}
	}
	return out
}
