// Package model contains domain models passed between layers.
package model

import "slices"

// User is a registered account keyed by ID.
type User struct {
	ID       int      `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Age      int      `json:"age"`
	Tags     []string `json:"tags"`
}

// Clone returns a deep copy so callers cannot mutate stored tags.
func (u User) Clone() User {
	u.Tags = cloneTags(u.Tags)
	return u
}

// HasAnyTag reports whether the user carries at least one of tags.
func (u User) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		if slices.Contains(u.Tags, t) {
			return true
		}
	}
	return false
}

// UserFilter narrows GET /users. Nil fields are not applied.
type UserFilter struct {
	Skip   int
	Limit  int
	AgeMin *int
	Tags   []string
}

// Match reports whether u passes the age and tag filters.
func (f UserFilter) Match(u User) bool {
	if f.AgeMin != nil && u.Age < *f.AgeMin {
		return false
	}
	if len(f.Tags) > 0 && !u.HasAnyTag(f.Tags) {
		return false
	}
	return true
}

// Apply filters users and returns the [Skip:Skip+Limit] window.
func (f UserFilter) Apply(users []User) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		if f.Match(u) {
			out = append(out, u)
		}
	}
	lo, hi := Window(len(out), f.Skip, f.Skip+f.Limit)
	return out[lo:hi]
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return slices.Clone(tags)
}
