package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// HelperSearchFilter holds structured helper criteria extracted from a chat message.
// Every field is optional; a nil or empty field means no constraint.
type HelperSearchFilter struct {
	Nationality   *string  `json:"nationality"`
	MinAge        *int     `json:"minAge"`
	MaxAge        *int     `json:"maxAge"`
	MinExperience *int     `json:"minExperience"`
	Skills        []string `json:"skills"`
}

// IsEmpty reports whether the filter places no constraint at all.
func (f *HelperSearchFilter) IsEmpty() bool {
	return f == nil || (f.Nationality == nil && f.MinAge == nil && f.MaxAge == nil &&
		f.MinExperience == nil && len(f.Skills) == 0)
}

// UnmarshalJSON accepts model output loosely: numbers may arrive as strings or floats,
// skills may be a single string, and blank strings count as absent.
func (f *HelperSearchFilter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Nationality   json.RawMessage `json:"nationality"`
		MinAge        json.RawMessage `json:"minAge"`
		MaxAge        json.RawMessage `json:"maxAge"`
		MinExperience json.RawMessage `json:"minExperience"`
		Skills        json.RawMessage `json:"skills"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out HelperSearchFilter
	var err error
	if out.Nationality, err = looseString(raw.Nationality); err != nil {
		return fmt.Errorf("nationality: %w", err)
	}
	if out.MinAge, err = looseInt(raw.MinAge); err != nil {
		return fmt.Errorf("minAge: %w", err)
	}
	if out.MaxAge, err = looseInt(raw.MaxAge); err != nil {
		return fmt.Errorf("maxAge: %w", err)
	}
	if out.MinExperience, err = looseInt(raw.MinExperience); err != nil {
		return fmt.Errorf("minExperience: %w", err)
	}
	if out.Skills, err = looseStrings(raw.Skills); err != nil {
		return fmt.Errorf("skills: %w", err)
	}
	*f = out
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func looseString(raw json.RawMessage) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func looseInt(raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		n = json.Number(strings.TrimSpace(s))
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	v := int(f)
	return &v, nil
}

func looseStrings(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		list = strings.Split(s, ",")
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// HelperQuery is a catalog listing request (name search, filters, paging and sort).
type HelperQuery struct {
	Name        string   `json:"q,omitempty"`
	Nationality string   `json:"nationality,omitempty"`
	Skills      []string `json:"skills,omitempty"` // any-of
	Available   *bool    `json:"available,omitempty"`
	MinExp      *int     `json:"minExp,omitempty"`
	MaxSalary   *int     `json:"maxSalary,omitempty"`
	Page        int      `json:"page,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	SortField   string   `json:"sortField,omitempty"`
	SortDesc    bool     `json:"sortDesc,omitempty"`
}

// HelperSortFields lists the fields a catalog listing may be sorted by.
var HelperSortFields = map[string]bool{
	"name": true, "age": true, "nationality": true, "experience": true,
	"expectedSalary": true, "createdAt": true, "updatedAt": true,
}

// Validate normalizes paging and sort fields and rejects unknown sort fields.
func (q *HelperQuery) Validate() error {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.SortField == "" {
		q.SortField = "updatedAt"
		q.SortDesc = true
	}
	if !HelperSortFields[q.SortField] {
		return fmt.Errorf("unsupported sort field: %s", q.SortField)
	}
	return nil
}

// Offset returns the number of rows skipped for the current page.
func (q *HelperQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ParseHelperQuery reads a catalog listing request from URL query parameters:
// q, nationality, skill (comma list), available, minExp, maxSalary, page, limit and
// sort ("field" or "field:asc|desc"). The result is validated.
func ParseHelperQuery(v url.Values) (*HelperQuery, error) {
	q := &HelperQuery{
		Name:        strings.TrimSpace(v.Get("q")),
		Nationality: strings.TrimSpace(v.Get("nationality")),
	}
	for _, skill := range strings.Split(v.Get("skill"), ",") {
		if skill = strings.TrimSpace(skill); skill != "" {
			q.Skills = append(q.Skills, skill)
		}
	}
	if raw := v.Get("available"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("available must be true or false")
		}
		q.Available = &b
	}
	var err error
	if q.MinExp, err = queryInt(v, "minExp"); err != nil {
		return nil, err
	}
	if q.MaxSalary, err = queryInt(v, "maxSalary"); err != nil {
		return nil, err
	}
	page, err := queryInt(v, "page")
	if err != nil {
		return nil, err
	}
	if page != nil {
		q.Page = *page
	}
	limit, err := queryInt(v, "limit")
	if err != nil {
		return nil, err
	}
	if limit != nil {
		q.Limit = *limit
	}
	if sort := v.Get("sort"); sort != "" {
		field, dir, _ := strings.Cut(sort, ":")
		q.SortField = field
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			q.SortDesc = true
		default:
			return nil, errors.New("sort direction must be asc or desc")
		}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func queryInt(v url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &n, nil
}
