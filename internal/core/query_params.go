// internal/core/query_params.go
package core

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Default and limit constants for record listing
const (
	DefaultLimit = 50
	MaxLimit     = 500
	DefaultOrder = "asc"
)

// ReservedParams are query parameter names that control listing rather than filter fields.
var ReservedParams = map[string]bool{
	"limit":  true,
	"offset": true,
	"sort":   true,
	"order":  true,
	"fields": true,
}

// ListQueryOptions holds parsed options for listing the records of a table
type ListQueryOptions struct {
	Limit     int
	Offset    int
	SortBy    string            // Record field to order by; empty orders by record key
	SortOrder string            // "asc" or "desc"
	Fields    []string          // Record fields to project (empty = whole record)
	Filters   map[string]string // field -> exact value
}

// ParseListQueryOptions extracts pagination, sorting, projection and equality filters.
func ParseListQueryOptions(queryParams url.Values) (*ListQueryOptions, error) {
	opts := &ListQueryOptions{
		Limit:     DefaultLimit,
		SortOrder: DefaultOrder,
		Filters:   map[string]string{},
	}

	if limitStr := queryParams.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("invalid 'limit' parameter: must be a positive integer")
		}
		if limit > MaxLimit {
			return nil, fmt.Errorf("invalid 'limit' parameter: maximum is %d", MaxLimit)
		}
		opts.Limit = limit
	}

	if offsetStr := queryParams.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("invalid 'offset' parameter: must be a non-negative integer")
		}
		opts.Offset = offset
	}

	if sortBy := queryParams.Get("sort"); sortBy != "" {
		if !IsValidIdentifier(sortBy) {
			return nil, fmt.Errorf("invalid 'sort' parameter: '%s' is not a valid field name", sortBy)
		}
		opts.SortBy = sortBy
	}

	if order := queryParams.Get("order"); order != "" {
		lowerOrder := strings.ToLower(order)
		if lowerOrder != "asc" && lowerOrder != "desc" {
			return nil, fmt.Errorf("invalid 'order' parameter: must be 'asc' or 'desc'")
		}
		opts.SortOrder = lowerOrder
	}

	if fieldsStr := queryParams.Get("fields"); fieldsStr != "" {
		for _, field := range strings.Split(fieldsStr, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			if !IsValidIdentifier(field) {
				return nil, fmt.Errorf("invalid 'fields' parameter: '%s' is not a valid field name", field)
			}
			opts.Fields = append(opts.Fields, field)
		}
	}

	for key, values := range queryParams {
		if IsReservedParam(key) || len(values) == 0 {
			continue
		}
		if !IsValidIdentifier(key) {
			return nil, fmt.Errorf("invalid filter '%s': not a valid field name", key)
		}
		opts.Filters[key] = values[0]
	}

	return opts, nil
}

// FilterFields returns the filter field names in a stable order.
func (o *ListQueryOptions) FilterFields() []string {
	names := make([]string, 0, len(o.Filters))
	for name := range o.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsReservedParam checks if a query parameter name is reserved for pagination/sorting/fields.
func IsReservedParam(key string) bool {
	return ReservedParams[strings.ToLower(key)]
}
