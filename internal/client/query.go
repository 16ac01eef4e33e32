package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Query builds a row request against one table.
type Query struct {
	client  *Client
	table   string
	columns string
	filters url.Values
	order   []string
	limit   int
	offset  int
}

// From starts a query on table.
func (c *Client) From(table string) *Query {
	return &Query{
		client:  c,
		table:   table,
		filters: url.Values{},
		limit:   -1,
	}
}

// Columns restricts the returned columns.
func (q *Query) Columns(columns string) *Query {
	q.columns = columns
	return q
}

func (q *Query) Eq(column string, value any) *Query  { return q.filter(column, "eq", value) }
func (q *Query) Neq(column string, value any) *Query { return q.filter(column, "neq", value) }
func (q *Query) Gt(column string, value any) *Query  { return q.filter(column, "gt", value) }
func (q *Query) Gte(column string, value any) *Query { return q.filter(column, "gte", value) }
func (q *Query) Lt(column string, value any) *Query  { return q.filter(column, "lt", value) }
func (q *Query) Lte(column string, value any) *Query { return q.filter(column, "lte", value) }

// Is matches null, true or false.
func (q *Query) Is(column string, value any) *Query {
	if value == nil {
		return q.filter(column, "is", "null")
	}
	return q.filter(column, "is", value)
}

// In matches any of values.
func (q *Query) In(column string, values ...any) *Query {
	encoded := make([]string, 0, len(values))
	for _, value := range values {
		encoded = append(encoded, formatValue(value))
	}
	q.filters.Add(column, "in.("+strings.Join(encoded, ",")+")")
	return q
}

// Order sorts by column; repeated calls add tie-breakers.
func (q *Query) Order(column string, ascending bool) *Query {
	direction := "desc"
	if ascending {
		direction = "asc"
	}
	q.order = append(q.order, column+"."+direction)
	return q
}

func (q *Query) Limit(count int) *Query {
	q.limit = count
	return q
}

// Range selects the inclusive row window [from, to].
func (q *Query) Range(from, to int) *Query {
	q.offset = from
	q.limit = to - from + 1
	return q
}

// Select decodes every matching row into dest, which must point to a slice.
func (q *Query) Select(ctx context.Context, dest any) error {
	token, err := q.client.accessToken(ctx)
	if err != nil {
		return err
	}
	body, err := q.client.do(ctx, request{
		method:      http.MethodGet,
		path:        q.path(),
		query:       q.values(true),
		accessToken: token,
	})
	if err != nil {
		return err
	}
	return decodeInto(body, dest)
}

// Single decodes exactly one matching row into dest; zero or several rows fail with CodeNoRows.
func (q *Query) Single(ctx context.Context, dest any) error {
	token, err := q.client.accessToken(ctx)
	if err != nil {
		return err
	}
	body, err := q.client.do(ctx, request{
		method:      http.MethodGet,
		path:        q.path(),
		query:       q.values(true),
		headers:     http.Header{"Accept": []string{singleObjectMIMEType}},
		accessToken: token,
	})
	if err != nil {
		return err
	}
	return decodeInto(body, dest)
}

// Insert writes values (a row or a slice of rows). When dest is non-nil the stored rows are decoded into it.
func (q *Query) Insert(ctx context.Context, values any, dest any) error {
	return q.write(ctx, http.MethodPost, values, dest)
}

// Update applies values to every row matching the filters.
func (q *Query) Update(ctx context.Context, values any, dest any) error {
	return q.write(ctx, http.MethodPatch, values, dest)
}

// Delete removes every row matching the filters.
func (q *Query) Delete(ctx context.Context) error {
	return q.write(ctx, http.MethodDelete, nil, nil)
}

func (q *Query) write(ctx context.Context, method string, values any, dest any) error {
	headers := http.Header{"Prefer": []string{"return=minimal"}}
	if dest != nil {
		headers.Set("Prefer", "return=representation")
		if !isSlicePointer(dest) {
			headers.Set("Accept", singleObjectMIMEType)
		}
	}
	token, err := q.client.accessToken(ctx)
	if err != nil {
		return err
	}
	body, err := q.client.do(ctx, request{
		method:      method,
		path:        q.path(),
		query:       q.values(false),
		body:        values,
		headers:     headers,
		accessToken: token,
	})
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	return decodeInto(body, dest)
}

func (q *Query) path() string {
	return "/rest/v1/" + url.PathEscape(q.table)
}

func (q *Query) values(read bool) url.Values {
	values := url.Values{}
	for column, filters := range q.filters {
		for _, filter := range filters {
			values.Add(column, filter)
		}
	}
	if read {
		if q.columns != "" {
			values.Set("select", q.columns)
		}
		if len(q.order) > 0 {
			values.Set("order", strings.Join(q.order, ","))
		}
		if q.limit >= 0 {
			values.Set("limit", strconv.Itoa(q.limit))
		}
		if q.offset > 0 {
			values.Set("offset", strconv.Itoa(q.offset))
		}
	}
	return values
}

func (q *Query) filter(column, operator string, value any) *Query {
	q.filters.Add(column, operator+"."+formatValue(value))
	return q
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func isSlicePointer(dest any) bool {
	kind := reflect.TypeOf(dest)
	return kind != nil && kind.Kind() == reflect.Pointer && kind.Elem().Kind() == reflect.Slice
}

// decodeInto unmarshals body into dest, unwrapping a one-element array for non-slice targets.
func decodeInto(body []byte, dest any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' && !isSlicePointer(dest) {
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return fmt.Errorf("client: decode response: %w", err)
		}
		if len(rows) != 1 {
			return &APIError{
				Status:  http.StatusNotAcceptable,
				Code:    CodeNoRows,
				Message: "JSON object requested, multiple (or no) rows returned",
				Details: fmt.Sprintf("The result contains %d rows", len(rows)),
			}
		}
		trimmed = rows[0]
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
