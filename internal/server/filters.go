package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// reservedParameters are query keys that are not column filters.
var reservedParameters = map[string]bool{
	"select": true,
	"order":  true,
	"limit":  true,
	"offset": true,
}

// rowQuery is a parsed row API query string.
type rowQuery struct {
	conditions []clause.Expression
	order      []clause.OrderByColumn
	columns    []string
	limit      int
	offset     int
}

func (q rowQuery) apply(db *gorm.DB) *gorm.DB {
	for _, condition := range q.conditions {
		db = db.Where(condition)
	}
	return db
}

func (q rowQuery) applyWindow(db *gorm.DB) *gorm.DB {
	for _, column := range q.order {
		db = db.Order(column)
	}
	if q.limit >= 0 {
		db = db.Limit(q.limit)
	}
	if q.offset > 0 {
		db = db.Offset(q.offset)
	}
	return db
}

// parseRowQuery reads column filters of the form column=operator.value plus select, order,
// limit and offset. Writes only accept filters.
func parseRowQuery(table tableDef, values url.Values, read bool) (rowQuery, *rowError) {
	query := rowQuery{limit: -1}
	for key, entries := range values {
		if reservedParameters[key] {
			if !read {
				continue
			}
			if err := query.parseReserved(table, key, entries[len(entries)-1]); err != nil {
				return rowQuery{}, err
			}
			continue
		}
		field, ok := table.column(key)
		if !ok {
			return rowQuery{}, unknownColumnError(table.name, key)
		}
		for _, entry := range entries {
			condition, err := parseCondition(field, entry)
			if err != nil {
				return rowQuery{}, err
			}
			query.conditions = append(query.conditions, condition)
		}
	}
	return query, nil
}

func (q *rowQuery) parseReserved(table tableDef, key, value string) *rowError {
	switch key {
	case "select":
		value = strings.TrimSpace(value)
		if value == "" || value == "*" {
			return nil
		}
		for _, name := range strings.Split(value, ",") {
			name = strings.TrimSpace(name)
			if _, ok := table.column(name); !ok {
				return unknownColumnError(table.name, name)
			}
			q.columns = append(q.columns, name)
		}
	case "order":
		for _, term := range strings.Split(value, ",") {
			name, direction, _ := strings.Cut(strings.TrimSpace(term), ".")
			if _, ok := table.column(name); !ok {
				return unknownColumnError(table.name, name)
			}
			switch direction {
			case "", "asc", "desc":
			default:
				return filterError("unknown order direction %q", direction)
			}
			q.order = append(q.order, clause.OrderByColumn{Column: clause.Column{Name: name}, Desc: direction == "desc"})
		}
	case "limit", "offset":
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || parsed < 0 {
			return filterError("%s must be a non-negative integer", key)
		}
		if key == "limit" {
			q.limit = parsed
		} else {
			q.offset = parsed
		}
	}
	return nil
}

func parseCondition(field *schema.Field, entry string) (clause.Expression, *rowError) {
	operator, raw, found := strings.Cut(entry, ".")
	if !found {
		return nil, filterError("%q is not of the form operator.value", entry)
	}
	column := clause.Column{Name: field.DBName}

	switch operator {
	case "is":
		switch strings.ToLower(raw) {
		case "null":
			return clause.Eq{Column: column, Value: nil}, nil
		case "true":
			return clause.Eq{Column: column, Value: true}, nil
		case "false":
			return clause.Eq{Column: column, Value: false}, nil
		}
		return nil, filterError("is accepts null, true or false, got %q", raw)
	case "in":
		if !strings.HasPrefix(raw, "(") || !strings.HasSuffix(raw, ")") {
			return nil, filterError("in expects a parenthesized list, got %q", raw)
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
		values := []any{}
		if inner != "" {
			for _, item := range strings.Split(inner, ",") {
				value, err := coerceValue(field, strings.Trim(strings.TrimSpace(item), `"`))
				if err != nil {
					return nil, err
				}
				values = append(values, value)
			}
		}
		return clause.IN{Column: column, Values: values}, nil
	}

	value, err := coerceValue(field, raw)
	if err != nil {
		return nil, err
	}
	switch operator {
	case "eq":
		return clause.Eq{Column: column, Value: value}, nil
	case "neq":
		return clause.Neq{Column: column, Value: value}, nil
	case "gt":
		return clause.Gt{Column: column, Value: value}, nil
	case "gte":
		return clause.Gte{Column: column, Value: value}, nil
	case "lt":
		return clause.Lt{Column: column, Value: value}, nil
	case "lte":
		return clause.Lte{Column: column, Value: value}, nil
	}
	return nil, filterError("unknown operator %q", operator)
}

// coerceValue converts a filter literal to the column's type so comparisons are not textual.
func coerceValue(field *schema.Field, raw string) (any, *rowError) {
	switch field.DataType {
	case schema.Bool:
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalidValueError(field.DBName, raw)
		}
		return parsed, nil
	case schema.Int, schema.Uint:
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, invalidValueError(field.DBName, raw)
		}
		return parsed, nil
	case schema.Float:
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, invalidValueError(field.DBName, raw)
		}
		return parsed, nil
	case schema.Time:
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, invalidValueError(field.DBName, raw)
		}
		return parsed.UTC(), nil
	default:
		return raw, nil
	}
}

func filterError(format string, args ...any) *rowError {
	return &rowError{
		status:  http.StatusBadRequest,
		Code:    codeParseFailure,
		Message: "failed to parse filter",
		Details: fmt.Sprintf(format, args...),
	}
}

func invalidValueError(column, raw string) *rowError {
	return &rowError{
		status:  http.StatusBadRequest,
		Code:    codeInvalidText,
		Message: fmt.Sprintf("invalid input syntax for column %s: %q", column, raw),
	}
}

func unknownColumnError(table, column string) *rowError {
	return &rowError{
		status:  http.StatusBadRequest,
		Code:    codeUndefinedColumn,
		Message: fmt.Sprintf("column %s.%s does not exist", table, column),
	}
}
