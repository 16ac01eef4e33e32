package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/anlik-eleman/backend/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	singleObjectMIMEType = "application/vnd.pgrst.object+json"
	preferRepresentation = "return=representation"
	primaryKeyColumn     = "id"
)

const (
	codeNoRows                = "PGRST116"
	codeParseFailure          = "PGRST100"
	codeInvalidBody           = "PGRST102"
	codeUnknownBodyColumn     = "PGRST204"
	codeJWTInvalid            = "PGRST301"
	codeJWTExpired            = "PGRST303"
	codeMissingWhere          = "21000"
	codeInvalidText           = "22P02"
	codeNotNullViolation      = "23502"
	codeForeignKeyViolation   = "23503"
	codeUniqueViolation       = "23505"
	codeCheckViolation        = "23514"
	codeInsufficientPrivilege = "42501"
	codeUndefinedTable        = "42P01"
	codeUndefinedColumn       = "42703"
	codeInternal              = "XX000"
)

// rowError is the row API error body.
type rowError struct {
	status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *rowError) write(c *gin.Context) {
	writeRowError(c, e.status, *e)
}

func writeRowError(c *gin.Context, status int, body rowError) {
	c.AbortWithStatusJSON(status, body)
}

// errRowCountMismatch rolls back a write whose single-object response cannot be produced.
type errRowCountMismatch struct {
	count int
}

func (e errRowCountMismatch) Error() string {
	return fmt.Sprintf("single object requested, %d rows affected", e.count)
}

func rowCountError(count int) *rowError {
	return &rowError{
		status:  http.StatusNotAcceptable,
		Code:    codeNoRows,
		Message: "JSON object requested, multiple (or no) rows returned",
		Details: fmt.Sprintf("The result contains %d rows", count),
	}
}

// rowCaller is the resolved identity behind a row API request.
type rowCaller struct {
	id    string
	admin bool
}

func (c rowCaller) signedIn() bool {
	return c.id != ""
}

func (h *httpHandler) handleSelect(c *gin.Context) {
	table, ok := h.lookupTable(c)
	if !ok {
		return
	}
	query, queryErr := parseRowQuery(table, c.Request.URL.Query(), true)
	if queryErr != nil {
		queryErr.write(c)
		return
	}
	caller, err := h.resolveCaller(c)
	if err != nil {
		h.writeDatabaseError(c, table, "select", err)
		return
	}

	db := query.apply(h.database.WithContext(c.Request.Context()))
	if table.privateRows && !caller.admin {
		db = db.Where(table.visibleTo(caller))
	}
	rows := table.newRows()
	if err := query.applyWindow(db).Find(rows.Interface()).Error; err != nil {
		h.writeDatabaseError(c, table, "select", err)
		return
	}
	h.writeRows(c, http.StatusOK, rows.Elem(), query.columns)
}

func (h *httpHandler) handleInsert(c *gin.Context) {
	table, ok := h.lookupTable(c)
	if !ok {
		return
	}
	caller, err := h.resolveCaller(c)
	if err != nil {
		h.writeDatabaseError(c, table, "insert", err)
		return
	}
	body, _, bodyErr := decodeRowsBody(c.Request.Body)
	if bodyErr != nil {
		bodyErr.write(c)
		return
	}
	for _, row := range body {
		if ruleErr := h.checkRow(table, caller, row, true); ruleErr != nil {
			ruleErr.write(c)
			return
		}
	}

	rows := table.newRows()
	if err := remarshal(body, rows.Interface()); err != nil {
		invalidBodyError(err.Error()).write(c)
		return
	}
	if rows.Elem().Len() > 0 {
		if err := h.database.WithContext(c.Request.Context()).Create(rows.Interface()).Error; err != nil {
			h.writeDatabaseError(c, table, "insert", err)
			return
		}
	}

	if !wantsRepresentation(c) {
		c.Status(http.StatusCreated)
		return
	}
	h.writeRows(c, http.StatusCreated, rows.Elem(), nil)
}

func (h *httpHandler) handleUpdate(c *gin.Context) {
	table, ok := h.lookupTable(c)
	if !ok {
		return
	}
	query, queryErr := parseRowQuery(table, c.Request.URL.Query(), false)
	if queryErr != nil {
		queryErr.write(c)
		return
	}
	if len(query.conditions) == 0 {
		missingWhereError("UPDATE").write(c)
		return
	}
	caller, err := h.resolveCaller(c)
	if err != nil {
		h.writeDatabaseError(c, table, "update", err)
		return
	}
	body, isArray, bodyErr := decodeRowsBody(c.Request.Body)
	if bodyErr != nil {
		bodyErr.write(c)
		return
	}
	if isArray || len(body) != 1 || len(body[0]) == 0 {
		invalidBodyError("expected a single non-empty JSON object").write(c)
		return
	}
	change := body[0]
	if _, present := change[primaryKeyColumn]; present {
		invalidBodyError("column id can not be updated").write(c)
		return
	}
	if ruleErr := h.checkRow(table, caller, change, false); ruleErr != nil {
		ruleErr.write(c)
		return
	}

	values := table.newRow()
	if err := remarshal(change, values.Interface()); err != nil {
		invalidBodyError(err.Error()).write(c)
		return
	}
	columns := make([]string, 0, len(change))
	for column := range change {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	representation := wantsRepresentation(c)
	single := wantsSingleObject(c)
	updated := table.newRows()
	err = h.database.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		ids, err := matchingIDs(tx, table, query, caller, change)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			byID := clause.IN{Column: clause.Column{Name: primaryKeyColumn}, Values: ids}
			if err := tx.Model(table.newRow().Interface()).Where(byID).Select(columns).Updates(values.Interface()).Error; err != nil {
				return err
			}
			if representation {
				if err := tx.Where(byID).Find(updated.Interface()).Error; err != nil {
					return err
				}
			}
		}
		if representation && single && len(ids) != 1 {
			return errRowCountMismatch{count: len(ids)}
		}
		return nil
	})
	if err != nil {
		h.writeDatabaseError(c, table, "update", err)
		return
	}

	if !representation {
		c.Status(http.StatusNoContent)
		return
	}
	h.writeRows(c, http.StatusOK, updated.Elem(), nil)
}

func (h *httpHandler) handleDelete(c *gin.Context) {
	table, ok := h.lookupTable(c)
	if !ok {
		return
	}
	query, queryErr := parseRowQuery(table, c.Request.URL.Query(), false)
	if queryErr != nil {
		queryErr.write(c)
		return
	}
	if len(query.conditions) == 0 {
		missingWhereError("DELETE").write(c)
		return
	}
	caller, err := h.resolveCaller(c)
	if err != nil {
		h.writeDatabaseError(c, table, "delete", err)
		return
	}
	if ruleErr := h.checkRow(table, caller, nil, false); ruleErr != nil {
		ruleErr.write(c)
		return
	}

	representation := wantsRepresentation(c)
	deleted := table.newRows()
	err = h.database.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		ids, err := matchingIDs(tx, table, query, caller, nil)
		if err != nil || len(ids) == 0 {
			return err
		}
		byID := clause.IN{Column: clause.Column{Name: primaryKeyColumn}, Values: ids}
		if representation {
			if err := tx.Where(byID).Find(deleted.Interface()).Error; err != nil {
				return err
			}
		}
		return tx.Where(byID).Delete(table.newRow().Interface()).Error
	})
	if err != nil {
		h.writeDatabaseError(c, table, "delete", err)
		return
	}

	if !representation {
		c.Status(http.StatusNoContent)
		return
	}
	h.writeRows(c, http.StatusOK, deleted.Elem(), nil)
}

func (h *httpHandler) lookupTable(c *gin.Context) (tableDef, bool) {
	name := c.Param("table")
	table, ok := h.tables[name]
	if !ok {
		writeRowError(c, http.StatusNotFound, rowError{
			Code:    codeUndefinedTable,
			Message: fmt.Sprintf("relation \"public.%s\" does not exist", name),
		})
	}
	return table, ok
}

// resolveCaller reads the caller's id from the validated token and its role from the profile row.
func (h *httpHandler) resolveCaller(c *gin.Context) (rowCaller, error) {
	claims, ok := callerFromContext(c)
	if !ok {
		return rowCaller{}, nil
	}
	caller := rowCaller{id: claims.Subject}
	var profiles []models.Profile
	err := h.database.WithContext(c.Request.Context()).
		Select("user_type").
		Where(clause.Eq{Column: clause.Column{Name: primaryKeyColumn}, Value: claims.Subject}).
		Limit(1).
		Find(&profiles).Error
	if err != nil {
		return rowCaller{}, err
	}
	caller.admin = len(profiles) == 1 && profiles[0].UserType == models.UserTypeAdmin
	return caller, nil
}

// checkRow applies the write rules to one row of a write request; row is nil for deletes.
func (h *httpHandler) checkRow(table tableDef, caller rowCaller, row map[string]any, insert bool) *rowError {
	for column := range row {
		if _, ok := table.column(column); !ok {
			return &rowError{
				status:  http.StatusBadRequest,
				Code:    codeUnknownBodyColumn,
				Message: fmt.Sprintf("Could not find the '%s' column of '%s' in the schema cache", column, table.name),
			}
		}
	}
	if !caller.signedIn() {
		return &rowError{
			status:  http.StatusUnauthorized,
			Code:    codeInsufficientPrivilege,
			Message: fmt.Sprintf("permission denied for table %s", table.name),
		}
	}
	h.sanitizer.sanitizeRow(row, table.textColumns)
	if caller.admin {
		return nil
	}
	if table.adminWrites {
		return policyViolation(table.name)
	}
	for column, value := range row {
		if adminColumns[column] && !isZeroJSON(value) {
			return &rowError{
				status:  http.StatusForbidden,
				Code:    codeInsufficientPrivilege,
				Message: fmt.Sprintf("permission denied for column %s of table %s", column, table.name),
			}
		}
		if column == "user_type" && value == string(models.UserTypeAdmin) {
			return policyViolation(table.name)
		}
	}
	if table.ownerColumn == "" || row == nil {
		return nil
	}
	if table.touchesShared(row) {
		if insert {
			return policyViolation(table.name)
		}
		// The second party may not rewrite the owner's columns in the same change.
		for column := range row {
			if !table.sharedColumns[column] {
				return policyViolation(table.name)
			}
		}
		return nil
	}
	if insert && table.openInserts {
		return nil
	}
	owner, present := row[table.ownerColumn]
	if !present && !insert {
		return nil
	}
	if ownerID, _ := owner.(string); ownerID != caller.id {
		return policyViolation(table.name)
	}
	return nil
}

// matchingIDs resolves the primary keys a write may touch: the filtered rows the caller owns,
// or for shared columns the rows shared with the caller.
func matchingIDs(tx *gorm.DB, table tableDef, query rowQuery, caller rowCaller, change map[string]any) ([]any, error) {
	db := query.apply(tx.Model(table.newRow().Interface()))
	if !caller.admin && table.ownerColumn != "" {
		db = db.Where(table.writableBy(caller, change))
	}
	var ids []string
	if err := db.Pluck(primaryKeyColumn, &ids).Error; err != nil {
		return nil, err
	}
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	return values, nil
}

func (h *httpHandler) writeRows(c *gin.Context, status int, rows reflect.Value, columns []string) {
	payload, err := projectRows(rows, columns)
	if err != nil {
		h.logger.Error("failed to encode rows", zap.String("table", c.Param("table")), zap.Error(err))
		writeRowError(c, http.StatusInternalServerError, rowError{Code: codeInternal, Message: "failed to encode rows"})
		return
	}
	if !wantsSingleObject(c) {
		c.JSON(status, payload)
		return
	}
	if len(payload) != 1 {
		rowCountError(len(payload)).write(c)
		return
	}
	c.JSON(status, payload[0])
}

func (h *httpHandler) writeDatabaseError(c *gin.Context, table tableDef, operation string, err error) {
	var mismatch errRowCountMismatch
	var violation *models.CheckViolation
	switch {
	case errors.As(err, &mismatch):
		rowCountError(mismatch.count).write(c)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		writeRowError(c, http.StatusConflict, rowError{
			Code:    codeUniqueViolation,
			Message: fmt.Sprintf("duplicate key value violates unique constraint on %s", table.name),
		})
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		writeRowError(c, http.StatusConflict, rowError{
			Code:    codeForeignKeyViolation,
			Message: fmt.Sprintf("insert or update on table %s violates foreign key constraint", table.name),
		})
	case errors.As(err, &violation):
		writeRowError(c, http.StatusBadRequest, rowError{
			Code:    codeCheckViolation,
			Message: violation.Error(),
		})
	case errors.Is(err, models.ErrMissingRowID):
		writeRowError(c, http.StatusBadRequest, rowError{
			Code:    codeNotNullViolation,
			Message: fmt.Sprintf("null value in column \"id\" of relation \"%s\" violates not-null constraint", table.name),
		})
	default:
		h.logger.Error("row operation failed",
			zap.String("table", table.name),
			zap.String("operation", operation),
			zap.Error(err))
		writeRowError(c, http.StatusInternalServerError, rowError{Code: codeInternal, Message: "internal server error"})
	}
}

// decodeRowsBody reads a JSON object or array of objects. Numbers are kept as json.Number.
func decodeRowsBody(body io.Reader) ([]map[string]any, bool, *rowError) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, false, invalidBodyError(err.Error())
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, invalidBodyError("empty request body")
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if trimmed[0] == '[' {
		var rows []map[string]any
		if err := decoder.Decode(&rows); err != nil {
			return nil, true, invalidBodyError(err.Error())
		}
		return rows, true, nil
	}
	var row map[string]any
	if err := decoder.Decode(&row); err != nil {
		return nil, false, invalidBodyError(err.Error())
	}
	return []map[string]any{row}, false, nil
}

func remarshal(source any, destination any) error {
	encoded, err := json.Marshal(source)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, destination)
}

// projectRows renders rows, keeping only columns when a projection was requested.
func projectRows(rows reflect.Value, columns []string) ([]any, error) {
	payload := make([]any, 0, rows.Len())
	for index := 0; index < rows.Len(); index++ {
		row := rows.Index(index).Interface()
		if len(columns) == 0 {
			payload = append(payload, row)
			continue
		}
		var full map[string]any
		if err := remarshal(row, &full); err != nil {
			return nil, err
		}
		projected := make(map[string]any, len(columns))
		for _, column := range columns {
			projected[column] = full[column]
		}
		payload = append(payload, projected)
	}
	return payload, nil
}

func isZeroJSON(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case bool:
		return !typed
	case string:
		return typed == ""
	case json.Number:
		number, err := typed.Float64()
		return err == nil && number == 0
	default:
		return false
	}
}

func wantsSingleObject(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), singleObjectMIMEType)
}

func wantsRepresentation(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Prefer"), preferRepresentation)
}

func invalidBodyError(details string) *rowError {
	return &rowError{
		status:  http.StatusBadRequest,
		Code:    codeInvalidBody,
		Message: "Invalid request body",
		Details: details,
	}
}

func missingWhereError(statement string) *rowError {
	return &rowError{
		status:  http.StatusBadRequest,
		Code:    codeMissingWhere,
		Message: statement + " requires a WHERE clause",
	}
}

func policyViolation(table string) *rowError {
	return &rowError{
		status:  http.StatusForbidden,
		Code:    codeInsufficientPrivilege,
		Message: fmt.Sprintf("new row violates row-level security policy for table \"%s\"", table),
	}
}
