package sqlerr

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrCode reports the Code of err.
//
//   - err (or anything it wraps) is an *Error: its Code
//   - anything else: Other
//
// Handy when a caller wants to branch on the category without going through
// HandleError, e.g. treating QueryCanceled differently from a constraint.
func ErrCode(err error) Code {
	var sqlErr *Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code
	}
	return Other
}

// ConvertPgError normalizes a raw Postgres error into an *Error.
//
// The SQLSTATE and severity become our enums; the table, column and
// constraint names are kept because HandleError builds its codes and
// messages from them. The original error stays reachable through Unwrap.
func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code, // raw SQLSTATE, e.g. "23505"
		Message:        src.Message,
		SchemaName:     src.SchemaName,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		DataTypeName:   src.DataTypeName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}

// generateErrorCode builds the machine-readable code of a constraint error:
//
//	<ENTITY>_<ACTION>
//
// Examples:
//
//	users     + UniqueViolation  -> USER_ALREADY_EXISTS
//	campaigns + NotNullViolation -> CAMPAIGN_REQUIRED
//
// ENTITY is the table name uppercased with one trailing "S" dropped. That is
// enough for users and campaigns; a table like "categories" would read
// CATEGORIE, so name tables accordingly or pass a code explicitly.
func generateErrorCode(tableName string, errType Code) string {
	if tableName == "" {
		tableName = "RECORD"
	}

	domain := strings.ToUpper(tableName)
	if strings.HasSuffix(domain, "S") && len(domain) > 1 {
		domain = domain[:len(domain)-1]
	}

	action := "ERROR"
	switch errType {
	case ForeignKeyViolation:
		action = "NOT_FOUND"
	case UniqueViolation:
		action = "ALREADY_EXISTS"
	case NotNullViolation:
		action = "REQUIRED"
	case CheckViolation:
		action = "INVALID"
	}

	return fmt.Sprintf("%s_%s", domain, action)
}

// formatUserFriendlyMessage produces the client-facing message for a
// constraint error. It never includes the database's own message text.
func formatUserFriendlyMessage(sqlErr *Error) string {
	entityName := getEntityName(sqlErr.TableName, sqlErr.ColumnName)

	switch sqlErr.Code {
	case ForeignKeyViolation:
		// campaigns.owner_id -> "The referenced Owner does not exist"
		return fmt.Sprintf("The referenced %s does not exist", entityName)

	case UniqueViolation:
		// "identifier" is swapped for the column in HandleError when the
		// constraint name reveals it: "A User with this Email already exists".
		return fmt.Sprintf("A %s with this identifier already exists", entityName)

	case NotNullViolation:
		fieldName := humanizeText(sqlErr.ColumnName)
		if fieldName == "" {
			fieldName = "field"
		}
		return fmt.Sprintf("The %s is required", fieldName)

	case CheckViolation:
		// e.g. the campaigns budget > 0 check.
		if fieldName := humanizeText(sqlErr.ColumnName); fieldName != "" {
			return fmt.Sprintf("The %s value does not meet required conditions", fieldName)
		}
		return "One or more values do not meet required conditions"

	default:
		return "An error occurred while processing your request"
	}
}

// getEntityName picks the noun a message talks about.
//
// Order of preference:
//  1. a "<entity>_id" column: owner_id -> "Owner"
//  2. the table name with one trailing "s" dropped: campaigns -> "Campaign"
//  3. "record"
func getEntityName(tableName, columnName string) string {
	if columnName != "" && strings.HasSuffix(strings.ToLower(columnName), "_id") {
		return humanizeText(strings.TrimSuffix(strings.ToLower(columnName), "_id"))
	}

	if tableName != "" {
		entity := tableName
		if strings.HasSuffix(entity, "s") && len(entity) > 1 {
			entity = entity[:len(entity)-1]
		}
		return humanizeText(entity)
	}

	return "record"
}

// humanizeText turns "payment_reference" into "Payment Reference".
// x/text/cases is used because strings.Title is deprecated and not Unicode-aware.
func humanizeText(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

// constraintKeyRe matches Postgres' default constraint names: users_email_key.
var constraintKeyRe = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)

// extractColumnForUniqueViolation infers the offending column from the
// constraint or index name. Unique violations on an expression index such as
// unique_users_email ON users (lower(email)) carry no column name, so the
// name is all there is.
//
// Recognized shapes:
//   - unique_<table>_<column>  (our migrations)
//   - <table>_<column>_key     (Postgres default for UNIQUE constraints)
//
// Returns "" when neither matches.
func extractColumnForUniqueViolation(constraintName string) string {
	if constraintName == "" {
		return ""
	}

	if strings.HasPrefix(constraintName, "unique_") {
		parts := strings.Split(constraintName, "_")
		if len(parts) >= 3 {
			return parts[len(parts)-1]
		}
	}

	if matches := constraintKeyRe.FindStringSubmatch(constraintName); len(matches) > 1 {
		return matches[1]
	}

	return ""
}

// HandleError converts a database error into an *errs.HTTPError.
//
// GlobalErrorHandler runs every error that is not already an HTTPError
// through here, so repositories can return pgx errors as they are.
//
// Mapping:
//   - *errs.HTTPError: returned unchanged
//   - *pgconn.PgError:
//   - foreign key, unique, not null, check violations -> 400 with an
//     <ENTITY>_<ACTION> code (not null also carries a field error)
//   - anything else (too many connections, cancellation, ...) -> 500
//   - pgx.ErrNoRows / sql.ErrNoRows -> 404; when the error text carries
//     "table:<name>:" (see repository.notFound) the entity is named
//   - everything else -> 500
//
// A 500 never exposes the original message; it is logged by the caller.
func HandleError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		sqlErr := ConvertPgError(pgerr)
		errorCode := generateErrorCode(sqlErr.TableName, sqlErr.Code)
		userMessage := formatUserFriendlyMessage(sqlErr)

		switch sqlErr.Code {
		case ForeignKeyViolation:
			// Not overridable: the referenced row name is an internal detail.
			return errs.NewBadRequestError(userMessage, false, &errorCode, nil, nil)

		case UniqueViolation:
			if columnName := extractColumnForUniqueViolation(sqlErr.ConstraintName); columnName != "" {
				userMessage = strings.ReplaceAll(userMessage, "identifier", humanizeText(columnName))
			}
			return errs.NewBadRequestError(userMessage, true, &errorCode, nil, nil)

		case NotNullViolation:
			fieldErrors := []errs.FieldError{{
				Field: strings.ToLower(sqlErr.ColumnName),
				Error: "is required",
			}}
			return errs.NewBadRequestError(userMessage, true, &errorCode, fieldErrors, nil)

		case CheckViolation:
			return errs.NewBadRequestError(userMessage, true, &errorCode, nil, nil)

		default:
			return errs.NewInternalServerError()
		}
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		// "table:campaigns: no rows in result set" -> "Campaign not found"
		errMsg := err.Error()
		const tablePrefix = "table:"
		if strings.Contains(errMsg, tablePrefix) {
			table := strings.Split(strings.Split(errMsg, tablePrefix)[1], ":")[0]
			return errs.NewNotFoundError(fmt.Sprintf("%s not found", getEntityName(table, "")), true, nil)
		}
		return errs.NewNotFoundError("Resource not found", false, nil)
	}

	return errs.NewInternalServerError()
}
