package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
)

// mapError переводит ошибки драйвера в виды apperr. entity подставляется в сообщения.
func mapError(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, op, entity+" not found", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return apperr.Wrap(apperr.KindConflict, op, entity+" already exists", err)
		case pgerrcode.ForeignKeyViolation:
			return apperr.Wrap(apperr.KindNotFound, op, "referenced user not found", err)
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation, pgerrcode.NumericValueOutOfRange:
			return apperr.Wrap(apperr.KindValidation, op, "invalid "+entity+" fields", err)
		case pgerrcode.InvalidTextRepresentation:
			return apperr.Wrap(apperr.KindNotFound, op, entity+" not found", err)
		case pgerrcode.AdminShutdown, pgerrcode.CannotConnectNow, pgerrcode.TooManyConnections,
			pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return apperr.Transient(op, err)
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return apperr.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
