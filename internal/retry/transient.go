package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes treated as transient. Class 08 (connection exception)
// is matched by prefix; the rest are resource or shutdown conditions that a
// fresh attempt can outlive.
const (
	pgConnectionClass      = "08"
	pgTooManyConnections   = "53300"
	pgConfigurationLimit   = "53400"
	pgAdminShutdown        = "57P01"
	pgCrashShutdown        = "57P02"
	pgCannotConnectNow     = "57P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TransientStorage classifies storage errors that are safe and useful to
// retry: connection failures, timeouts, pool exhaustion, and serialization
// conflicts. Constraint violations and missing rows are not transient, and
// a canceled context is never retried.
func TransientStorage(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, pgConnectionClass) {
			return true
		}
		switch pgErr.Code {
		case pgTooManyConnections, pgConfigurationLimit,
			pgAdminShutdown, pgCrashShutdown, pgCannotConnectNow,
			pgSerializationFailure, pgDeadlockDetected:
			return true
		}
		return false
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
