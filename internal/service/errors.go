package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/physioledger/internal/auth"
	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/snapshot"
	"github.com/mmynk/physioledger/internal/storage"
)

// toConnectError maps domain errors onto connect codes. A persistence error
// is reported as Unavailable: the change is applied in memory and a later
// Flush can still persist it.
func toConnectError(err error) *connect.Error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, snapshot.ErrFormat):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrPersistence):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, auth.ErrEmailExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrMissingFields):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
