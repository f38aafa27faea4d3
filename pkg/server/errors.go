package server

import (
	"context"
	"errors"

	"github.com/pixperk/escrowd/pkg/raft"
	"github.com/pixperk/escrowd/pkg/registry"
	"github.com/pixperk/escrowd/pkg/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// converts domain errors to gRPC status errors
// transfer failures wrap the adapter error, which may itself be
// ErrNotAuthorized, so they are checked first
func toGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, types.ErrTransferFailed):
		return status.Error(codes.Aborted, err.Error())

	case errors.Is(err, types.ErrNotFound), errors.Is(err, registry.ErrUnknownAsset):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, types.ErrAlreadyBorrowed),
		errors.Is(err, types.ErrDurationExceeded),
		errors.Is(err, types.ErrRentalNotExpired):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, types.ErrNotAuthorized):
		return status.Error(codes.PermissionDenied, err.Error())

	case errors.Is(err, types.ErrInvalidTerms),
		errors.Is(err, types.ErrInvalidDuration),
		errors.Is(err, types.ErrAmountOverflow),
		errors.Is(err, types.ErrEmptyBatch),
		errors.Is(err, types.ErrMalformedCommand):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, registry.ErrAssetExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, raft.ErrNotLeader):
		return status.Error(codes.Unavailable, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// returns a not leader error with the given leader address
// includes the current leader address in the error message
func notLeaderError(leaderAddr string) error {
	return status.Errorf(codes.Unavailable,
		"not leader, leader is at: %s", leaderAddr)
}
