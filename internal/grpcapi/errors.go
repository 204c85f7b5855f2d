package grpcapi

import (
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
)

var grpcCodeFor = map[string]codes.Code{
	service.CodeInvalidInput:       codes.InvalidArgument,
	service.CodeBlocked:            codes.PermissionDenied,
	service.CodeRejected:           codes.FailedPrecondition,
	service.CodeInvalidTransition:  codes.FailedPrecondition,
	service.CodeBadgeUnavailable:   codes.FailedPrecondition,
	service.CodeEntryNotEligible:   codes.FailedPrecondition,
	service.CodeAlreadyRegistered:  codes.AlreadyExists,
	service.CodePermissionDenied:   codes.PermissionDenied,
	service.CodeNoSession:          codes.Unauthenticated,
	service.CodeInvalidCredentials: codes.Unauthenticated,
	service.CodeSessionActive:      codes.FailedPrecondition,
	service.CodeLookupFailed:       codes.Unavailable,
	service.CodeStoreError:         codes.Unavailable,
	service.CodeNotFound:           codes.NotFound,
}

// toStatus converts a checkpoint error into a gRPC status. The stable
// error code and any rejection reasons travel as a Struct detail.
func (s *Service) toStatus(err error) error {
	code := service.Code(err)
	gc, ok := grpcCodeFor[code]
	if !ok {
		gc = codes.Internal
	}

	msg := err.Error()
	if gc == codes.Internal || gc == codes.Unavailable {
		s.logger.Error("rpc failed", zap.String("code", code), zap.Error(err))
		if gc == codes.Internal {
			msg = "unexpected server error"
		}
	}

	detail := map[string]any{"code": code}
	if rep, ok := service.AsRejection(err); ok {
		reasons := make([]any, 0, len(rep.Reasons))
		for _, r := range rep.Reasons {
			m := map[string]any{
				"code":    string(r.Code),
				"message": r.Message,
			}
			if r.Ref != "" {
				m["ref"] = r.Ref
			}
			reasons = append(reasons, m)
		}
		detail["reasons"] = reasons
	}

	st := status.New(gc, msg)
	d, derr := structpb.NewStruct(detail)
	if derr != nil {
		return st.Err()
	}
	withDetail, derr := st.WithDetails(protoadapt.MessageV1Of(d))
	if derr != nil {
		return st.Err()
	}
	return withDetail.Err()
}

// ErrorCode extracts the stable checkpoint error code carried by a status
// returned from this service. It returns "" when none is attached.
func ErrorCode(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if m, ok := d.(*structpb.Struct); ok {
			if c := m.GetFields()["code"].GetStringValue(); c != "" {
				return c
			}
		}
	}
	return ""
}
