package grpcapi

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// Service adapts the checkpoint commands to the Struct-based gRPC API.
type Service struct {
	checkpoint *service.Checkpoint
	session    session.Context
	logger     *zap.Logger
}

var _ CheckpointServer = (*Service)(nil)

func NewService(cp *service.Checkpoint, sess session.Context, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{checkpoint: cp, session: sess, logger: logger}
}

// ── Session ──────────────────────────────────────────────────────────────────

func (s *Service) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	sess, err := s.checkpoint.Login(ctx, req.Username, req.Password)
	return s.reply(sess, err)
}

func (s *Service) Logout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.checkpoint.Logout(ctx)
	return s.reply(sess, err)
}

func (s *Service) CurrentSession(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sess, ok := s.checkpoint.CurrentSession()
	if !ok {
		return s.reply(nil, session.ErrNoSession)
	}
	return s.reply(sess, nil)
}

// ── Entries ──────────────────────────────────────────────────────────────────

func (s *Service) SubmitEntry(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		IdentityKey         string     `json:"identity_key"`
		Name                string     `json:"name"`
		Category            string     `json:"category"`
		HostRef             string     `json:"host_ref"`
		CompanyRef          string     `json:"company_ref"`
		VehicleRef          string     `json:"vehicle_ref"`
		ExpectedStayMinutes int        `json:"expected_stay_minutes"`
		RequestedAt         *time.Time `json:"requested_at"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	er := types.EntryRequest{
		Identity: types.Identity{
			Key:      req.IdentityKey,
			Name:     req.Name,
			Category: types.Category(req.Category),
		},
		HostRef:      req.HostRef,
		CompanyRef:   req.CompanyRef,
		VehicleRef:   req.VehicleRef,
		ExpectedStay: time.Duration(req.ExpectedStayMinutes) * time.Minute,
	}
	if req.RequestedAt != nil {
		er.RequestedAt = *req.RequestedAt
	}
	rec, err := s.checkpoint.SubmitEntry(ctx, s.session, er)
	return s.reply(rec, err)
}

func (s *Service) ListEntries(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		State       string `json:"state"`
		IdentityKey string `json:"identity_key"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	recs, err := s.checkpoint.ListEntries(ctx, s.session, store.EntryFilter{
		State:       types.EntryState(req.State),
		IdentityKey: req.IdentityKey,
	})
	return s.reply(map[string]any{"entries": recs}, err)
}

func (s *Service) GetEntry(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		EntryID string `json:"entry_id"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	rec, err := s.checkpoint.GetEntry(ctx, s.session, req.EntryID)
	return s.reply(rec, err)
}

func (s *Service) IssueBadge(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		EntryID   string `json:"entry_id"`
		BadgeCode string `json:"badge_code"`
		Override  bool   `json:"override"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	rec, err := s.checkpoint.IssueBadge(ctx, s.session, req.EntryID, req.BadgeCode, req.Override)
	return s.reply(rec, err)
}

func (s *Service) SubmitExit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		EntryID        string  `json:"entry_id"`
		PresentedBadge *string `json:"presented_badge"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.checkpoint.SubmitExit(ctx, s.session, req.EntryID, req.PresentedBadge)
	return s.reply(res, err)
}

// ── Badges ───────────────────────────────────────────────────────────────────

type badgeRequest struct {
	Code string `json:"code"`
}

func (s *Service) RegisterBadge(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req badgeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	b, err := s.checkpoint.RegisterBadge(ctx, s.session, req.Code)
	return s.reply(b, err)
}

func (s *Service) GetBadge(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req badgeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	b, err := s.checkpoint.GetBadge(ctx, s.session, req.Code)
	return s.reply(b, err)
}

func (s *Service) ReportBadgeLost(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req badgeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	a, err := s.checkpoint.ReportBadgeLost(ctx, s.session, req.Code)
	return s.reply(a, err)
}

// ── Alerts ───────────────────────────────────────────────────────────────────

func (s *Service) ListAlerts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		OpenOnly    bool   `json:"open_only"`
		IdentityKey string `json:"identity_key"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	alerts, err := s.checkpoint.ListAlerts(ctx, s.session, store.AlertFilter{
		OpenOnly:    req.OpenOnly,
		IdentityKey: req.IdentityKey,
	})
	return s.reply(map[string]any{"alerts": alerts}, err)
}

func (s *Service) ResolveAlert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		AlertID string `json:"alert_id"`
		Note    string `json:"note"`
	}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	a, err := s.checkpoint.ResolveAlert(ctx, s.session, req.AlertID, req.Note)
	return s.reply(a, err)
}

// ── Encoding ─────────────────────────────────────────────────────────────────

// decode maps Struct fields onto dst through their JSON names. Unknown
// fields are rejected.
func decode(in *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}

func (s *Service) reply(v any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, s.toStatus(err)
	}
	out, err := toStruct(v)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		return nil, status.Error(codes.Internal, "unexpected server error")
	}
	return out, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
