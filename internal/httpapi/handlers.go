package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// ── Session ──────────────────────────────────────────────────────────────────

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	sess, err := s.checkpoint.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.checkpoint.Logout(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, sess)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.checkpoint.CurrentSession()
	if !ok {
		s.fail(w, r, session.ErrNoSession)
		return
	}
	s.respond(w, r, http.StatusOK, sess)
}

// ── Entries ──────────────────────────────────────────────────────────────────

// entryRequest is the wire form of types.EntryRequest.
type entryRequest struct {
	IdentityKey         string     `json:"identity_key"`
	Name                string     `json:"name"`
	Category            string     `json:"category"`
	HostRef             string     `json:"host_ref,omitempty"`
	CompanyRef          string     `json:"company_ref,omitempty"`
	VehicleRef          string     `json:"vehicle_ref,omitempty"`
	ExpectedStayMinutes int        `json:"expected_stay_minutes,omitempty"`
	RequestedAt         *time.Time `json:"requested_at,omitempty"`
}

func (e entryRequest) toDomain() types.EntryRequest {
	req := types.EntryRequest{
		Identity: types.Identity{
			Key:      e.IdentityKey,
			Name:     e.Name,
			Category: types.Category(e.Category),
		},
		HostRef:      e.HostRef,
		CompanyRef:   e.CompanyRef,
		VehicleRef:   e.VehicleRef,
		ExpectedStay: time.Duration(e.ExpectedStayMinutes) * time.Minute,
	}
	if e.RequestedAt != nil {
		req.RequestedAt = *e.RequestedAt
	}
	return req
}

func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	rec, err := s.checkpoint.SubmitEntry(r.Context(), s.session, req.toDomain())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, rec)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	f := store.EntryFilter{
		State:       types.EntryState(r.URL.Query().Get("state")),
		IdentityKey: r.URL.Query().Get("identity_key"),
	}
	recs, err := s.checkpoint.ListEntries(r.Context(), s.session, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]any{"entries": recs})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	rec, err := s.checkpoint.GetEntry(r.Context(), s.session, chi.URLParam(r, "entryID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, rec)
}

type issueBadgeRequest struct {
	BadgeCode string `json:"badge_code"`
	Override  bool   `json:"override,omitempty"`
}

func (s *Server) handleIssueBadge(w http.ResponseWriter, r *http.Request) {
	var req issueBadgeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	rec, err := s.checkpoint.IssueBadge(r.Context(), s.session, chi.URLParam(r, "entryID"), req.BadgeCode, req.Override)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, rec)
}

type exitRequest struct {
	// PresentedBadge is absent when nothing was handed back.
	PresentedBadge *string `json:"presented_badge,omitempty"`
}

func (s *Server) handleSubmitExit(w http.ResponseWriter, r *http.Request) {
	var req exitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	res, err := s.checkpoint.SubmitExit(r.Context(), s.session, chi.URLParam(r, "entryID"), req.PresentedBadge)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, res)
}

// ── Badges ───────────────────────────────────────────────────────────────────

type registerBadgeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleRegisterBadge(w http.ResponseWriter, r *http.Request) {
	var req registerBadgeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	b, err := s.checkpoint.RegisterBadge(r.Context(), s.session, req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, b)
}

func (s *Server) handleGetBadge(w http.ResponseWriter, r *http.Request) {
	b, err := s.checkpoint.GetBadge(r.Context(), s.session, chi.URLParam(r, "code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, b)
}

func (s *Server) handleReportLost(w http.ResponseWriter, r *http.Request) {
	a, err := s.checkpoint.ReportBadgeLost(r.Context(), s.session, chi.URLParam(r, "code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, a)
}

// ── Alerts ───────────────────────────────────────────────────────────────────

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var openOnly bool
	if v := r.URL.Query().Get("open"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: open=%q is not a boolean", service.ErrInvalidInput, v))
			return
		}
		openOnly = b
	}
	alerts, err := s.checkpoint.ListAlerts(r.Context(), s.session, store.AlertFilter{
		OpenOnly:    openOnly,
		IdentityKey: r.URL.Query().Get("identity_key"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]any{"alerts": alerts})
}

type resolveAlertRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	var req resolveAlertRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	a, err := s.checkpoint.ResolveAlert(r.Context(), s.session, chi.URLParam(r, "alertID"), req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, a)
}
