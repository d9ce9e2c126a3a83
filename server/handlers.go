package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/renderer"
	"github.com/etnz/folio/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.valuator.State().String(),
	})
}

// snapshot returns the valuation of the requested period. The first request
// loads the holdings, a period change runs a new cycle. The cycle outlives the
// request: it is shared by every client.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (folio.Snapshot, bool) {
	ctx := r.Context()
	refresh := false
	if s.valuator.State() == folio.Idle {
		holdings, err := s.store.List(ctx, s.user)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return folio.Snapshot{}, false
		}
		s.valuator.SetHoldings(holdings)
		refresh = true
	}
	if q := r.URL.Query().Get("period"); q != "" {
		p, err := date.ParsePeriod(q)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return folio.Snapshot{}, false
		}
		if p != s.valuator.Snapshot().Period {
			s.valuator.SetPeriod(p)
			refresh = true
		}
	}
	if refresh {
		s.valuator.Refresh(context.WithoutCancel(ctx))
	}
	return s.valuator.Snapshot(), true
}

func (s *Server) portfolio(w http.ResponseWriter, r *http.Request) (*renderer.Portfolio, bool) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return nil, false
	}
	return renderer.NewPortfolio(s.user, snap, s.fx), true
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolio(w, r)
	if !ok {
		return
	}
	png, err := renderer.Chart(p)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolio(w, r)
	if !ok {
		return
	}
	page, err := renderer.HTML(s.user, renderer.RenderPortfolio(p))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(page))
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil {
		s.writeError(w, http.StatusNotFound, "advisor is not configured")
		return
	}
	p, ok := s.portfolio(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"advice": s.advisor.Advise(r.Context(), p)})
}

func (s *Server) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.store.List(r.Context(), s.user)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if holdings == nil {
		holdings = []folio.Holding{}
	}
	s.writeJSON(w, http.StatusOK, holdings)
}

func (s *Server) handleAddHolding(w http.ResponseWriter, r *http.Request) {
	var h folio.Holding
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid holding: "+err.Error())
		return
	}
	h, err := s.store.Add(r.Context(), s.user, h)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), s.user, chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sellRequest struct {
	Quantity folio.Quantity `json:"quantity"`
}

type sellResponse struct {
	Holding *folio.Holding `json:"holding,omitempty"`
	Deleted bool           `json:"deleted"`
}

func (s *Server) handleSellHolding(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sale: "+err.Error())
		return
	}
	h, deleted, err := s.store.Reduce(r.Context(), s.user, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	resp := sellResponse{Deleted: deleted}
	if !deleted {
		resp.Holding = &h
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeStoreError maps the store errors to HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, folio.ErrOversell):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, folio.ErrInvalidHolding), errors.Is(err, store.ErrInvalidUser):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("store failure")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
