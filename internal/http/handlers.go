package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"trackmeta/internal/field"
	"trackmeta/internal/i18n"
	"trackmeta/internal/metadata"
	"trackmeta/pkg/soundcloud"
)

// Error codes returned next to resolution kinds in error bodies.
const (
	codeInvalidReference = "invalid_reference"
	codeInvalidClientID  = "invalid_client_id"
	codeNotConfigured    = "not_configured"
	codeStale            = "stale"
	codeRateLimited      = "rate_limited"
	codeBadRequest       = "bad_request"
	codeFieldEmpty       = "field_empty"
	codeInternal         = "internal"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type referenceRequest struct {
	Reference string `json:"reference"`
}

type referenceResponse struct {
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

type resolveRequest struct {
	Reference string `json:"reference"`
	User      string `json:"user"`
}

type configResponse struct {
	ClientID   string `json:"clientId"`
	Configured bool   `json:"configured"`
	Message    string `json:"message,omitempty"`
}

func (s *Server) localizer(r *http.Request) *i18n.Localizer {
	return i18n.NewLocalizer(i18n.MatchAcceptLanguage(r.Header.Get("Accept-Language"), s.language))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func (s *Server) fieldKey(w http.ResponseWriter, r *http.Request) (field.Key, bool) {
	key, err := field.NewKey(r.PathValue("entry"), r.PathValue("field"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, s.localizer(r).T("error.bad_request"))
		return field.Key{}, false
	}
	return key, true
}

func (s *Server) getFieldHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := s.fieldKey(w, r)
	if !ok {
		return
	}

	state, err := s.deps.Fields.Editor(key).State(r.Context())
	if err != nil {
		s.logger.Error("Failed to load field", zap.String("field", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, s.localizer(r).T("error.generic"))
		return
	}
	if state.Metadata == nil {
		writeError(w, http.StatusNotFound, codeFieldEmpty, s.localizer(r).T("error.field_empty"))
		return
	}

	data, err := metadata.Encode(state.Metadata)
	if err != nil {
		s.logger.Error("Failed to encode field", zap.String("field", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, s.localizer(r).T("error.generic"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if state.Reference != "" {
		w.Header().Set("X-Track-Reference", state.Reference)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) putReferenceHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := s.fieldKey(w, r)
	if !ok {
		return
	}
	loc := s.localizer(r)

	var req referenceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, loc.T("error.bad_request"))
		return
	}

	if err := s.deps.Fields.Editor(key).SetReference(r.Context(), req.Reference); err != nil {
		s.logger.Error("Failed to update reference", zap.String("field", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, loc.T("error.generic"))
		return
	}
	s.metrics.RecordReferenceEdit()

	writeJSON(w, http.StatusOK, referenceResponse{
		Reference: req.Reference,
		Message:   loc.T("success.reference_updated"),
	})
}

func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := s.fieldKey(w, r)
	if !ok {
		return
	}
	loc := s.localizer(r)

	// The body is optional; without one the field's current reference is used.
	var req resolveRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeBadRequest, loc.T("error.bad_request"))
		return
	}

	if s.deps.Limiter != nil {
		if allowed, retryAfter := s.deps.Limiter.Allow(key.String(), req.User); !allowed {
			s.metrics.RecordRateLimited()
			seconds := int((retryAfter + time.Second - 1) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, http.StatusTooManyRequests, codeRateLimited, loc.T("error.rate_limited", seconds))
			return
		}
	}

	start := time.Now()
	md, err := s.deps.Fields.Editor(key).Generate(r.Context(), req.Reference)
	if err != nil {
		outcome := s.writeGenerateError(w, loc, err)
		s.metrics.RecordResolution(outcome, time.Since(start))
		s.logger.Info("Resolve request failed",
			zap.String("field", key.String()),
			zap.String("outcome", outcome),
			zap.Error(err))
		return
	}
	s.metrics.RecordResolution("success", time.Since(start))

	data, err := metadata.Encode(md)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, loc.T("error.generic"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeGenerateError maps a Generate failure to a response and returns the
// metrics outcome label.
func (s *Server) writeGenerateError(w http.ResponseWriter, loc *i18n.Localizer, err error) string {
	var resErr *metadata.ResolutionError
	switch {
	case errors.Is(err, soundcloud.ErrEmptyReference):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidReference, loc.T("validation.reference"))
		return codeInvalidReference
	case errors.Is(err, field.ErrStale):
		writeError(w, http.StatusConflict, codeStale, loc.T("error.stale"))
		return codeStale
	case errors.Is(err, field.ErrNotConfigured):
		writeError(w, http.StatusPreconditionFailed, codeNotConfigured, loc.T("error.not_configured"))
		return codeNotConfigured
	case errors.As(err, &resErr):
		kind := resErr.Kind.String()
		status := http.StatusBadGateway
		switch resErr.Kind {
		case metadata.KindNotFound:
			status = http.StatusNotFound
		case metadata.KindInvalidStreamURL, metadata.KindDegenerateWaveform:
			status = http.StatusUnprocessableEntity
		case metadata.KindTransientUpstream:
			status = http.StatusServiceUnavailable
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		}
		writeError(w, status, kind, loc.T("error."+kind))
		return kind
	default:
		s.logger.Error("Unexpected resolve failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, loc.T("error.generic"))
		return codeInternal
	}
}

func (s *Server) getConfigHandler(w http.ResponseWriter, r *http.Request) {
	params, err := s.deps.Config.Get(r.Context())
	switch {
	case errors.Is(err, field.ErrNotConfigured):
		writeJSON(w, http.StatusOK, configResponse{})
	case err != nil:
		s.logger.Error("Failed to load configuration", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, s.localizer(r).T("error.generic"))
	default:
		writeJSON(w, http.StatusOK, configResponse{ClientID: params.ClientID, Configured: true})
	}
}

func (s *Server) putConfigHandler(w http.ResponseWriter, r *http.Request) {
	loc := s.localizer(r)

	var params field.InstallationParameters
	if err := decodeBody(w, r, &params); err != nil {
		s.metrics.RecordConfigUpdate("invalid")
		writeError(w, http.StatusBadRequest, codeBadRequest, loc.T("error.bad_request"))
		return
	}

	saved, err := s.deps.Config.Save(r.Context(), params)
	switch {
	case errors.Is(err, field.ErrInvalidClientID):
		s.metrics.RecordConfigUpdate("invalid")
		writeError(w, http.StatusUnprocessableEntity, codeInvalidClientID, loc.T("validation.client_id"))
		return
	case err != nil:
		s.metrics.RecordConfigUpdate("error")
		s.logger.Error("Failed to save configuration", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, loc.T("error.generic"))
		return
	}

	s.metrics.RecordConfigUpdate("saved")
	s.logger.Info("Installation configuration saved")
	writeJSON(w, http.StatusOK, configResponse{
		ClientID:   saved.ClientID,
		Configured: true,
		Message:    loc.T("success.config_saved"),
	})
}
