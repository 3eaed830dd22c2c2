package httpapi

import (
	"errors"
	"html/template"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zhengpenghou/lanpaste/internal/admission"
	"github.com/zhengpenghou/lanpaste/internal/apikeys"
	"github.com/zhengpenghou/lanpaste/internal/idempotency"
	"github.com/zhengpenghou/lanpaste/internal/render"
	"github.com/zhengpenghou/lanpaste/internal/store"
)

const idempotencyKeyHeader = "Idempotency-Key"
const apiKeyHeader = "X-API-Key"
const pasteTokenHeader = "X-Paste-Token"

// clientIP returns the raw TCP socket peer IP; X-Forwarded-For is
// deliberately never consulted, per spec.md §9.
func clientIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

func (s *Server) denyToStatus(err *admission.Error) *apiError {
	switch err.Kind {
	case admission.KindForbidden:
		return newAPIError(http.StatusForbidden, "forbidden", err.Message)
	case admission.KindUnauthorized:
		return newAPIError(http.StatusUnauthorized, "unauthorized", err.Message)
	case admission.KindRateLimited:
		return newAPIError(http.StatusTooManyRequests, "too_many_requests", err.Message)
	case admission.KindTooLarge:
		return newAPIError(http.StatusRequestEntityTooLarge, "too_large", err.Message)
	default:
		return errInternal
	}
}

// authenticate runs admission steps 2-4 for a protected, non-create route
// and writes the appropriate error response on denial. It returns ok=false
// when the caller should stop processing.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, scope string) (principal string, ok bool) {
	principal, err := s.gate.Authenticate(r.Header.Get(apiKeyHeader), r.Header.Get(pasteTokenHeader), scope)
	if err != nil {
		var aerr *admission.Error
		if errors.As(err, &aerr) {
			writeError(w, s.denyToStatus(aerr))
		} else {
			writeError(w, errInternal)
		}
		return "", false
	}
	return principal, true
}

func (s *Server) handleAPIIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, apikeys.ScopeAPIIndex); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "lanpaste",
		"version": "v1",
		"endpoints": []string{
			"/api/v1/paste (POST)",
			"/api/v1/p/{id} (GET)",
			"/api/v1/p/{id}/raw (GET)",
			"/api/v1/recent?n=50&tag=... (GET)",
			"/p/{id} (GET)",
			"/dashboard (GET)",
			"/healthz (GET)",
			"/readyz (GET)",
		},
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.CheckCIDR(clientIP(r)); err != nil {
		var aerr *admission.Error
		if errors.As(err, &aerr) {
			writeError(w, s.denyToStatus(aerr))
		} else {
			writeError(w, errInternal)
		}
		return
	}

	principal, err := s.gate.ResolvePrincipal(r.Header.Get(apiKeyHeader), r.Header.Get(pasteTokenHeader), apikeys.ScopePasteCreate)
	if err != nil {
		var aerr *admission.Error
		if errors.As(err, &aerr) {
			writeError(w, s.denyToStatus(aerr))
		} else {
			writeError(w, errInternal)
		}
		return
	}

	if r.ContentLength > 0 {
		if err := admission.CheckSize(r.ContentLength, s.options.MaxBytes); err != nil {
			var aerr *admission.Error
			errors.As(err, &aerr)
			writeError(w, s.denyToStatus(aerr))
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.options.MaxBytes+1))
	if err != nil {
		writeError(w, newAPIError(http.StatusBadRequest, "bad_request", "failed reading request body"))
		return
	}
	if int64(len(body)) > s.options.MaxBytes {
		writeError(w, newAPIError(http.StatusRequestEntityTooLarge, "too_large", "request body exceeds max-bytes"))
		return
	}

	name := r.URL.Query().Get("name")
	tag := r.URL.Query().Get("tag")
	msg := r.URL.Query().Get("msg")
	contentType := r.Header.Get("Content-Type")

	idemKey := r.Header.Get(idempotencyKeyHeader)
	if idemKey != "" {
		// Idempotency is consulted before the rate limiter spends a token,
		// so a replayed request never costs the caller a second token.
		fingerprint := store.Fingerprint(contentType, name, tag, body)
		outcome, cached := s.idem.CheckOrReserve(principal, idemKey, fingerprint)
		if outcome == idempotency.Replay {
			writeJSON(w, http.StatusOK, cached)
			return
		}

		if err := s.gate.ConsumeRateLimit(principal); err != nil {
			var aerr *admission.Error
			if errors.As(err, &aerr) {
				writeError(w, s.denyToStatus(aerr))
			} else {
				writeError(w, errInternal)
			}
			return
		}

		if outcome == idempotency.Conflict {
			writeError(w, newAPIError(http.StatusConflict, "conflict", "idempotency key reuse with different payload"))
			return
		}

		result, err := s.store.Create(store.CreateInput{
			Name: name, Tag: tag, Msg: msg, ContentType: contentType,
			Body: body, ClientIP: ipString(r), UserAgent: r.Header.Get("User-Agent"),
		})
		if err != nil {
			s.writeCreateError(w, err)
			return
		}
		s.logPushWarning(result)
		s.idem.Store(principal, idemKey, fingerprint, result)
		writeJSON(w, http.StatusCreated, result)
		return
	}

	if err := s.gate.ConsumeRateLimit(principal); err != nil {
		var aerr *admission.Error
		if errors.As(err, &aerr) {
			writeError(w, s.denyToStatus(aerr))
		} else {
			writeError(w, errInternal)
		}
		return
	}

	result, err := s.store.Create(store.CreateInput{
		Name: name, Tag: tag, Msg: msg, ContentType: contentType,
		Body: body, ClientIP: ipString(r), UserAgent: r.Header.Get("User-Agent"),
	})
	if err != nil {
		s.writeCreateError(w, err)
		return
	}
	s.logPushWarning(result)
	writeJSON(w, http.StatusCreated, result)
}

// logPushWarning logs a best-effort push failure. The client still gets its
// 201 with the committed paste; the push outcome is surfaced only in the
// log, per spec.md §4.8's "best_effort: ... log a warning and still return
// 201".
func (s *Server) logPushWarning(result store.CreateResult) {
	if result.PushWarning != "" {
		s.log.Logf("WARN best-effort push failed for paste %s: %s", result.ID, result.PushWarning)
	}
}

func (s *Server) writeCreateError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrPushFailed) {
		writeError(w, newAPIError(http.StatusInternalServerError, "push_failed", "push failed in strict mode"))
		return
	}
	s.log.Logf("ERROR create paste: %v", err)
	writeError(w, errInternal)
}

func ipString(r *http.Request) string {
	ip := clientIP(r)
	if ip == nil {
		return ""
	}
	return ip.String()
}

func (s *Server) handleGetMeta(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, apikeys.ScopePasteRead); !ok {
		return
	}
	id := mux.Vars(r)["id"]
	meta, err := s.store.GetMeta(id)
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleGetRaw(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, apikeys.ScopePasteRead); !ok {
		return
	}
	id := mux.Vars(r)["id"]
	body, meta, err := s.store.GetRaw(id)
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	fileName := meta.ID + "__" + meta.Slug
	if meta.Ext != "" {
		fileName += "." + meta.Ext
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) writeReadError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, errNotFound)
		return
	}
	s.log.Logf("ERROR read paste: %v", err)
	writeError(w, errInternal)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, apikeys.ScopeRecentRead); !ok {
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	tag := r.URL.Query().Get("tag")
	list, err := s.store.Recent(n, tag)
	if err != nil {
		s.log.Logf("ERROR recent: %v", err)
		writeError(w, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleRenderView(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meta, err := s.store.GetMeta(id)
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	body, _, err := s.store.GetRaw(id)
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	html, err := render.Body(meta.ContentType, string(body))
	if err != nil {
		s.log.Logf("ERROR render: %v", err)
		writeError(w, errInternal)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.renderTemplate(w, "view.html", map[string]any{
		"ID":   meta.ID,
		"Body": template.HTML(html),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Recent(20, "")
	if err != nil {
		s.log.Logf("ERROR dashboard: %v", err)
		writeError(w, errInternal)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.renderTemplate(w, "dashboard.html", map[string]any{"Pastes": list})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.store.Ready() {
		writeError(w, errNotReady)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, errNotFound)
}

func (s *Server) renderTemplate(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.log.Logf("ERROR template %s: %v", name, err)
	}
}
