package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/authsession/internal/agent/client"
	"github.com/aussiebroadwan/authsession/internal/agent/navigator"
	"github.com/aussiebroadwan/authsession/internal/agent/notice"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/session"
)

// SessionHandler reports the session state without touching the token.
type SessionHandler struct {
	Coordinator *session.Coordinator
	Navigator   *navigator.Navigator
	Notice      *notice.Notice
	Storage     StorageStatus
}

// ServeHTTP godoc
//
//	@Summary		Session status
//	@Description	Reports whether a session is active, when it expires, whether storage fell back to memory and the last expiry notice.
//	@Tags			Session
//	@Produce		json
//	@Security		AgentSecret
//	@Success		200	{object}	client.SessionResponse
//	@Router			/v1/session [get]
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := client.SessionResponse{
		StorageDegraded: h.Storage.Degraded(),
		LoginURL:        h.Navigator.LastRedirect(),
	}

	if id := h.Coordinator.GetCurrentIdentity(); id != nil && h.Coordinator.IsAuthenticated() {
		resp.Authenticated = true
		resp.Subject = id.SubjectID
		if exp, ok := h.Coordinator.Expiry(); ok {
			resp.ExpiresAt = exp
			resp.ExpiresIn = int(time.Until(exp).Seconds())
		}
	}

	if ev, ok := h.Notice.Last(); ok {
		n := &client.ExpiredNotice{Subject: ev.Subject, At: ev.At}
		if ev.Cause != nil {
			n.Reason = ev.Cause.Error()
		}
		resp.LastExpired = n
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
