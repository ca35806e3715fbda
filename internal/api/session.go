// session.go - Cookie-bound workflow sessions
package api

import (
	"net/http"

	"github.com/grainco/texture-analyzer/internal/workflow"
	"github.com/labstack/echo/v4"
)

// SessionCookie names the cookie holding the session id
const SessionCookie = "texture_session"

const workflowKey = "workflow"

// SessionMiddleware attaches the caller's workflow to the context,
// starting a new session when the cookie is missing or stale.
func SessionMiddleware(sessions SessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var current string
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				current = cookie.Value
			}

			id, wf := sessions.GetOrCreate(current)
			if id != current {
				c.SetCookie(&http.Cookie{
					Name:     SessionCookie,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(workflowKey, wf)
			return next(c)
		}
	}
}

// workflowFrom returns the workflow attached by SessionMiddleware
func workflowFrom(c echo.Context) (*workflow.Workflow, error) {
	wf, ok := c.Get(workflowKey).(*workflow.Workflow)
	if !ok || wf == nil {
		return nil, NewInternalError("no session attached to request", nil)
	}
	return wf, nil
}
