package live

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Authenticator resolves the token a browser passes as ?token= (websocket
// handshakes cannot carry an Authorization header).
type Authenticator interface {
	Identify(token string) (userID, role string, err error)
}

// LiveHandler upgrades authenticated requests to websockets.
type LiveHandler struct {
	hub      *Hub
	auth     Authenticator
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a new handler for live updates. Browser handshakes
// are accepted from the listed origins and from the API's own host.
func NewLiveHandler(hub *Hub, auth Authenticator, origins []string) *LiveHandler {
	return &LiveHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS does not apply to websocket upgrades.
			CheckOrigin: CheckOrigin(origins),
		},
	}
}

// CheckOrigin accepts requests without an Origin header, from one of allowed
// ("*" allows any), or from the request's own host.
func CheckOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Connect registers the caller with the hub until the socket closes.
func (h *LiveHandler) Connect(c echo.Context) error {
	userID, role, err := h.auth.Identify(c.QueryParam("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid Token"})
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return nil
	}
	h.hub.Serve(conn, userID, role)
	return nil
}
