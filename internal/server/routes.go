package server

import (
	"errors"
	"net/http"
	"net/url"

	echo "github.com/labstack/echo/v4"

	"github.com/clickrtraining/clickrtraining/internal/hub"
	"github.com/clickrtraining/clickrtraining/internal/protocol"
)

// ClickResponse acknowledges a click. It never says how many listeners got
// the event.
type ClickResponse struct {
	Status string          `json:"status"`
	Room   protocol.RoomID `json:"room"`
	Sound  string          `json:"sound"`
}

const statusAccepted = "accepted"

func (s *Server) routes() {
	s.router.GET("/health", s.health)

	methods := []string{http.MethodGet, http.MethodPost}
	api := s.router.Group("/api")
	api.GET("/:room", s.attach)
	api.Match(methods, "/:room/click", s.click)
	api.Match(methods, "/:room/custom/:sound", s.custom)
}

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "Click host is healthy.")
}

func (s *Server) attach(c echo.Context) error {
	room, err := roomParam(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	codec, err := protocol.CodecByName(c.QueryParam("codec"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	if !c.IsWebSocket() {
		return echo.NewHTTPError(http.StatusBadRequest, "websocket upgrade required")
	}

	session, err := s.registry.Attach(room)
	if err != nil {
		if errors.Is(err, hub.ErrRegistryClosed) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error()).SetInternal(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already answered the request.
		session.Close()
		s.logger.Warn("Failed to upgrade connection", "room", room, "error", err)
		return nil
	}

	s.logger.Info("Listener connected", "room", room, "session", session.ID, "codec", codec.Name())
	err = session.Serve(c.Request().Context(), conn, codec)
	s.logger.Info("Listener disconnected", "room", room, "session", session.ID, "dropped", session.Dropped(), "error", err)
	return nil
}

func (s *Server) click(c echo.Context) error {
	room, err := roomParam(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return s.publish(c, room, protocol.DefaultSound())
}

func (s *Server) custom(c echo.Context) error {
	room, err := roomParam(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	raw, err := pathParam(c, "sound")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, protocol.ErrInvalidSoundName.Error()).SetInternal(err)
	}
	sound, err := protocol.ParseSoundName(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return s.publish(c, room, sound)
}

func (s *Server) publish(c echo.Context, room protocol.RoomID, sound protocol.SoundReference) error {
	ev := protocol.NewClickEvent(room, sound)
	delivered := s.registry.Broadcast(room, ev)
	s.logger.Debug("Click accepted", "room", room, "sound", sound, "event", ev.ID, "delivered", delivered)

	return c.JSON(http.StatusAccepted, ClickResponse{
		Status: statusAccepted,
		Room:   room,
		Sound:  sound.String(),
	})
}

func roomParam(c echo.Context) (protocol.RoomID, error) {
	raw, err := pathParam(c, "room")
	if err != nil {
		return "", protocol.NewError("room id", protocol.ErrInvalidRoomID)
	}
	return protocol.ParseRoomID(raw)
}

// pathParam returns the decoded path parameter. The router matches on the
// raw path whenever the request carried non-canonical escapes, and then
// hands out still-escaped values.
func pathParam(c echo.Context, name string) (string, error) {
	v := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}
