package protocol

import (
	"net"
	"net/url"
	"strconv"
)

// Endpoint is where a host can be reached.
type Endpoint struct {
	Protocol string
	Host     string
	Port     int
}

func (e Endpoint) roomURL(room RoomID, suffix ...string) *url.URL {
	path := "/api/" + string(room)
	rawPath := "/api/" + url.PathEscape(string(room))
	for _, s := range suffix {
		path += "/" + s
		rawPath += "/" + url.PathEscape(s)
	}
	return &url.URL{
		Scheme:  e.Protocol,
		Host:    net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
		Path:    path,
		RawPath: rawPath,
	}
}

// AttachURL is the long-lived listener endpoint for room.
func AttachURL(e Endpoint, room RoomID, codec string) string {
	u := e.roomURL(room)
	if codec != "" && codec != CodecJSON {
		u.RawQuery = url.Values{"codec": {codec}}.Encode()
	}
	return u.String()
}

// ClickURL is the short request endpoint for the given sound.
func ClickURL(e Endpoint, room RoomID, sound SoundReference) string {
	if sound.IsDefault() {
		return e.roomURL(room, "click").String()
	}
	return e.roomURL(room, "custom", SanitizeSoundName(sound.Name)).String()
}
