package config

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/clickrtraining/clickrtraining/internal/protocol"
)

// HostConfig configures the host role.
type HostConfig struct {
	Addr       string
	Port       int
	TLSCert    string
	TLSKey     string
	PingPeriod time.Duration
	PongWait   time.Duration
	QueueSize  int
	Verbose    bool
}

// ListenAddress is the address the HTTP server binds.
func (c *HostConfig) ListenAddress() string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(c.Port))
}

// TLS reports whether a certificate pair was configured.
func (c *HostConfig) TLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// LoadHost reads and validates the host role configuration.
func LoadHost(v *viper.Viper) (*HostConfig, error) {
	cfg := &HostConfig{
		Addr:       v.GetString(FlagAddr),
		Port:       v.GetInt(FlagPort),
		TLSCert:    v.GetString(FlagTLSCert),
		TLSKey:     v.GetString(FlagTLSKey),
		PingPeriod: v.GetDuration(FlagPingPeriod),
		PongWait:   v.GetDuration(FlagPongWait),
		QueueSize:  v.GetInt(FlagQueueSize),
		Verbose:    v.GetBool(FlagVerbose),
	}

	if cfg.Port < 0 || cfg.Port > maxPort {
		return nil, invalid("port %d out of range", cfg.Port)
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, invalid("--%s and --%s must be set together", FlagTLSCert, FlagTLSKey)
	}
	if cfg.PongWait > 0 && cfg.PingPeriod >= cfg.PongWait {
		return nil, invalid("--%s must be shorter than --%s", FlagPingPeriod, FlagPongWait)
	}
	if cfg.QueueSize < 0 {
		return nil, invalid("--%s must not be negative", FlagQueueSize)
	}
	return cfg, nil
}

// ListenConfig configures the listener role.
type ListenConfig struct {
	Endpoint   protocol.Endpoint
	Room       protocol.RoomID
	Volume     float64
	SoundsDir  string
	Codec      string
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Verbose    bool
}

// URL is the room's attach endpoint.
func (c *ListenConfig) URL() string {
	return protocol.AttachURL(c.Endpoint, c.Room, c.Codec)
}

// LoadListen reads and validates the listener role configuration.
func LoadListen(v *viper.Viper) (*ListenConfig, error) {
	endpoint, err := loadEndpoint(v, listenerSchemes)
	if err != nil {
		return nil, err
	}
	room, err := protocol.ParseRoomID(v.GetString(FlagID))
	if err != nil {
		return nil, protocol.NewError("room id", err)
	}
	soundsDir, err := ExpandHome(v.GetString(FlagSoundsDir))
	if err != nil {
		return nil, err
	}
	codec := v.GetString(FlagCodec)
	if _, err := protocol.CodecByName(codec); err != nil {
		return nil, invalid("codec %q", codec)
	}

	cfg := &ListenConfig{
		Endpoint:   endpoint,
		Room:       room,
		Volume:     v.GetFloat64(FlagVolume),
		SoundsDir:  soundsDir,
		Codec:      codec,
		MinBackoff: v.GetDuration(FlagMinBackoff),
		MaxBackoff: v.GetDuration(FlagMaxBackoff),
		Verbose:    v.GetBool(FlagVerbose),
	}

	if cfg.Volume < 0 || cfg.Volume > maxVolume {
		return nil, invalid("volume %.2f must be between 0 and %.1f", cfg.Volume, maxVolume)
	}
	if cfg.MinBackoff <= 0 || cfg.MaxBackoff < cfg.MinBackoff {
		return nil, invalid("backoff range %s..%s", cfg.MinBackoff, cfg.MaxBackoff)
	}
	return cfg, nil
}

// ClickConfig configures the click role.
type ClickConfig struct {
	Endpoint protocol.Endpoint
	Room     protocol.RoomID
	Sound    protocol.SoundReference
	Timeout  time.Duration
	Verbose  bool
}

// URL is the click endpoint for the configured sound.
func (c *ClickConfig) URL() string {
	return protocol.ClickURL(c.Endpoint, c.Room, c.Sound)
}

// LoadClick reads and validates the click role configuration.
func LoadClick(v *viper.Viper) (*ClickConfig, error) {
	endpoint, err := loadEndpoint(v, clickSchemes)
	if err != nil {
		return nil, err
	}
	room, err := protocol.ParseRoomID(v.GetString(FlagID))
	if err != nil {
		return nil, protocol.NewError("room id", err)
	}

	sound := protocol.DefaultSound()
	if raw := v.GetString(FlagSound); raw != "" {
		if sound, err = protocol.ParseSoundName(raw); err != nil {
			return nil, protocol.NewError("sound", err)
		}
	}

	cfg := &ClickConfig{
		Endpoint: endpoint,
		Room:     room,
		Sound:    sound,
		Timeout:  v.GetDuration(FlagTimeout),
		Verbose:  v.GetBool(FlagVerbose),
	}
	if cfg.Timeout <= 0 {
		return nil, invalid("--%s must be positive", FlagTimeout)
	}
	return cfg, nil
}

func loadEndpoint(v *viper.Viper, schemes string) (protocol.Endpoint, error) {
	e := protocol.Endpoint{
		Protocol: v.GetString(FlagProtocol),
		Host:     v.GetString(FlagAddr),
		Port:     v.GetInt(FlagPort),
	}
	if !oneOf(e.Protocol, schemes) {
		return e, invalid("protocol %q, expected one of %s", e.Protocol, schemes)
	}
	if e.Host == "" {
		return e, invalid("host address is empty")
	}
	if e.Port < minPort || e.Port > maxPort {
		return e, invalid("port %d out of range", e.Port)
	}
	return e, nil
}
