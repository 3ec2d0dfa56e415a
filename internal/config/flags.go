package config

import (
	"github.com/spf13/pflag"

	"github.com/clickrtraining/clickrtraining/internal/hub"
)

// GlobalFlags registers the flags every role shares.
func GlobalFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "Path to a YAML config file (default "+DefaultConfigFile+" if present)")
	fs.BoolP(FlagVerbose, "v", false, "Enable debug logging")
}

// HostFlags registers the host role flags.
func HostFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagAddr, "a", "", "The host address to bind (empty for all interfaces)")
	fs.IntP(FlagPort, "p", DefaultPort, "The port to bind")
	fs.String(FlagTLSCert, "", "TLS certificate file")
	fs.String(FlagTLSKey, "", "TLS private key file")
	fs.Duration(FlagPingPeriod, 0, "Keepalive ping interval (default 9/10 of --pong-wait)")
	fs.Duration(FlagPongWait, hub.DefaultPongWait, "How long a silent listener is kept")
	fs.Int(FlagQueueSize, hub.DefaultQueueSize, "Pending events per listener before the oldest is dropped")
}

// ListenFlags registers the listener role flags.
func ListenFlags(fs *pflag.FlagSet) {
	endpointFlags(fs, DefaultListenScheme)
	fs.Float64(FlagVolume, DefaultVolume, "Playback volume")
	fs.StringP(FlagSoundsDir, "s", DefaultSoundsDir, "Directory of custom sounds")
	fs.String(FlagCodec, DefaultCodec, "Wire codec (json or msgpack)")
	fs.Duration(FlagMinBackoff, DefaultMinBackoff, "Initial reconnect delay")
	fs.Duration(FlagMaxBackoff, DefaultMaxBackoff, "Maximum reconnect delay")
}

// ClickFlags registers the click role flags.
func ClickFlags(fs *pflag.FlagSet) {
	endpointFlags(fs, DefaultClickScheme)
	fs.StringP(FlagSound, "s", "", "Custom sound name (default click if empty)")
	fs.Duration(FlagTimeout, DefaultClickTimeout, "Request timeout")
}

func endpointFlags(fs *pflag.FlagSet, scheme string) {
	fs.String(FlagProtocol, scheme, "The protocol to use")
	fs.StringP(FlagAddr, "a", DefaultAddr, "The host address")
	fs.IntP(FlagPort, "p", DefaultPort, "The host port")
	fs.StringP(FlagID, "i", "", "The room id")
}
