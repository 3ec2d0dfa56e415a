package version

// Version is the current version of clickrtraining.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/clickrtraining/clickrtraining/internal/version.Version=v1.0.0'"
var Version = "dev"
