package version

// Version is set at build time via -ldflags "-X github.com/imagespy/inspect/version.Version=...".
var Version = "dev"
