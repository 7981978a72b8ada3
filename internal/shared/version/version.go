package version

// Version is overridden at build time with -ldflags "-X modpack/internal/shared/version.Version=...".
var Version = "dev"
