// Package version holds the build version of ttscorpus.
package version

// Version is overridden at build time with -ldflags "-X ttscorpus/pkg/version.Version=...".
var Version = "v0.3.0"
