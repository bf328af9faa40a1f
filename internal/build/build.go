// Package build carries version information stamped at link time.
package build

// Version is overridden by the release build:
//
//	go build -ldflags "-X github.com/drummonds/pdfsnip/internal/build.Version=v1.2.3"
var Version = "dev"
