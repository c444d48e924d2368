package main

import (
	"github.com/ytget/soft-downloader/internal/cli"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z -X main.commit=..."
var (
	version = "dev"
	commit  = ""
)

func main() {
	cli.Execute(cli.BuildInfo{Version: version, Commit: commit})
}
