package main

import (
	"github.com/ytget/soft-downloader/internal/cli"
)

var version = "dev"

func main() {
	cli.Execute(cli.BuildInfo{Version: version})
}
