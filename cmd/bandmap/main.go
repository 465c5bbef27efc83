// Command bandmap serves and queries the band map API.
package main

import (
	"context"
	"os"

	"github.com/roach88/bandmap/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	os.Exit(cli.GetExitCode(err))
}
