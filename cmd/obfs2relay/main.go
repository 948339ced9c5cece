// Command obfs2relay runs the obfuscated2 Telegram relay.
package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/obfs2relay/obfs2relay/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cliStruct := &cli.CLI{}

	parser := kong.Must(
		cliStruct,
		kong.Name("obfs2relay"),
		kong.Description("An obfuscated2-speaking relay for Telegram's MTProto transport."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx.FatalIfErrorf(ctx.Run(cliStruct, version))
}
