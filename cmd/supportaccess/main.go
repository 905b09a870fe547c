package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/supportaccess/cli"
)

// Version is provided at compile time
var Version = "dev"

func main() {
	app := kingpin.New("supportaccess", "Consent-based, time-boxed support access to tenant data")
	app.Version(Version)

	s := cli.ConfigureGlobals(app)

	// Request lifecycle
	cli.ConfigureRequestCommand(app, s)
	cli.ConfigureApproveCommand(app, s)
	cli.ConfigureVerifyCommand(app, s)
	cli.ConfigureListCommand(app, s)
	cli.ConfigureShowCommand(app, s)

	// Setup
	cli.ConfigureInitTableCommand(app, s)
	cli.ConfigureConfigCommand(app, s)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
