package runner

import (
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/pkg/version"
)

var banner = `
   _
  (_)___  ______      _____  ___  ____
 / / __ \/ ___/ | /| / / _ \/ _ \/ __ \
/ / /_/ (__  )| |/ |/ /  __/  __/ /_/ /
/_/ .___/____/ |__/|__/\___/\___/ .___/
 /_/                           /_/
`

// showBanner is used to show the banner to the user
func showBanner() {
	gologger.Print().Msgf("%s %s\n", banner, version.GetVersion())
	gologger.Print().Msgf("\t\tprojectdiscovery.io\n\n")
}
