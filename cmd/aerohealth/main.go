package main

import (
	"github.com/clusterops/aerohealth/cmd/aerohealth/cli"
)

func main() {
	cli.InitAndExecute()
}
