// Command irisd runs the IrisRESTful/WADO-RS slide server (§4).
package main

import (
	"log"
	"os"

	"github.com/searchktools/iris-restful/app"
	"github.com/searchktools/iris-restful/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("irisd: %v", err)
	}

	if err := app.New(cfg).Run(); err != nil {
		log.Fatalf("irisd: %v", err)
	}
}
