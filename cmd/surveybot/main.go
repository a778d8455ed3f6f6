package main

import (
	"log"

	corecmd "surveybot/core/cmd"
)

func main() {
	if err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config/config.yaml",
	}); err != nil {
		log.Fatalf("surveybot: %v", err)
	}
}
