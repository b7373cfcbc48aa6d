package main

import (
	"log"

	"travel-booking/cmd"
	_ "travel-booking/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
