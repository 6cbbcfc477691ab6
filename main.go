// main.go
package main

import (
	"log"

	"senha-system/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
