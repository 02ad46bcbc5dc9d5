// Operator CLI for a running server and its on-disk state: live HTTP
// reads, direct database listings and journal decoding.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "health":
			healthCmd(os.Args[2:])
			return
		case "player":
			playerCmd(os.Args[2:])
			return
		case "inventory":
			inventoryCmd(os.Args[2:])
			return
		case "players":
			playersCmd(os.Args[2:])
			return
		case "journal":
			journalCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <health|player|inventory|players|journal> [flags]")
	os.Exit(2)
}
