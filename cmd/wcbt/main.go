// Command wcbt is the CLI entry point for the backup/restore/verify engine.
package main

import "github.com/wcbt-project/wcbt/internal/cli"

func main() {
	cli.Execute()
}
