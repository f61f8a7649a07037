// Command voxmemo records voice memos and transcribes them.
package main

import (
	"os"

	"github.com/haivivi/voxmemo/cmd/voxmemo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
