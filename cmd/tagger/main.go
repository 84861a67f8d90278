package main

import (
	"context"

	"github.com/bryanwahyu/knit-tagger/cmd/tagger/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
