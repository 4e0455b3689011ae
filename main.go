package main

import "github.com/NKRTECH/unified-inbox/cmd"

func main() {
	cmd.Execute()
}
