// File: cmd/hioload-relay/main.go
// Author: momentics <momentics@gmail.com>

package main

import "github.com/momentics/hioload-relay/cmd"

func main() {
	cmd.Execute()
}
