// Command tforge runs task-decomposition plans to completion.
package main

import (
	"github.com/taskforge/taskforge/internal/cmd"
)

func main() {
	cmd.Execute()
}
