// Command assistantctl loads the business datasets and runs the assistant's
// query tools from a terminal, without the model or WhatsApp in the loop.
package main

import (
	"os"

	"crm_assistant_backend/platform/config"
)

func main() {
	if err := newRootCmd(config.Load).Execute(); err != nil {
		os.Exit(1)
	}
}
