// Command lexcite builds and maintains the legal Q&A retrieval index.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
