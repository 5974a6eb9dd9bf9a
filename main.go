/*
Package main provides the entry point for the nextedit CLI.

nextedit is an inline-edit rebase and caching engine: given a document
snapshot, an assistant-suggested edit, and whatever the user typed since
then, it decides whether the suggestion can still be applied — possibly
reshaped — against the current document, or must be discarded as a
conflict.
*/
package main

import (
	"fmt"
	"os"

	"github.com/alantheprice/nextedit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
