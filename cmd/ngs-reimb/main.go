// Command ngs-reimb runs reimbursement analyses from the command line and
// manages the analysis history and database schema.
package main

import (
	"fmt"
	"os"
)

func main() {
	c := &cli{}
	if err := c.execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
