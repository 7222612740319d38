package main

import (
	"context"
	"fmt"
	"os"

	"github.com/edgelesssys/go-snp-guest/verification"
	"github.com/edgelesssys/go-snp-guest/verification/kds"
)

func main() {
	if err := testVerify(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func testVerify() error {
	path := "report"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	product := kds.ProductMilan
	if len(os.Args) > 2 {
		product = os.Args[2]
	}

	rawReport, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	verifier := verification.New()
	return verifier.Verify(context.Background(), rawReport, product)
}
