package main

import (
	"context"
	"fmt"
	"os"

	"github.com/edgelesssys/go-snp-guest/verification/kds"
)

func main() {
	if err := kdsConnection(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func kdsConnection() error {
	client := kds.New()

	ask, ark, err := client.GetCertChain(context.Background(), kds.ProductMilan)
	if err != nil {
		return err
	}
	fmt.Println("Fetched and verified ASK/ARK certificate chain")
	fmt.Printf("ASK subject: %s\n", ask.Subject)
	fmt.Printf("ARK subject: %s\n", ark.Subject)

	return nil
}
