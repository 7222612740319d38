package main

import (
	"fmt"
	"log"
	"os"

	"github.com/edgelesssys/go-snp-guest/snp"
)

func main() {
	if err := testSNP(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func testSNP() error {
	handle, err := snp.Open()
	if err != nil {
		return err
	}
	defer handle.Close()

	reportData := []byte("Hello from Edgeless Systems!")
	report, err := snp.GetReport(handle, reportData, 0)
	if err != nil {
		return err
	}

	if err := os.WriteFile("report", report, 0o644); err != nil {
		return err
	}
	log.Println("Successfully written report")

	key, err := snp.GetDerivedKey(handle, &snp.DerivedKeyReq{})
	if err != nil {
		return err
	}
	log.Printf("Derived key: %x", key)

	return nil
}
