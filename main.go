package main

import (
	"fmt"
	"os"

	"github.com/edgelesssys/go-snp-guest/verification/types"
)

func main() {
	if err := parseBlob(); err != nil {
		panic(err)
	}
}

func parseBlob() error {
	path := "report"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	rawReport, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	report, err := types.ParseReport(rawReport)
	if err != nil {
		return err
	}

	fmt.Println(report)

	return nil
}
