// Package main provides a one-shot utility for table grant key generation.
//
// It emits the asymmetric keypair used to sign and verify table grants.
package main

import (
	"os"

	"github.com/seralith/wartable/internal/platform/config"
	"github.com/seralith/wartable/internal/tools/grantkey"
)

func main() {
	if err := grantkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate table grant key: %v", err)
	}
}
