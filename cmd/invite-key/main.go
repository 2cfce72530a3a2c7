// Package main provides a one-shot utility for invite grant key generation.
//
// It emits the asymmetric keypair used to sign tenant invitation grants.
package main

import (
	"os"

	"github.com/louisbranch/teamspace/internal/platform/config"
	"github.com/louisbranch/teamspace/internal/tools/invitekey"
)

func main() {
	if err := invitekey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate invite grant key: %v", err)
	}
}
