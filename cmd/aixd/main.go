package main

import (
	"log"

	"github.com/aixprotocol/aix/aixd"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aixd",
		Short: "AIX Daemon",
		Long:  `AIX Daemon manages the lifecycle of the intelligence exchange components.`,
	}

	rootCmd.AddCommand(aixd.NewExchangeCmd())
	rootCmd.AddCommand(aixd.NewCoordinatorCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
