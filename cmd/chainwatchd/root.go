package main

import (
	"github.com/spf13/cobra"

	"github.com/chainwatch/chainwatch/constant"
)

const flagHome = "home"

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "chainwatchd",
		Short:         "Multi-chain monitoring daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagHome, constant.DefaultNodeHome, "node home directory")

	InitRootCmd(rootCmd)

	return rootCmd
}
