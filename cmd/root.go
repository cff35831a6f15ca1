package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dRL/cmd/lock"
	"github.com/ValentinKolb/dRL/cmd/records"
	"github.com/ValentinKolb/dRL/cmd/serve"
	"github.com/ValentinKolb/dRL/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "drl",
		Short: "lease based record locking",
		Long: fmt.Sprintf(`dRL (v%s)

Advisory, lease based locking of records. Locks are soft or hard,
expire after a configurable interval and are stored in memory,
replicated with RAFT or kept in Redis.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dRL",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dRL v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(records.RecordCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
