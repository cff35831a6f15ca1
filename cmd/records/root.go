package records

import (
	"github.com/ValentinKolb/dRL/cmd/util"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// RecordCommands represents the record command group
	RecordCommands = &cobra.Command{
		Use:               "record",
		Short:             "Perform record operations",
		PersistentPreRunE: setupRecordClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the record command
	util.SetupRPCClientFlags(RecordCommands)

	// Add subcommands
	RecordCommands.AddCommand(createCmd)
	RecordCommands.AddCommand(getCmd)
	RecordCommands.AddCommand(delCmd)
	RecordCommands.AddCommand(listCmd)
	RecordCommands.AddCommand(infoCmd)

	createCmd.Flags().String("id", "", util.WrapString("ID of the new record (a random UUID if empty)"))
}

// setupRecordClient initializes the RPC store client
func setupRecordClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	shardId := util.GetShardID()

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcStore, err = client.NewRPCStore(
		shardId,
		*config,
		t,
		s,
	)

	return err
}
