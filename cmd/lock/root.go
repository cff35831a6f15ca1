package lock

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dRL/cmd/records"
	"github.com/ValentinKolb/dRL/cmd/util"
	"github.com/ValentinKolb/dRL/lib/lockable"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcLockMgr  lockable.ILockManager
	acquireHard bool

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Perform lock operations",
		PersistentPreRunE: setupLockClient,
	}

	acquireCmd = &cobra.Command{
		Use:   "acquire [id] [principal]",
		Short: "Acquire the lock of a record",
		Long:  "Acquire the lock of a record for a principal. Acquiring an own lock again refreshes it. Use --hard to block all writes while the lock is held.",
		Args:  cobra.ExactArgs(2),
		RunE:  runAcquire,
	}

	releaseCmd = &cobra.Command{
		Use:   "release [id]",
		Short: "Release the lock of a record, whoever holds it",
		Args:  cobra.ExactArgs(1),
		RunE:  runRelease,
	}

	releaseForCmd = &cobra.Command{
		Use:   "release-for [id] [principal]",
		Short: "Release the lock of a record if it is held by the principal",
		Args:  cobra.ExactArgs(2),
		RunE:  runReleaseFor,
	}

	saveCmd = &cobra.Command{
		Use:   "save [id] [key=value]...",
		Short: "Write fields of a record, denied while a hard lock is active",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSave,
	}

	statusCmd = &cobra.Command{
		Use:   "status [id] [principal]",
		Short: "Print the lock status of a record, optionally as seen by a principal",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runStatus,
	}

	lockedCmd = &cobra.Command{
		Use:   "locked",
		Short: "List all records with an active lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := rpcLockMgr.Locked()
			if err != nil {
				return err
			}
			records.PrintRecords(recs)
			return nil
		},
	}

	unlockedCmd = &cobra.Command{
		Use:   "unlocked",
		Short: "List all records without an active lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := rpcLockMgr.Unlocked()
			if err != nil {
				return err
			}
			records.PrintRecords(recs)
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)
	LockCommands.AddCommand(releaseForCmd)
	LockCommands.AddCommand(saveCmd)
	LockCommands.AddCommand(statusCmd)
	LockCommands.AddCommand(lockedCmd)
	LockCommands.AddCommand(unlockedCmd)
	LockCommands.AddCommand(perfTestCmd)

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	acquireCmd.Flags().BoolVar(&acquireHard, "hard", false, util.WrapString("Acquire a hard lock, which blocks all writes until it is released or expires"))
}

// setupLockClient initializes the lock manager client
func setupLockClient(cmd *cobra.Command, _ []string) error {
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

	rpcLockMgr, err = client.NewRPCLockMgr(
		shardId,
		*config,
		t,
		s,
	)

	return err
}

func runAcquire(_ *cobra.Command, args []string) error {
	rec := record.Record{ID: args[0]}
	if err := rpcLockMgr.Acquire(&rec, record.Principal(args[1]), acquireHard); err != nil {
		if rec.Lock.IsSet() {
			return fmt.Errorf("failed to acquire lock (held by %s since %s): %w", rec.Lock.LockedBy, rec.Lock.LockedAt.Format(time.RFC3339), err)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	fmt.Printf("acquired=true, lockedAt=%s, hard=%t\n", rec.Lock.LockedAt.Format(time.RFC3339), rec.Lock.HardLock)
	return nil
}

func runRelease(_ *cobra.Command, args []string) error {
	rec := record.Record{ID: args[0]}
	if err := rpcLockMgr.Release(&rec); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	fmt.Println("released=true")
	return nil
}

func runReleaseFor(_ *cobra.Command, args []string) error {
	rec := record.Record{ID: args[0]}
	if err := rpcLockMgr.ReleaseFor(&rec, record.Principal(args[1])); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	fmt.Println("released=true")
	return nil
}

func runSave(_ *cobra.Command, args []string) error {
	fields, err := records.ParseFields(args[1:])
	if err != nil {
		return err
	}
	rec := record.Record{ID: args[0]}
	if err := rpcLockMgr.Save(&rec, fields); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	fmt.Printf("saved=true, modifiedAt=%s\n", rec.ModifiedAt.Format(time.RFC3339))
	return nil
}

func runStatus(_ *cobra.Command, args []string) error {
	rec := record.Record{ID: args[0]}
	var p record.Principal
	if len(args) == 2 {
		p = record.Principal(args[1])
	}
	info, err := rpcLockMgr.Inspect(&rec, p)
	if err != nil {
		return err
	}
	return records.PrintJSON(struct {
		ID string `json:"id"`
		lockable.Info
		Status string `json:"status"`
	}{ID: rec.ID, Info: info, Status: info.Status.String()})
}
