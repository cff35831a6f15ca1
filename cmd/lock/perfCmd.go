package lock

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ValentinKolb/dRL/cmd/util"
	"github.com/ValentinKolb/dRL/lib/lockable"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/ValentinKolb/dRL/rpc/client"
	"github.com/google/uuid"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the lock operations of dRL servers",
		Long:    "Creates a set of records and lets concurrent principals acquire, save and release them. Denied acquires are counted as conflicts, not as errors.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfRecordPrefix = "__perf"
	perfNumThreads   = 10
	perfRecords      = 10
	perfOpsPerThread = 1000
)

// names of the measured operations
var perfOps = []string{"acquire", "save", "release-for", "inspect"}

func init() {
	key := "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent principals"))
	key = "records"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("How many records the principals compete for"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of acquire / save / release rounds per principal"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfRecords = viper.GetInt("records")
	perfOpsPerThread = viper.GetInt("ops")
	if perfNumThreads < 1 || perfRecords < 1 || perfOpsPerThread < 1 {
		return fmt.Errorf("threads, records and ops must be positive")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dRL servers")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Principals: %d, Records: %d, Rounds: %d\n", perfNumThreads, perfRecords, perfOpsPerThread)
	fmt.Println()

	recordStore, err := newPerfStore()
	if err != nil {
		return err
	}

	// prepare records
	ids := make([]string, perfRecords)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%s", perfRecordPrefix, uuid.NewString())
		if err := recordStore.Create(record.New(ids[i], map[string]string{"round": "0"}, time.Now())); err != nil {
			return fmt.Errorf("failed to create record %s: %w", ids[i], err)
		}
	}
	defer func() {
		for _, id := range ids {
			if err := recordStore.Delete(id); err != nil {
				fmt.Printf("error deleting record %s: %v\n", id, err)
			}
		}
	}()

	fmt.Println("starting tests...")

	registry := metrics.NewRegistry()
	conflicts := metrics.GetOrRegisterCounter("conflicts", registry)
	failures := metrics.GetOrRegisterCounter("errors", registry)
	timers := make(map[string]metrics.Timer, len(perfOps))
	for _, op := range perfOps {
		timers[op] = metrics.GetOrRegisterTimer(op, registry)
	}

	// count an error, denied acquires are expected
	track := func(op string, err error) bool {
		switch {
		case err == nil:
			return true
		case errors.Is(err, lockable.ErrLockConflict):
			conflicts.Inc(1)
		default:
			failures.Inc(1)
			fmt.Printf("(%s) - error: %v\n", op, err)
		}
		return false
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < perfNumThreads; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p := record.Principal(uuid.NewString())
			for n := 0; n < perfOpsPerThread; n++ {
				rec := record.Record{ID: ids[(worker+n)%len(ids)]}

				var err error
				timers["acquire"].Time(func() { err = rpcLockMgr.Acquire(&rec, p, false) })
				if !track("acquire", err) {
					continue
				}

				timers["save"].Time(func() { err = rpcLockMgr.Save(&rec, map[string]string{"round": strconv.Itoa(n)}) })
				track("save", err)

				timers["inspect"].Time(func() { _, err = rpcLockMgr.Inspect(&rec, p) })
				track("inspect", err)

				timers["release-for"].Time(func() { err = rpcLockMgr.ReleaseFor(&rec, p) })
				track("release-for", err)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println()
	for _, op := range perfOps {
		printResult(op, timers[op])
	}
	fmt.Printf("%-20s%d\n", "conflicts", conflicts.Count())
	fmt.Printf("%-20s%d\n", "errors", failures.Count())
	fmt.Printf("%-20s%s\n", "total", elapsed)

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, timers); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// newPerfStore creates a record client on the shard of the lock client
func newPerfStore() (store.IStore, error) {
	s, err := util.GetSerializer()
	if err != nil {
		return nil, err
	}
	t, err := util.GetTransport()
	if err != nil {
		return nil, err
	}
	return client.NewRPCStore(util.GetShardID(), *util.GetClientConfig(), t, s)
}

// printResult prints the latencies of an operation
func printResult(op string, timer metrics.Timer) {
	snap := timer.Snapshot()
	if snap.Count() == 0 {
		fmt.Printf("%-20sskipped\n", op)
		return
	}
	ps := snap.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Printf("%-20s%d ops\tmean %s\tp50 %s\tp95 %s\tp99 %s\t%.0f ops/sec\n",
		op, snap.Count(), time.Duration(snap.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]), snap.RateMean())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, timers map[string]metrics.Timer) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Operation", "Count", "MeanNs", "P50Ns", "P95Ns", "P99Ns", "OpsPerSec",
		"ShardID", "Serializer", "Principals", "Records", "Rounds",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, op := range perfOps {
		snap := timers[op].Snapshot()
		ps := snap.Percentiles([]float64{0.5, 0.95, 0.99})
		row := []string{
			op,
			strconv.FormatInt(snap.Count(), 10),
			fmt.Sprintf("%.0f", snap.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			fmt.Sprintf("%.0f", snap.RateMean()),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfRecords),
			strconv.Itoa(perfOpsPerThread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %v", op, err)
		}
	}

	return nil
}
