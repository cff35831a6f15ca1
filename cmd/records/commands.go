package records

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [key=value]...",
		Short: "Creates an unlocked record with the given fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := ParseFields(args)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				id = uuid.NewString()
			}
			if err := rpcStore.Create(record.New(id, fields, time.Now())); err != nil {
				return err
			}
			fmt.Printf("id=%s\n", id)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Prints a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, ok, err := rpcStore.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("record %q not found", args[0])
			}
			return PrintJSON(rec)
		},
	}
	delCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Deletes a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("deleted successfully")
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all records of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := rpcStore.List()
			if err != nil {
				return err
			}
			PrintRecords(recs)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			return PrintJSON(info)
		},
	}
)

// ParseFields parses arguments in the form key=value
func ParseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q (expected key=value)", arg)
		}
		fields[k] = v
	}
	return fields, nil
}

// PrintJSON prints v as indented JSON
func PrintJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// PrintRecords prints one line per record, sorted by id
func PrintRecords(recs []record.Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	for _, rec := range recs {
		fmt.Println(rec.String())
	}
	fmt.Printf("%d records\n", len(recs))
}
