package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	kintobridge "github.com/opengovern/kinto-bridge"
)

var (
	requestCmd = &cobra.Command{
		Use:   "request [method] [path]",
		Short: "Sends a request to the server and prints the JSON response",
		Long: `Sends a request to the server and prints the JSON response.

Paths starting with "/" are relative to --remote. The request body is read
from --data, or from stdin when --data is "-".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			body, err := readBody(data)
			if err != nil {
				return err
			}

			resp, err := client.Execute(cmd.Context(), &kintobridge.Request{
				Method: strings.ToUpper(args[0]),
				Target: args[1],
				Body:   body,
			}, nil)
			if err != nil {
				return err
			}
			if resp.JSON == nil {
				fmt.Printf("HTTP %d\n", resp.Status)
				return nil
			}
			return printJSON(resp.JSON)
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the server information and capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := client.ServerInfo(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
	totalCmd = &cobra.Command{
		Use:   "total [path]",
		Short: "Prints the number of objects under a path and its last modification timestamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := client.TotalRecords(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			lastModified, err := client.LastModified(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("total: %d\nlast_modified: %d\n", total, lastModified)
			return nil
		},
	}
	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Prints the records of a collection as they were at a past timestamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, _ := cmd.Flags().GetString("bucket")
			collection, _ := cmd.Flags().GetString("collection")
			at, _ := cmd.Flags().GetInt64("at")

			snapshot, err := client.Snapshot(cmd.Context(), bucket, collection, at)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"data":          snapshot.Data,
				"last_modified": snapshot.LastModified,
				"total_records": snapshot.TotalRecords,
			})
		},
	}
)

func init() {
	requestCmd.Flags().String("data", "", "JSON request body, or - to read it from stdin")

	snapshotCmd.Flags().String("bucket", "main", "Bucket of the collection")
	snapshotCmd.Flags().String("collection", "", "Collection to snapshot")
	snapshotCmd.Flags().Int64("at", 0, "Timestamp (last_modified) of the snapshot")
	_ = snapshotCmd.MarkFlagRequired("collection")
	_ = snapshotCmd.MarkFlagRequired("at")
}

func readBody(data string) ([]byte, error) {
	switch data {
	case "":
		return nil, nil
	case "-":
		return readAllStdin()
	}
	if !json.Valid([]byte(data)) {
		return nil, fmt.Errorf("--data is not valid JSON")
	}
	return []byte(data), nil
}

func readAllStdin() ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(os.Stdin).Decode(&raw); err != nil {
		return nil, fmt.Errorf("reading request body from stdin: %w", err)
	}
	return raw, nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
