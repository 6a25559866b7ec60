// Package cmd provides the CLI commands for pctmatch.
//
// # Commands
//
// pctmatch: Runs one matching job. Loads the central dataset and the
// client queries, streams the dataset into the boundary in chunks and
// prints the positive query ids.
//
//	go run ./cmd/pctmatch --config=job.yaml
//	go run ./cmd/pctmatch --queries=q.csv --dataset=d.csv --chunk-size=100000 --report
package cmd
