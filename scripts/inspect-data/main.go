package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"ml-wrappers/internal/common"
	"ml-wrappers/internal/dataset"
	"ml-wrappers/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		name     = flag.String("name", "", "Dataset to show (default: list all)")
		split    = flag.String("split", common.SplitXTrain, "Split to show")
		head     = flag.Int("head", 5, "Number of rows to print")
	)
	flag.Parse()

	fmt.Printf("Inspecting data in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	names := []string{*name}
	if *name == "" {
		if names, err = store.Names(); err != nil {
			log.Fatalf("Failed to list datasets: %v", err)
		}
		fmt.Printf("\nDatasets: %d\n", len(names))
	}
	for _, n := range names {
		entries, err := store.ListDatasets(n)
		if err != nil {
			log.Fatalf("Failed to list %s: %v", n, err)
		}
		fmt.Printf("\n%s:\n", n)
		for _, e := range entries {
			fmt.Printf("  %-8s %6d rows  %v  (stored %s)\n",
				e.Split, e.Rows, e.Columns, e.StoredAt.Format(time.RFC3339))
		}
	}

	if *name == "" {
		return
	}

	table, err := store.GetTable(*name, *split)
	if err != nil {
		log.Fatalf("Failed to load %s/%s: %v", *name, *split, err)
	}

	fmt.Printf("\nColumns of %s/%s:\n", *name, *split)
	for _, c := range table.Columns() {
		fmt.Printf("  %-20s %s\n", c.Name, c.Kind)
	}

	rows, _ := table.Dims()
	fmt.Printf("\nFirst rows:\n")
	for i := 0; i < rows && i < *head; i++ {
		for j, c := range table.Columns() {
			if j > 0 {
				fmt.Print("\t")
			}
			fmt.Print(cell(c, i))
		}
		fmt.Println()
	}
}

func cell(c *dataset.Column, i int) string {
	switch c.Kind {
	case dataset.Datetime:
		if c.Times[i].IsZero() {
			return "<missing>"
		}
		return c.Times[i].Format(time.RFC3339)
	case dataset.String:
		return c.Strings[i]
	default:
		return fmt.Sprintf("%g", c.Floats[i])
	}
}
