package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"ml-wrappers/internal/common"
	"ml-wrappers/internal/loader"
	"ml-wrappers/internal/storage"
)

// Generates an orders-like CSV with two timestamp columns, a numeric target
// and a few missing amounts, and optionally imports it into the catalog.
func main() {
	var (
		outPath  = flag.String("out", "sample.csv", "Output CSV path")
		rows     = flag.Int("rows", 500, "Number of rows to generate")
		days     = flag.Int("days", 30, "Time span of the signup column in days")
		seed     = flag.Int64("seed", 1, "Random seed")
		dataPath = flag.String("data", "", "Also import the CSV into the catalog at this data path")
		name     = flag.String("name", "orders", "Catalog dataset name")
	)
	flag.Parse()
	if *rows < 1 || *days < 1 {
		log.Fatalf("rows and days must be positive")
	}

	fmt.Printf("Generating sample data...\n")
	fmt.Printf("  Rows: %d\n", *rows)
	fmt.Printf("  Days: %d\n", *days)
	fmt.Printf("  Output: %s\n", *outPath)

	if err := generate(*outPath, *rows, *days, *seed); err != nil {
		log.Fatalf("Failed to generate data: %v", err)
	}

	if *dataPath != "" {
		if err := importCSV(*outPath, *dataPath, *name, *seed); err != nil {
			log.Fatalf("Failed to import data: %v", err)
		}
		fmt.Printf("✓ Imported %s into %s\n", *name, *dataPath)
	}

	fmt.Printf("✓ Generated %s\n", *outPath)
}

func generate(path string, rows, days int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"amount", "signup", "last_order", "items", "churned"}); err != nil {
		return err
	}

	end := time.Now().UTC().Truncate(time.Second)
	start := end.AddDate(0, 0, -days)
	span := end.Sub(start)

	for i := 0; i < rows; i++ {
		signup := start.Add(time.Duration(rng.Int63n(int64(span))))
		lastOrder := signup.Add(time.Duration(rng.Int63n(int64(end.Sub(signup)) + 1)))
		amount := math.Round(rng.ExpFloat64()*4000) / 100
		items := 1 + rng.Intn(8)

		// Customers idle for long are more likely to churn.
		idleDays := end.Sub(lastOrder).Hours() / 24
		churned := 0
		if rng.Float64() < 1/(1+math.Exp(-(idleDays-float64(days)/2)/3)) {
			churned = 1
		}

		record := []string{
			strconv.FormatFloat(amount, 'f', 2, 64),
			signup.Format(time.RFC3339),
			lastOrder.Format("2006-01-02 15:04:05"),
			strconv.Itoa(items),
			strconv.Itoa(churned),
		}
		// A few missing amounts; they load as NaN.
		if rng.Float64() < 0.02 {
			record[0] = ""
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func importCSV(path, dataPath, name string, seed int64) error {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return err
	}
	store, err := storage.New(dataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	table, err := loader.LoadCSV(path, loader.Options{})
	if err != nil {
		return err
	}
	train, test, err := loader.Split(table, common.DefaultTestFraction, seed)
	if err != nil {
		return err
	}
	// Earlier runs may have stored splits this one does not write.
	if _, err := store.DeleteDataset(name); err != nil {
		return err
	}
	if err := store.PutTable(name, common.SplitXTrain, train); err != nil {
		return err
	}
	return store.PutTable(name, common.SplitXTest, test)
}
