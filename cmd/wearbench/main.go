// wearbench measures how evenly the circular save scheme spreads writes
// across a simulated device.
//
// It runs a number of save cycles against an in-memory device with
// per-cell write counters, prints a wear summary, and optionally records
// the run and the per-cell counts into a SQLite database for later
// analysis.
//
// Usage:
//
//	wearbench [opts]
//
// Options:
//
//	-n, --items      Region record capacity (default 16)
//	-i, --item-size  Payload size in bytes (default 16)
//	-c, --cycles     Number of save cycles (default 1024)
//	-r, --records    Live records per cycle (default items/2)
//	    --start      Region start address (default 0)
//	    --db         SQLite database to append results to (optional)
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/wearstore/pkg/eeprom"
	"github.com/calvinalkan/wearstore/pkg/weartable"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type benchParams struct {
	start    int
	items    int
	itemSize int
	cycles   int
	records  int
}

func run() error {
	flagSet := flag.NewFlagSet("wearbench", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	items := flagSet.IntP("items", "n", 16, "region record capacity")
	itemSize := flagSet.IntP("item-size", "i", 16, "payload size in bytes")
	cycles := flagSet.IntP("cycles", "c", 1024, "number of save cycles")
	records := flagSet.IntP("records", "r", 0, "live records per cycle (default items/2)")
	start := flagSet.Int("start", 0, "region start address")
	dbPath := flagSet.String("db", "", "SQLite database to append results to")
	help := flagSet.BoolP("help", "h", false, "show usage")

	err := flagSet.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	if *help {
		flagSet.SetOutput(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage: wearbench [options]")
		flagSet.PrintDefaults()

		return nil
	}

	params := benchParams{
		start:    *start,
		items:    *items,
		itemSize: *itemSize,
		cycles:   *cycles,
		records:  *records,
	}

	if params.records == 0 {
		params.records = max(params.items/2, 1)
	}

	if params.records > params.items {
		return errors.New("--records must not exceed --items")
	}

	if params.cycles < 1 {
		return errors.New("--cycles must be >= 1")
	}

	dev, counts, elapsed, err := runCycles(params)
	if err != nil {
		return err
	}

	s := summarize(counts, params, dev.Size())
	s.print(params, elapsed)

	if *dbPath != "" {
		runID, recordErr := recordRun(*dbPath, params, s, counts, elapsed)
		if recordErr != nil {
			return fmt.Errorf("recording results: %w", recordErr)
		}

		fmt.Printf("\nrecorded run %s in %s\n", runID, *dbPath)
	}

	return nil
}

// runCycles attaches a region to a fresh in-memory device and performs
// the requested number of save cycles. Formatting wear is excluded from
// the counters so the summary reflects steady-state behavior only.
func runCycles(params benchParams) (*eeprom.Mem, []uint64, time.Duration, error) {
	table, err := weartable.NewTable(params.items, params.itemSize)
	if err != nil {
		return nil, nil, 0, err
	}

	recordSize := params.itemSize + 1
	deviceSize := params.start + params.items + 4 + params.items*recordSize

	dev := eeprom.NewMem(deviceSize)
	store := weartable.NewStore(dev, table)

	err = store.Attach(params.start, params.items)
	if err != nil {
		return nil, nil, 0, err
	}

	for i := range params.records {
		payload := make([]byte, params.itemSize)
		payload[0] = byte(i)

		insErr := table.Insert(payload)
		if insErr != nil {
			return nil, nil, 0, insErr
		}
	}

	dev.ResetWear()

	began := time.Now()

	for range params.cycles {
		saveErr := store.Save()
		if saveErr != nil {
			return nil, nil, 0, saveErr
		}
	}

	return dev, dev.WriteCounts(), time.Since(began), nil
}

type summary struct {
	minWrites  uint64
	maxWrites  uint64
	meanWrites float64
	touched    int
}

// summarize reduces per-cell counters over the record area only. Header
// bytes (markers, size, status bytes) have their own write pattern and
// would skew the record-slot statistics.
func summarize(counts []uint64, params benchParams, deviceSize int) summary {
	dataStart := params.start + params.items + 4

	s := summary{minWrites: ^uint64(0)}

	for addr := dataStart; addr < deviceSize; addr++ {
		c := counts[addr]
		if c > 0 {
			s.touched++
		}

		if c < s.minWrites {
			s.minWrites = c
		}

		if c > s.maxWrites {
			s.maxWrites = c
		}

		s.meanWrites += float64(c)
	}

	s.meanWrites /= float64(deviceSize - dataStart)

	return s
}

func (s summary) print(params benchParams, elapsed time.Duration) {
	fmt.Printf("wearbench: %d cycles, %d/%d records, %d-byte payloads\n",
		params.cycles, params.records, params.items, params.itemSize)
	fmt.Printf("elapsed:       %v\n", elapsed)
	fmt.Printf("cells touched: %d\n", s.touched)
	fmt.Printf("writes/cell:   min=%d max=%d mean=%.2f\n",
		s.minWrites, s.maxWrites, s.meanWrites)

	if s.minWrites > 0 {
		fmt.Printf("spread:        %.2fx (max/min)\n",
			float64(s.maxWrites)/float64(s.minWrites))
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	items       INTEGER NOT NULL,
	item_size   INTEGER NOT NULL,
	cycles      INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	elapsed_ns  INTEGER NOT NULL,
	min_writes  INTEGER NOT NULL,
	max_writes  INTEGER NOT NULL,
	mean_writes REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS cell_wear (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	addr    INTEGER NOT NULL,
	writes  INTEGER NOT NULL,
	PRIMARY KEY (run_id, addr)
);
`

// recordRun appends the run and its per-cell counters to the database,
// creating the schema if needed. Returns the generated run ID.
func recordRun(
	path string,
	params benchParams,
	s summary,
	counts []uint64,
	elapsed time.Duration,
) (string, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	_, err = db.Exec(schema)
	if err != nil {
		return "", fmt.Errorf("creating schema: %w", err)
	}

	runID := xid.New().String()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(
		`INSERT INTO runs
			(id, started_at, items, item_size, cycles, records,
			 elapsed_ns, min_writes, max_writes, mean_writes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339),
		params.items, params.itemSize, params.cycles, params.records,
		elapsed.Nanoseconds(), s.minWrites, s.maxWrites, s.meanWrites,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO cell_wear (run_id, addr, writes) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for addr, writes := range counts {
		if writes == 0 {
			continue
		}

		_, err = stmt.Exec(runID, addr, writes)
		if err != nil {
			return "", fmt.Errorf("inserting cell %d: %w", addr, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	return runID, nil
}
