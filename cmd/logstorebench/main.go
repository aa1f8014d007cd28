// logstorebench measures put/get throughput against a logstore.Store,
// running sequential puts followed by sequential and random gets at two
// payload sizes (int-sized and 1KiB by default).
//
// Usage:
//
//	logstorebench [flags] <store-path>
//
// Flags:
//
//	--count, -n       number of operations per scenario (default 200000)
//	--sync            sync mode: none, every, persecond (default none)
//	--value-size      payload size in bytes for the "large value" scenarios (default 1024)
//	--keep            keep the store files after the run instead of removing them
package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mathrand "math/rand"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/calvinalkan/logstore/pkg/logstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	count := pflag.IntP("count", "n", 200_000, "number of operations per scenario")
	syncMode := pflag.String("sync", "none", "sync mode: none, every, persecond")
	valueSize := pflag.Int("value-size", 1024, "payload size in bytes for the large-value scenarios")
	keep := pflag.Bool("keep", false, "keep the store files after the run")

	pflag.Parse()

	if pflag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: logstorebench [flags] <store-path>")
		pflag.PrintDefaults()

		return fmt.Errorf("missing store path")
	}

	path := pflag.Arg(0)

	if !*keep {
		defer os.Remove(path)
		defer os.Remove(path + "-index")
	}

	b := &benchmark{
		path:      path,
		count:     *count,
		syncMode:  *syncMode,
		valueSize: *valueSize,
	}

	return b.run()
}

type benchmark struct {
	path      string
	count     int
	syncMode  string
	valueSize int
}

func (b *benchmark) run() error {
	smallFirst, err := b.benchmarkPuts("puts (int value, sync="+b.syncMode+")", intValue)
	if err != nil {
		return err
	}

	if err := b.benchmarkSequentialGets("sequential gets (int value)", smallFirst, intValue); err != nil {
		return err
	}

	if err := b.benchmarkRandomGets("random gets (int value)", smallFirst, intValue); err != nil {
		return err
	}

	largeFirst, err := b.benchmarkPuts(fmt.Sprintf("puts (%d-byte value, sync=%s)", b.valueSize, b.syncMode), b.largeValue)
	if err != nil {
		return err
	}

	if err := b.benchmarkSequentialGets(fmt.Sprintf("sequential gets (%d-byte value)", b.valueSize), largeFirst, b.largeValue); err != nil {
		return err
	}

	return b.benchmarkRandomGets(fmt.Sprintf("random gets (%d-byte value)", b.valueSize), largeFirst, b.largeValue)
}

func intValue(i int) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(i))

	return buf
}

func (b *benchmark) largeValue(_ int) []byte {
	buf := make([]byte, b.valueSize)
	_, _ = rand.Read(buf)

	return buf
}

// benchmarkPuts opens a fresh store, performs b.count sequential MakeID+Put
// calls applying the syncMode policy, and returns the ID of the first
// record written so later get-benchmarks can address them.
func (b *benchmark) benchmarkPuts(label string, value func(int) []byte) (logstore.ID, error) {
	_ = os.Remove(b.path)
	_ = os.Remove(b.path + "-index")

	s, err := logstore.Open(logstore.Options{Path: b.path})
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}

	defer s.Close()

	var firstID logstore.ID

	start := time.Now()
	lastSync := start
	syncs := 0

	for i := range b.count {
		id, err := s.MakeID()
		if err != nil {
			return 0, fmt.Errorf("MakeID: %w", err)
		}

		if i == 0 {
			firstID = id
		}

		if err := s.Put(id, value(i), 0); err != nil {
			return 0, fmt.Errorf("Put: %w", err)
		}

		switch b.syncMode {
		case "every":
			if err := s.Sync(); err != nil {
				return 0, fmt.Errorf("Sync: %w", err)
			}

			syncs++
		case "persecond":
			if time.Since(lastSync) >= time.Second {
				if err := s.Sync(); err != nil {
					return 0, fmt.Errorf("Sync: %w", err)
				}

				lastSync = time.Now()
				syncs++
			}
		}
	}

	elapsed := time.Since(start)

	stats, err := s.Stats()
	if err != nil {
		return 0, fmt.Errorf("Stats: %w", err)
	}

	fmt.Printf("%s: %.0f puts/sec", label, float64(b.count)/elapsed.Seconds())

	if b.syncMode != "none" {
		fmt.Printf(", %d syncs", syncs)
	}

	fmt.Printf(", %d index growths\n", stats.GrowthEvents)

	return firstID, nil
}

func (b *benchmark) benchmarkSequentialGets(label string, firstID logstore.ID, value func(int) []byte) error {
	s, err := logstore.Open(logstore.Options{Path: b.path})
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	defer s.Close()

	start := time.Now()

	for i := range b.count {
		got, _, err := s.Get(firstID + uint64(i))
		if err != nil {
			return fmt.Errorf("Get: %w", err)
		}

		if len(got) != len(value(i)) {
			return fmt.Errorf("unexpected value size at offset %d: got %d, want %d", i, len(got), len(value(i)))
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("%s: %.0f gets/sec\n", label, float64(b.count)/elapsed.Seconds())

	return nil
}

func (b *benchmark) benchmarkRandomGets(label string, firstID logstore.ID, value func(int) []byte) error {
	s, err := logstore.Open(logstore.Options{Path: b.path})
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	defer s.Close()

	rng := mathrand.New(mathrand.NewSource(time.Now().UnixNano())) //nolint:gosec // benchmark jitter, not security sensitive

	start := time.Now()

	for range b.count {
		i := rng.Intn(b.count)

		got, _, err := s.Get(firstID + uint64(i))
		if err != nil {
			return fmt.Errorf("Get: %w", err)
		}

		if len(got) != len(value(i)) {
			return fmt.Errorf("unexpected value size: got %d, want %d", len(got), len(value(i)))
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("%s: %.0f gets/sec\n", label, float64(b.count)/elapsed.Seconds())

	return nil
}
