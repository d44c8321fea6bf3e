// walslotd is a load-generating demo daemon for the WAL slot engine: it
// spins up N concurrent writers that each append fixed-size records
// through [logfile.Core.Write] for a fixed duration, then prints the
// engine's running counters.
//
// Usage:
//
//	walslotd [-n writers] [-s record-size] [-d duration] [-c config] [--sync mode]
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/waldb/slotwal/internal/config"
	"github.com/waldb/slotwal/internal/logfile"
	"github.com/waldb/slotwal/pkg/fs"
	"github.com/waldb/slotwal/pkg/slotengine"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	flagSet := flag.NewFlagSet("walslotd", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	writers := flagSet.IntP("writers", "n", 8, "number of concurrent writer goroutines")
	recordSize := flagSet.IntP("record-size", "s", 256, "bytes per record")
	duration := flagSet.DurationP("duration", "d", 3*time.Second, "how long to generate load")
	configPath := flagSet.StringP("config", "c", "", "explicit config file path")
	syncMode := flagSet.String("sync", "", "override default_sync: none, dsync, fsync")

	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	cliOverrides := config.Config{DefaultSync: *syncMode}

	cfg, sources, err := config.Load(workDir, *configPath, cliOverrides, os.Environ())
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	if !filepath.IsAbs(cfg.LogDir) {
		cfg.LogDir = filepath.Join(workDir, cfg.LogDir)
	}

	fmt.Fprintf(out, "log dir: %s (global config: %q, project config: %q)\n",
		cfg.LogDir, sources.Global, sources.Project)

	core, err := logfile.NewCore(fs.NewReal(), cfg.LogDir, cfg.LogFileMax)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	pool, err := slotengine.Init(core)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	core.AttachPool(pool)

	stop := make(chan struct{})
	core.Run(stop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	commit := commitFlagsFor(cfg.DefaultSync)
	payload := make([]byte, *recordSize)

	deadline := time.Now().Add(*duration)

	var wg sync.WaitGroup

	for i := 0; i < *writers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for time.Now().Before(deadline) {
				select {
				case <-sigCh:
					return
				default:
				}

				if _, err := core.Write(payload, commit); err != nil {
					fmt.Fprintln(errOut, "write error:", err)

					return
				}
			}
		}()
	}

	wg.Wait()
	close(stop)

	fmt.Fprintf(out, "joins=%d races=%d closes=%d consolidated=%d transitions=%d writer_wakeups=%d\n",
		pool.Stat.Joins.Load(), pool.Stat.Races.Load(), pool.Stat.Closes.Load(),
		pool.Stat.Consolidated.Load(), pool.Stat.Transitions.Load(), pool.Stat.WriterWakeups.Load())

	if err := slotengine.Destroy(pool, func(fh slotengine.FileHandle, offset int64, data []byte) error {
		f, ok := fh.(fs.File)
		if !ok {
			return fmt.Errorf("unexpected file handle type %T", fh)
		}

		if _, err := f.Seek(offset, 0); err != nil {
			return err
		}

		_, err := f.Write(data)

		return err
	}); err != nil {
		fmt.Fprintln(errOut, "destroy error:", err)

		return 1
	}

	return 0
}

func commitFlagsFor(mode string) slotengine.CommitFlags {
	switch mode {
	case "fsync":
		return slotengine.FlagFSync
	case "dsync":
		return slotengine.FlagDSync
	default:
		return 0
	}
}
