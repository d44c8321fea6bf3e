// walshell is an interactive REPL for driving a live WAL slot engine,
// adapted from sloty's slotcache REPL to the slot join/release/close/
// switch protocol instead of cache put/get.
//
// Usage:
//
//	walshell [log-dir]
//
// Commands:
//
//	write <text> [fsync|dsync]   Append text as one record, return its LSN
//	join <size> [fsync|dsync]    Reserve size bytes without copying yet
//	release <handle> [size]      Release a prior join (size defaults to its reservation)
//	switch                       Force-close and rotate the active slot
//	stats                        Show running counters
//	lastlsn <writer-id>          Show the last committed LSN for a writer
//	help                         Show this help
//	exit / quit / q              Exit
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/waldb/slotwal/internal/commitindex"
	"github.com/waldb/slotwal/internal/logfile"
	"github.com/waldb/slotwal/pkg/fs"
	"github.com/waldb/slotwal/pkg/slotengine"
)

// commitIndexCapacity bounds how many distinct writer IDs the shell's
// sidecar commit index can track; generous for a demo tool driven by one
// operator at a time.
const commitIndexCapacity = 64

const defaultLogFileMax = 100 << 20

func main() {
	logDir := "./wal"
	if len(os.Args) > 1 {
		logDir = os.Args[1]
	}

	core, err := logfile.NewCore(fs.NewReal(), logDir, defaultLogFileMax)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	pool, err := slotengine.Init(core)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	core.AttachPool(pool)

	stop := make(chan struct{})
	core.Run(stop)

	index, err := openCommitIndex(logDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error opening commit index:", err)
		os.Exit(1)
	}
	defer index.Close()

	repl := &REPL{core: core, pool: pool, index: index, joins: map[int]slotengine.MySlot{}}

	if err := repl.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		close(stop)
		os.Exit(1)
	}

	close(stop)
}

// openCommitIndex opens (or creates) the small sidecar index that maps a
// writer ID to the LSN of its last committed record, so an operator can
// answer "what did writer X last commit" without scanning the log.
func openCommitIndex(logDir string) (*commitindex.Index, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	return commitindex.Open(filepath.Join(logDir, "commit-index.wci1"), commitIndexCapacity)
}

func toCommitIndexLSN(lsn slotengine.LSN) commitindex.LSN {
	return commitindex.LSN{FileID: lsn.FileID, Offset: lsn.Offset}
}

func fromCommitIndexLSN(lsn commitindex.LSN) slotengine.LSN {
	return slotengine.LSN{FileID: lsn.FileID, Offset: lsn.Offset}
}

// REPL is the interactive command loop, structured the way sloty's shell
// for pkg/slotcache is: a liner-backed prompt with history and a command
// dispatch table, but driving Join/Release/Close/Switch instead of
// cache Put/Get/Delete.
type REPL struct {
	core  *logfile.Core
	pool  *slotengine.Pool
	index *commitindex.Index

	liner    *liner.State
	joins    map[int]slotengine.MySlot
	nextJoin int
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".walshell_history")
}

func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("walshell - WAL slot engine REPL")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("walshell> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "write":
			r.cmdWrite(args)

		case "join":
			r.cmdJoin(args)

		case "release":
			r.cmdRelease(args)

		case "switch":
			r.cmdSwitch()

		case "stats":
			r.cmdStats()

		case "lastlsn":
			r.cmdLastLSN(args)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"write", "join", "release", "switch", "stats", "lastlsn",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  write <text> [fsync|dsync]   Append text as one record, return its LSN")
	fmt.Println("  join <size> [fsync|dsync]    Reserve size bytes without copying yet")
	fmt.Println("  release <handle> [size]      Release a prior join")
	fmt.Println("  switch                       Force-close and rotate the active slot")
	fmt.Println("  stats                        Show running counters")
	fmt.Println("  lastlsn <writer-id>          Show the last committed LSN for a writer")
	fmt.Println("  help                         Show this help")
	fmt.Println("  exit / quit / q              Exit")
}

func parseCommit(s string) slotengine.CommitFlags {
	switch s {
	case "fsync":
		return slotengine.FlagFSync
	case "dsync":
		return slotengine.FlagDSync
	default:
		return 0
	}
}

func (r *REPL) cmdWrite(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: write <text> [fsync|dsync]")

		return
	}

	commit := slotengine.CommitFlags(0)
	if len(args) > 1 {
		commit = parseCommit(args[1])
	}

	lsn, err := r.core.Write([]byte(args[0]), commit)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	fmt.Printf("wrote %d bytes at LSN %d.%d\n", len(args[0]), lsn.FileID, lsn.Offset)

	if err := r.index.Put([]byte("shell"), toCommitIndexLSN(lsn)); err != nil {
		fmt.Println("commit index update failed:", err)
	}
}

func (r *REPL) cmdJoin(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: join <size> [fsync|dsync]")

		return
	}

	size, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	commit := slotengine.CommitFlags(0)
	if len(args) > 1 {
		commit = parseCommit(args[1])
	}

	r.core.RLock()
	myslot, err := r.pool.Join(size, commit)
	r.core.RUnlock()

	if err != nil {
		fmt.Println("error:", err)

		return
	}

	if myslot.Slot == nil {
		fmt.Println("no active slot; run 'switch' first or write through 'write'")

		return
	}

	id := r.nextJoin
	r.nextJoin++
	r.joins[id] = myslot

	fmt.Printf("handle=%d offset=%d end_offset=%d\n", id, myslot.Offset, myslot.EndOffset)
}

func (r *REPL) cmdRelease(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: release <handle> [size]")

		return
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	myslot, ok := r.joins[id]
	if !ok {
		fmt.Println("no such handle:", id)

		return
	}

	size := myslot.EndOffset - myslot.Offset
	if len(args) > 1 {
		size, err = strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Println("error:", err)

			return
		}
	}

	delete(r.joins, id)

	state := r.pool.Release(myslot, size)
	fmt.Printf("released, done=%v\n", slotengine.Done(state))
}

func (r *REPL) cmdSwitch() {
	r.core.Lock()
	r.pool.DebugMarkLockHeld()
	active := r.pool.Active()
	_, err := r.pool.Switch(active)
	r.pool.DebugMarkLockReleased()
	r.core.Unlock()

	if err != nil {
		fmt.Println("error:", err)

		return
	}

	// Nudge the background writer so a slot this Switch drained to
	// completion (no in-flight joins left) gets flushed promptly instead
	// of waiting for the pool to fill up and signal on its own.
	r.core.SignalWriter()

	fmt.Println("switched")
}

func (r *REPL) cmdStats() {
	s := &r.pool.Stat
	fmt.Printf("joins=%d races=%d closes=%d consolidated=%d transitions=%d writer_wakeups=%d\n",
		s.Joins.Load(), s.Races.Load(), s.Closes.Load(), s.Consolidated.Load(),
		s.Transitions.Load(), s.WriterWakeups.Load())
}

func (r *REPL) cmdLastLSN(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: lastlsn <writer-id>")

		return
	}

	ciLSN, found, err := r.index.Get([]byte(args[0]))
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	if !found {
		fmt.Println("no commits recorded for writer", args[0])

		return
	}

	lsn := fromCommitIndexLSN(ciLSN)
	fmt.Printf("%s last committed at LSN %d.%d\n", args[0], lsn.FileID, lsn.Offset)
}
