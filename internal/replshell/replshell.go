// Package replshell implements the interactive line-oriented shell the
// attach command drops into, as an alternative to the bubbletea TUI: a
// peterh/liner prompt loop with persisted history, dispatching
// short verbs onto an engine.Engine, in the same readline-driven shape
// the teacher's sloty CLI uses for its cache REPL.
package replshell

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/relkin/memscan/internal/engine"
	"github.com/relkin/memscan/internal/session"
	"github.com/relkin/memscan/internal/valuetype"
)

var commands = []string{
	"help", "quit", "exit",
	"attach", "detach", "type", "value", "scan", "refine", "refine_unknown",
	"snapshot", "undo", "clear", "freeze", "unfreeze", "write", "results",
	"session",
}

// Shell runs the read-eval-print loop against eng until the user quits
// or stdin is closed. historyPath may be empty, in which case history
// is not persisted.
type Shell struct {
	eng         *engine.Engine
	historyPath string
	out         io.Writer
	liner       *liner.State
}

// New constructs a Shell. out receives all command output; historyPath,
// if non-empty, is used to load and save the prompt history.
func New(eng *engine.Engine, historyPath string, out io.Writer) *Shell {
	return &Shell{eng: eng, historyPath: historyPath, out: out}
}

// Run starts the prompt loop. It returns nil on a clean quit (including
// Ctrl-D/Ctrl-C) and a non-nil error only on an unexpected read failure.
func (s *Shell) Run() error {
	s.liner = liner.NewLiner()
	defer s.liner.Close()

	s.liner.SetCtrlCAborts(true)
	s.liner.SetCompleter(s.completer)

	if s.historyPath != "" {
		if f, err := os.Open(s.historyPath); err == nil {
			s.liner.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Fprintln(s.out, "memscan shell. Type 'help' for commands, 'quit' to exit.")

	for {
		line, err := s.liner.Prompt(s.prompt())
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(s.out, "")
				s.saveHistory()
				return nil
			}
			return fmt.Errorf("replshell: reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.liner.AppendHistory(line)

		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		if cmd == "quit" || cmd == "exit" {
			s.saveHistory()
			return nil
		}
		s.dispatch(cmd, args)
	}
}

func (s *Shell) prompt() string {
	snap := s.eng.ResultsSnapshot()
	return fmt.Sprintf("memscan[%d]:%s> ", s.eng.ActiveIndex(), snap.State)
}

func (s *Shell) saveHistory() {
	if s.historyPath == "" {
		return
	}
	if f, err := os.Create(s.historyPath); err == nil {
		s.liner.WriteHistory(f)
		f.Close()
	}
}

func (s *Shell) completer(line string) []string {
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Shell) dispatch(cmd string, args []string) {
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "attach":
		s.cmdAttach(args)
	case "detach":
		s.cmdDetach()
	case "type":
		s.cmdType(args)
	case "value":
		s.cmdValue(args)
	case "scan":
		s.cmdScan()
	case "refine":
		s.cmdRefine()
	case "refine_unknown":
		s.cmdRefineUnknown(args)
	case "snapshot":
		s.cmdSnapshot()
	case "undo":
		s.cmdUndo()
	case "clear":
		s.eng.ClearActive()
		fmt.Fprintln(s.out, "cleared")
	case "freeze":
		s.cmdFreeze(args, true)
	case "unfreeze":
		s.cmdFreeze(args, false)
	case "write":
		s.cmdWrite(args)
	case "results":
		s.cmdResults(args)
	case "session":
		s.cmdSession(args)
	default:
		fmt.Fprintf(s.out, "unknown command %q (type 'help')\n", cmd)
	}
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `commands:
  attach <pid>                 attach to a process
  detach                       release the current process
  type <name>                  set the active session's value type
  value <text>                 set the query text
  scan                         run the initial scan
  refine                       narrow by value equality
  refine_unknown <op>          narrow by snapshot comparison (increased|decreased|changed|unchanged)
  snapshot                     capture an unknown-type baseline
  undo                         restore the previous candidate set
  clear                        discard the active session's candidates
  freeze <addr>                pin the current value at addr
  unfreeze <addr>               release a pinned address
  write <addr> <text>          write a one-shot value
  results [n]                  show up to n hits (default 20)
  session new|switch <i>|close <i>|rename <i> <name>|list
  quit / exit
`)
}

func (s *Shell) cmdAttach(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: attach <pid>")
		return
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "invalid pid %q\n", args[0])
		return
	}
	if err := s.eng.SetPID(pid); err != nil {
		fmt.Fprintf(s.out, "attach failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "attached to pid %d\n", pid)
}

func (s *Shell) cmdDetach() {
	if err := s.eng.SetPID(0); err != nil {
		fmt.Fprintf(s.out, "detach failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "detached")
}

func (s *Shell) cmdType(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: type <byte|short|int|int64|float|double|string|string_utf16|guess|unknown>")
		return
	}
	t, err := valuetype.ParseTypeName(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}
	s.eng.SetValueType(t)
	fmt.Fprintf(s.out, "value type set to %s\n", t)
}

func (s *Shell) cmdValue(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "usage: value <text>")
		return
	}
	s.eng.SetQueryText(strings.Join(args, " "))
	fmt.Fprintln(s.out, "query set")
}

func (s *Shell) cmdScan() {
	if err := s.eng.InitialScan(); err != nil {
		fmt.Fprintf(s.out, "scan failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "scan started")
}

func (s *Shell) cmdRefine() {
	if err := s.eng.Refine(); err != nil {
		fmt.Fprintf(s.out, "refine failed: %v\n", err)
		return
	}
	snap := s.eng.ResultsSnapshot()
	fmt.Fprintf(s.out, "refined: %d candidates\n", snap.ResultCount)
}

func (s *Shell) cmdRefineUnknown(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: refine_unknown <increased|decreased|changed|unchanged>")
		return
	}
	op, err := session.ParseCompareOp(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}
	if err := s.eng.RefineUnknown(op); err != nil {
		fmt.Fprintf(s.out, "refine failed: %v\n", err)
		return
	}
	snap := s.eng.ResultsSnapshot()
	fmt.Fprintf(s.out, "refined: %d candidates\n", snap.ResultCount)
}

func (s *Shell) cmdSnapshot() {
	if err := s.eng.TakeSnapshot(); err != nil {
		fmt.Fprintf(s.out, "snapshot failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "snapshot taken")
}

func (s *Shell) cmdUndo() {
	if err := s.eng.UndoActive(); err != nil {
		fmt.Fprintf(s.out, "undo failed: %v\n", err)
		return
	}
	snap := s.eng.ResultsSnapshot()
	fmt.Fprintf(s.out, "restored: %d candidates\n", snap.ResultCount)
}

func (s *Shell) cmdFreeze(args []string, on bool) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: freeze|unfreeze <addr>")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}
	if err := s.eng.SetFrozen(addr, on); err != nil {
		fmt.Fprintf(s.out, "failed: %v\n", err)
		return
	}
	if on {
		fmt.Fprintf(s.out, "froze 0x%x\n", addr)
	} else {
		fmt.Fprintf(s.out, "unfroze 0x%x\n", addr)
	}
}

func (s *Shell) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "usage: write <addr> <text>")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}
	if err := s.eng.Overwrite(addr, strings.Join(args[1:], " ")); err != nil {
		fmt.Fprintf(s.out, "write failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "wrote 0x%x\n", addr)
}

func (s *Shell) cmdResults(args []string) {
	n := 20
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(s.out, "invalid count %q\n", args[0])
			return
		}
		n = v
	}
	snap := s.eng.ResultsSnapshot()
	fmt.Fprintf(s.out, "state=%s scanned=%d/%d total candidates=%d\n",
		snap.State, snap.ScannedBytes, snap.TotalBytes, snap.ResultCount)
	for i, h := range snap.Hits {
		if i >= n {
			fmt.Fprintf(s.out, "... %d more\n", len(snap.Hits)-n)
			break
		}
		fmt.Fprintf(s.out, "  0x%x\t%s\n", h.Addr, h.Type)
	}
}

func (s *Shell) cmdSession(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "usage: session new|switch <i>|close <i>|rename <i> <name>|list")
		return
	}
	switch args[0] {
	case "new":
		name := "session"
		if len(args) > 1 {
			name = strings.Join(args[1:], " ")
		}
		idx := s.eng.NewSession(name)
		fmt.Fprintf(s.out, "created session %d\n", idx)
	case "switch":
		i, err := requireIndex(args)
		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		if err := s.eng.SwitchTo(i); err != nil {
			fmt.Fprintf(s.out, "%v\n", err)
			return
		}
		fmt.Fprintf(s.out, "switched to session %d\n", i)
	case "close":
		i, err := requireIndex(args)
		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		if err := s.eng.CloseSession(i); err != nil {
			fmt.Fprintf(s.out, "%v\n", err)
			return
		}
		fmt.Fprintf(s.out, "closed session %d\n", i)
	case "rename":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "usage: session rename <i> <name>")
			return
		}
		i, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(s.out, "invalid index %q\n", args[1])
			return
		}
		if err := s.eng.RenameSession(i, strings.Join(args[2:], " ")); err != nil {
			fmt.Fprintf(s.out, "%v\n", err)
			return
		}
		fmt.Fprintf(s.out, "renamed session %d\n", i)
	case "list":
		for i, sess := range s.eng.Sessions() {
			marker := " "
			if i == s.eng.ActiveIndex() {
				marker = "*"
			}
			fmt.Fprintf(s.out, "%s %d: %s\n", marker, i, sess.Description())
		}
	default:
		fmt.Fprintf(s.out, "unknown session subcommand %q\n", args[0])
	}
}

func requireIndex(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: session %s <i>", args[0])
	}
	i, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", args[1])
	}
	return i, nil
}

func parseAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	addr, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return addr, nil
}
