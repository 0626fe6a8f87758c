// Command revealctl runs one contest feed end to end from the command
// line: ingest, config transforms, validation, scoreboard compute, and
// optionally a step-by-step walk of the reveal state machine printed
// to stdout. A small flag-driven main wired straight to the library
// packages, no HTTP server.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"icpc-reveal-engine/internal/config"
	"icpc-reveal-engine/internal/feed"
	"icpc-reveal-engine/internal/reveal"
	"icpc-reveal-engine/internal/scoreboard"
	"icpc-reveal-engine/internal/store"
	"icpc-reveal-engine/internal/validate"
)

func main() {
	dir := flag.String("cdp", "", "path to a CDP directory containing the event feed")
	feedName := flag.String("feed", "event-feed", "event feed file name under -cdp, without extension (tries .ndjson then .json)")
	step := flag.Bool("step", false, "walk the reveal state machine to completion, printing each transition")
	board := flag.String("board", "finalized", "which board to print when -step is not set: finalized or pre_freeze")
	flag.Parse()

	if *dir == "" {
		log.Fatal("revealctl: -cdp is required")
	}

	feedPath, err := resolveFeedPath(*dir, *feedName)
	if err != nil {
		log.Fatalf("revealctl: %v", err)
	}

	f, err := os.Open(feedPath)
	if err != nil {
		log.Fatalf("revealctl: open feed: %v", err)
	}
	defer f.Close()

	state := store.NewContestState()
	ing := feed.NewIngester(state)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lineNo, errorCount int
	for scanner.Scan() {
		lineNo++
		if warning, err := ing.Apply(scanner.Bytes()); err != nil {
			errorCount++
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lineNo, err)
		} else if warning != "" {
			fmt.Fprintf(os.Stderr, "line %d: %s\n", lineNo, warning)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("revealctl: read feed: %v", err)
	}
	if errorCount > 0 {
		log.Fatalf("revealctl: %d line errors, aborting before scoreboard compute", errorCount)
	}

	cfgPath := filepath.Join(*dir, "config.toml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("revealctl: %v", err)
	}
	if err := cfg.Apply(state); err != nil {
		log.Fatalf("revealctl: apply config: %v", err)
	}

	if err := validate.Validate(state); err != nil {
		log.Fatalf("revealctl: validate: %v", err)
	}

	result, err := scoreboard.Compute(state)
	if err != nil {
		log.Fatalf("revealctl: compute scoreboard: %v", err)
	}

	if !*step {
		printBoard(chooseBoard(result, *board))
		return
	}

	m := reveal.New(result.PreFreeze.Rows, state.Problems, state.Awards, state.AwardOrder)
	walkReveal(m)
}

func resolveFeedPath(dir, name string) (string, error) {
	for _, ext := range []string{".ndjson", ".json"} {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no %s.ndjson or %s.json found under %s", name, name, dir)
}

func chooseBoard(result *scoreboard.Result, which string) *scoreboard.Board {
	if which == "pre_freeze" {
		return result.PreFreeze
	}
	return result.Finalized
}

func printBoard(board *scoreboard.Board) {
	for i, row := range board.Rows {
		fmt.Printf("%3d  %-24s  %3d solved  %5d penalty\n", i+1, row.TeamName, row.TotalPoints, row.TotalPenalty)
	}
}

func walkReveal(m *reveal.Machine) {
	for step := 1; m.Phase.Kind != reveal.KindFinished || !m.RevealInitialized; step++ {
		res, err := m.Step()
		if err != nil {
			log.Fatalf("revealctl: step %d: %v", step, err)
		}
		fmt.Printf("step %3d: phase=%s", step, m.Phase.Kind)
		if res.ScrollTo != nil {
			fmt.Printf(" scroll_to=%d", *res.ScrollTo)
		}
		if res.Reorder != nil {
			fmt.Printf(" reorder=%v->%v", res.Reorder.Before, res.Reorder.After)
		}
		fmt.Println()
		if step > 10_000 {
			log.Fatal("revealctl: reveal machine did not reach Finished within a sane number of steps")
		}
	}
	fmt.Println("finalized board:")
	printBoard(&scoreboard.Board{Rows: m.Board})
}
