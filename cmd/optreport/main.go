// optreport is the terminal twin of the viewer: it prints, per result file,
// the step count, which datasets were found and the first and final value of
// every available convergence criterion. Handy over ssh where a window is
// not an option.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vasp-tools/vasp-opt-follows/src/criteria"
	"github.com/vasp-tools/vasp-opt-follows/src/vaspdata"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "loglevel", "warn", "Log level: debug, info, warn or error")
	flag.Parse()
	vaspdata.SetLogLevel(logLevel)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: optreport [-loglevel level] vaspout.h5 [...]")
		os.Exit(2)
	}

	code := 0
	for _, path := range flag.Args() {
		rf, err := vaspdata.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			code = 1
			continue
		}
		report(rf)
	}
	os.Exit(code)
}

func report(rf *vaspdata.ResultFile) {
	fmt.Printf("%s: %d steps, %d ions\n", rf.Path, rf.NSteps, rf.NIons)
	datasets := []struct {
		name string
		ok   bool
	}{
		{vaspdata.EnergiesPath, rf.Energies != nil},
		{vaspdata.ForcesPath, rf.HasForces()},
		{vaspdata.PositionsPath, rf.HasPositions()},
		{vaspdata.LatticesPath, rf.HasLattices()},
	}
	for _, d := range datasets {
		mark := "missing"
		if d.ok {
			mark = "found"
		}
		fmt.Printf("  %-45s %s\n", d.name, mark)
	}
	for _, c := range criteria.Available(rf) {
		s, err := criteria.Compute(rf, c)
		if err != nil || len(s.Values) == 0 {
			continue
		}
		fmt.Printf("  %-18s first=%-12.6g final=%-12.6g\n", c, s.Values[0], s.Values[len(s.Values)-1])
	}
}
