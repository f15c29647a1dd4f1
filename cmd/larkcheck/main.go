// Command larkcheck compiles a grammar and reports whether each remaining
// argument is in its language.
//
//	larkcheck [-v=2] grammar.lark [input ...]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dlclark/derivre"
	"github.com/plan-systems/klog"
)

func main() {
	fset := flag.NewFlagSet("larkcheck", flag.ExitOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})
	fset.Parse(os.Args[1:])

	os.Exit(run(fset.Args()))
}

func run(args []string) int {
	defer klog.Flush()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: larkcheck [-v=2] grammar.lark [input ...]")
		return 2
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		klog.Errorf("%v", err)
		return 2
	}
	g, err := derivre.CompileGrammar(string(src), derivre.GrammarOptions{})
	if err != nil {
		klog.Errorf("%s: %v", args[0], err)
		return 1
	}
	fmt.Println(g.Compiled().Stats())

	status := 0
	for _, in := range args[1:] {
		ok := g.Accepts(in)
		fmt.Printf("%v\t%q\n", ok, in)
		if !ok {
			status = 1
		}
	}
	return status
}
