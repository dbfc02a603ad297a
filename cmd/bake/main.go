// Command bake is the CLI front end for the build engine: build, rebuild,
// clean, install, uninstall, foreach, mount, setup, plus stub verbs for the
// explicitly out-of-scope publish/clone/update commands (spec §6 CLI
// surface). Grounded on the teacher's cmd/distri/distri.go verb table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bakegraph/bake/internal/lifecycle"
)

var debug = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")

func funcmain() error {
	flag.Parse()

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"build":     {cmdbuild},
		"rebuild":   {cmdrebuild},
		"clean":     {cmdclean},
		"install":   {cmdinstall},
		"uninstall": {cmduninstall},
		"foreach":   {cmdforeach},
		"mount":     {cmdmount},
		"setup":     {cmdsetup},
		"publish":   {stubVerb("publish")},
		"clone":     {stubVerb("clone")},
		"update":    {stubVerb("update")},
	}

	args := flag.Args()
	verb := "build"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		fmt.Fprintf(os.Stderr, "bake [-flags] <command> [-flags] <args>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "\tbuild      - run the build pipeline for one project\n")
		fmt.Fprintf(os.Stderr, "\trebuild    - like build, clearing the build cache first\n")
		fmt.Fprintf(os.Stderr, "\tclean      - invoke each bound driver's clean callback\n")
		fmt.Fprintf(os.Stderr, "\tinstall    - build and install a project's artefact\n")
		fmt.Fprintf(os.Stderr, "\tuninstall  - remove a project from the install tree\n")
		fmt.Fprintf(os.Stderr, "\tforeach    - build every project.json found under a directory\n")
		fmt.Fprintf(os.Stderr, "\tmount      - mount a read-only FUSE view of the install tree\n")
		fmt.Fprintf(os.Stderr, "\tsetup      - invoke each bound driver's setup callback\n")
		os.Exit(2)
	}

	ctx, canc := lifecycle.InterruptibleContext()
	defer canc()

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: bake <command> [options]\n")
		os.Exit(2)
	}
	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}

	return lifecycle.RunAtExit()
}

// stubVerb reports that verb is out of scope (spec §1 Non-goals: package
// publishing/checkout/self-update tooling is an external collaborator's
// responsibility, not the core build engine's).
func stubVerb(verb string) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		return fmt.Errorf("%s: not implemented by the core build engine; provided by an external tool", verb)
	}
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
