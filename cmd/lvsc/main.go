// Command lvsc is a small front-end over the lvs package: compile LVS
// schemas, inspect compiled models and exercise match/check/suggest from
// the shell, directly modeled on the teacher's xmssmt CLI (one urfave/cli
// subcommand per top-level operation).
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	lvs "github.com/named-data/go-lvs"
	"github.com/named-data/go-lvs/store"
)

func cmdCompile(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.NewExitError("usage: lvsc compile <schema.lvs> -o <model.tlv>", 1)
	}
	src, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	model, err := lvs.Compile(string(src))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("compile failed: %s", err), 1)
	}
	if missing := lvs.NewSchema(model).RequiredUserFns(); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "warning: schema references user function(s) %v; "+
			"register them with Model.SetUserFn before matching\n", missing)
	}

	out := c.String("o")
	if out == "" {
		return cli.NewExitError("missing -o <model.tlv>", 1)
	}
	s, err := store.Open(out)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer s.Close()
	if err := s.Save(model); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Printf("compiled %d node(s) to %s\n", len(model.Nodes), out)
	return nil
}

func loadModel(path string) (*store.Mapped, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Load()
}

func cmdDump(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.NewExitError("usage: lvsc dump <model.tlv>", 1)
	}
	mapped, err := loadModel(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer mapped.Close()

	m := mapped.Model
	fmt.Printf("version=%#x start=%d namedPatternCnt=%d nodes=%d\n",
		m.Version, m.StartId, m.NamedPatternCnt, len(m.Nodes))
	for _, n := range m.Nodes {
		fmt.Printf("node %d", n.NodeId)
		if len(n.RuleNames) > 0 {
			fmt.Printf(" (%v)", n.RuleNames)
		}
		fmt.Println()
		for _, ve := range n.ValueEdges {
			fmt.Printf("  value %q -> %d\n", string(ve.Value.Bytes()), ve.Dest)
		}
		for _, pe := range n.PatternEdges {
			name := m.TagSymbols[pe.PatternId]
			if name == "" {
				name = fmt.Sprintf("_%d", pe.PatternId)
			}
			fmt.Printf("  pattern %s -> %d\n", name, pe.Dest)
		}
		if len(n.SigningRefs) > 0 {
			fmt.Printf("  signed-by %v\n", n.SigningRefs)
		}
	}
	return nil
}

func cmdMatch(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.NewExitError("usage: lvsc match <model.tlv> <name>", 1)
	}
	mapped, err := loadModel(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer mapped.Close()

	name := lvs.ParseURI(c.Args().Get(1))
	results := lvs.Match(mapped.Model, name)
	if len(results) == 0 {
		fmt.Println("no match")
		return nil
	}
	for _, r := range results {
		fmt.Printf("node %d binding=%v\n", r.NodeId, r.Binding)
	}
	return nil
}

func cmdCheck(c *cli.Context) error {
	if c.NArg() < 3 {
		return cli.NewExitError("usage: lvsc check <model.tlv> <pkt-name> <key-name>", 1)
	}
	mapped, err := loadModel(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer mapped.Close()

	schema := lvs.NewSchema(mapped.Model)
	pkt := lvs.ParseURI(c.Args().Get(1))
	key := lvs.ParseURI(c.Args().Get(2))
	if schema.Check(pkt, key) {
		fmt.Println("ok")
		return nil
	}
	fmt.Println("rejected")
	return cli.NewExitError("", 1)
}

func cmdSuggest(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.NewExitError("usage: lvsc suggest <model.tlv> <pkt-name> <key-name...>", 1)
	}
	mapped, err := loadModel(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer mapped.Close()

	schema := lvs.NewSchema(mapped.Model)
	pkt := lvs.ParseURI(c.Args().Get(1))

	var inventory []lvs.Name
	for _, a := range c.Args()[2:] {
		inventory = append(inventory, lvs.ParseURI(a))
	}

	key, ok := schema.Suggest(pkt, inventory)
	if !ok {
		fmt.Println("none")
		return cli.NewExitError("", 1)
	}
	fmt.Printf("%v\n", key)
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "lvsc"
	app.Usage = "compile and exercise Light VerSec (LVS) schemas"

	app.Commands = []cli.Command{
		{
			Name:      "compile",
			Usage:     "compile an LVS schema to a binary model",
			ArgsUsage: "<schema.lvs>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "o", Usage: "output model path"},
			},
			Action: cmdCompile,
		},
		{
			Name:      "dump",
			Usage:     "print a compiled model's tree",
			ArgsUsage: "<model.tlv>",
			Action:    cmdDump,
		},
		{
			Name:      "match",
			Usage:     "match a name against a compiled model",
			ArgsUsage: "<model.tlv> <name>",
			Action:    cmdMatch,
		},
		{
			Name:      "check",
			Usage:     "check whether a key name may sign a packet name",
			ArgsUsage: "<model.tlv> <pkt-name> <key-name>",
			Action:    cmdCheck,
		},
		{
			Name:      "suggest",
			Usage:     "suggest a signing key from an inventory",
			ArgsUsage: "<model.tlv> <pkt-name> <key-name...>",
			Action:    cmdSuggest,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
