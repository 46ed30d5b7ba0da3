package main

import (
	"fmt"
	. "github.com/ZenLiuCN/dynpatch"
	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"
	"log"
	"os"
)

func main() {
	app := cli.NewApp()
	app.Usage = "runtime search list patcher"
	app.Name = "Patcher"
	app.Description = "load host archives into a loader, then patch a plugin archive into its search list"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "patch",
			Action: patch,
			Flags: []cli.Flag{
				&cli.StringSliceFlag{Name: "host", Aliases: []string{"H"}, Usage: "host archives loaded before patching, in search order"},
				&cli.StringFlag{Name: "plugin", Aliases: []string{"p"}, Usage: "plugin archive to patch in", Required: true},
				&cli.StringFlag{Name: "scratch", Aliases: []string{"s"}, Usage: "writable directory for linkable artifacts", Value: os.TempDir()},
				&cli.StringFlag{Name: "pkg", Aliases: []string{"k"}, Usage: "package path of archives or default main"},
				&cli.IntFlag{Name: "level", Aliases: []string{"l"}, Usage: "platform level", Value: ModernLevel, EnvVars: []string{LevelEnv}},
				&cli.BoolFlag{Name: "allow-earliest", Usage: "allow the earliest element layout", EnvVars: []string{AllowEarliestEnv}},
				&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "log patch failure and continue"},
				&cli.StringSliceFlag{Name: "call", Aliases: []string{"c"}, Usage: "symbols of type func() string to call after patching"},
			},
			Usage: "patch a plugin archive into a loader and resolve symbols through it",
		},
		{
			Name:   "inspect",
			Action: inspect,
			Usage:  "display symbols and imports of archives",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "pkg", Aliases: []string{"k"}, Usage: "package path or default main"},
				&cli.BoolFlag{Name: "dump", Usage: "dump imports structure"},
			},
			Args: true,
		},
		{
			Name:   "generation",
			Action: generation,
			Usage:  "display the element layout used by a platform level",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "level", Aliases: []string{"l"}, Value: ModernLevel, EnvVars: []string{LevelEnv}},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("failure %s", err)
	}
}

func patch(ctx *cli.Context) (err error) {
	d := ctx.Bool("debug")
	sym, err := NewSymbols()
	if err != nil {
		return fmt.Errorf("register runtime symbols: %w", err)
	}
	opener := ObjectOpener{Symbols: sym, Package: ctx.String("pkg"), Debug: d}
	scratch := ctx.String("scratch")
	l, err := OpenLoader(nil, opener, scratch, ctx.StringSlice("host")...)
	if err != nil {
		return fmt.Errorf("open host archives: %w", err)
	}
	defer func() {
		if e := l.Close(); e != nil && d {
			log.Printf("close loader: %v", e)
		}
	}()
	p := &Patcher{
		Opener:        opener,
		Level:         ctx.Int("level"),
		AllowEarliest: ctx.Bool("allow-earliest"),
		Debug:         d,
	}
	if d {
		log.Printf("patch with %s layout", p.Generation())
	}
	plugin := ctx.String("plugin")
	if ctx.Bool("quiet") {
		p.PatchQuietly(l, plugin, scratch)
	} else if err = p.Patch(l, plugin, scratch); err != nil {
		return
	}
	for i, e := range l.Elements() {
		log.Printf("%d\t%s", i, e)
	}
	for _, s := range ctx.StringSlice("call") {
		Use[func() string](l, s)(func(f func() string, err error) {
			if err != nil {
				log.Printf("%s: %v", s, err)
				return
			}
			log.Printf("%s: %s", s, f())
		})
	}
	return
}

func inspect(ctx *cli.Context) (err error) {
	for _, s := range ctx.Args().Slice() {
		var syms []string
		if syms, err = Inspect(s, ctx.String("pkg")); err != nil {
			return
		}
		log.Printf("%s symbols:", s)
		for _, x := range syms {
			fmt.Println("\t" + x)
		}
		var v *Info
		if v, err = ObjectImportsIter(s, ctx.String("pkg")); err != nil {
			return
		}
		if ctx.Bool("dump") {
			spew.Dump(v)
		} else {
			log.Printf("%s imports:\n%s", s, v.String())
		}
	}
	return
}

func generation(ctx *cli.Context) error {
	l := ctx.Int("level")
	fmt.Printf("%d\t%s\n", l, GenerationOf(l))
	return nil
}
