// modaline-demo
//
// It is a basic example of driving the modaline input pipeline from a raw
// terminal.  It reads keys through the full pipeline (escape, mapping,
// assembly) and prints each logical key it receives.  Try defining the
// demo mapping with -map and typing "jk" quickly versus slowly.
//
// Press ^C, ^D, or q to exit.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kylelemons/modaline"
	"github.com/kylelemons/modaline/keycode"
	"github.com/kylelemons/modaline/mapping"
	"github.com/kylelemons/modaline/tty"
)

var (
	demoMap = flag.Bool("map", false, "Define a demo mapping jk -> <Esc>")
	verbose = flag.Bool("v", false, "Log pipeline events to stderr")
)

func main() {
	flag.Parse()

	dev, err := tty.Open(0, os.Stdin)
	if err != nil {
		log.Fatalf("terminal: %s", err)
	}
	if err := dev.MakeRaw(); err != nil {
		log.Fatalf("rawterm: %s", err)
	}
	defer dev.Restore()

	opts := []modaline.Option{}
	if !*verbose {
		opts = append(opts, modaline.WithLogger(nil))
	}
	core := modaline.New(opts...)
	core.AttachTTY(dev)

	if *demoMap {
		if err := core.DefineMapping(mapping.Normal, "jk", "<Esc>", mapping.Flags{}); err != nil {
			log.Fatalf("mapping: %s", err)
		}
	}

	if w, h, err := dev.Size(); err == nil {
		fmt.Printf("terminal %dx%d; press q, ^C, or ^D to quit\r\n", w, h)
	}

	for {
		key, err := core.NextKey()
		if err != nil {
			log.Printf("read: %s\r", err)
			return
		}
		switch {
		case key.Special != keycode.None:
			fmt.Printf("key: <%s> mods=%08b\r\n", key.Special, key.Mods)
		case key.Rune == 'q', key.Rune == 0x03, key.Rune == 0x04:
			fmt.Printf("Goodbye!\r\n")
			return
		default:
			fmt.Printf("key: %q mods=%08b\r\n", key.Rune, key.Mods)
		}
	}
}
