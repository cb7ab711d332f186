// wearctl is a CLI for inspecting and editing wear-leveled record store
// images.
//
// Usage:
//
//	wearctl [opts] <image-file>
//
// The image file is created zero-filled if it does not exist, and the
// region is formatted on first attach. Region parameters come from flags,
// a .wearctl.json config file, or built-in defaults, in that order of
// precedence.
//
// Options:
//
//	-c, --config       Explicit config file
//	-d, --device-size  Device size in bytes
//	-s, --start        Region start address
//	-n, --items        Region record capacity (1-255)
//	-i, --item-size    Payload size in bytes
//
// Commands (in REPL):
//
//	insert <payload>   Insert a record
//	select             Show the record at the cursor
//	update <payload>   Overwrite the record at the cursor
//	del                Delete the record at the cursor
//	top / next         Move the cursor across enabled records
//	list               Walk and print all enabled records
//	count              Show the live-record counter
//	clean              Disable every record
//	save               Persist the table to the device
//	load               Rebuild the table from the device
//	dump               Hex dump of the region with the frontier marked
//	info               Show region layout and addresses
//	export <path>      Write an atomic copy of the device image
//	fill <n>           Insert n sequential records
//	help               Show this help
//	exit / quit / q    Exit
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/wearstore/pkg/eeprom"
	"github.com/calvinalkan/wearstore/pkg/weartable"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := flag.NewFlagSet("wearctl", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	configPath := flagSet.StringP("config", "c", "", "explicit config file")
	deviceSize := flagSet.IntP("device-size", "d", 0, "device size in bytes")
	start := flagSet.IntP("start", "s", -1, "region start address")
	items := flagSet.IntP("items", "n", 0, "region record capacity")
	itemSize := flagSet.IntP("item-size", "i", 0, "payload size in bytes")
	help := flagSet.BoolP("help", "h", false, "show usage")

	err := flagSet.Parse(os.Args[1:])
	if err != nil {
		printUsage()

		return err
	}

	if *help {
		printUsage()

		return nil
	}

	if flagSet.NArg() < 1 {
		printUsage()

		return errors.New("missing image file path")
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfg, err := LoadConfig(workDir, *configPath)
	if err != nil {
		return err
	}

	// Flag overrides win over config files.
	if *deviceSize > 0 {
		cfg.DeviceSize = *deviceSize
	}

	if *start >= 0 {
		cfg.Start = *start
	}

	if *items > 0 {
		cfg.Items = *items
	}

	if *itemSize > 0 {
		cfg.ItemSize = *itemSize
	}

	imagePath := flagSet.Arg(0)

	dev, err := eeprom.OpenFile(imagePath, cfg.DeviceSize)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer dev.Close()

	tbl, err := weartable.NewTable(cfg.Items, cfg.ItemSize)
	if err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	store := weartable.NewStore(dev, tbl)

	err = store.Attach(cfg.Start, cfg.Items)
	if err != nil {
		return fmt.Errorf("attaching region: %w", err)
	}

	repl := &REPL{
		dev:   dev,
		table: tbl,
		store: store,
		cfg:   cfg,
		path:  imagePath,
	}

	return repl.Run()
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: wearctl [options] <image-file>\n\n")
	fmt.Fprintf(os.Stderr, "Open (or create) a record store image and start an interactive session.\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	fmt.Fprintf(os.Stderr, "  -c, --config       explicit config file\n")
	fmt.Fprintf(os.Stderr, "  -d, --device-size  device size in bytes\n")
	fmt.Fprintf(os.Stderr, "  -s, --start        region start address\n")
	fmt.Fprintf(os.Stderr, "  -n, --items        region record capacity (1-255)\n")
	fmt.Fprintf(os.Stderr, "  -i, --item-size    payload size in bytes\n")
}

// REPL is the interactive command loop.
type REPL struct {
	dev   *eeprom.File
	table *weartable.Table
	store *weartable.Store
	cfg   Config
	path  string
	liner *liner.State
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".wearctl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("wearctl - %s (start=%d, items=%d, item_size=%d)\n",
		r.path, r.cfg.Start, r.cfg.Items, r.cfg.ItemSize)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("wearctl> ")
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

		case "insert", "ins":
			r.cmdInsert(args)

		case "select", "sel":
			r.cmdSelect()

		case "update", "upd":
			r.cmdUpdate(args)

		case "del", "delete":
			r.cmdDelete()

		case "top":
			r.cmdTop()

		case "next":
			r.cmdNext()

		case "list", "ls", "scan":
			r.cmdList()

		case "count", "len":
			fmt.Printf("%d live record(s)\n", r.table.Counter())

		case "clean":
			r.table.Clean()
			fmt.Println("OK")

		case "save":
			r.cmdSave()

		case "load":
			r.cmdLoad()

		case "dump":
			r.cmdDump()

		case "info":
			r.cmdInfo()

		case "export":
			r.cmdExport(args)

		case "fill":
			r.cmdFill(args)

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer provides tab completion for commands.
func (r *REPL) completer(line string) []string {
	commands := []string{
		"insert", "select", "update", "del", "delete",
		"top", "next", "list", "ls", "scan",
		"count", "len", "clean", "save", "load",
		"dump", "info", "export", "fill",
		"clear", "cls", "help", "exit", "quit", "q",
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
	fmt.Println("  insert <payload>   Insert a record")
	fmt.Println("  select             Show the record at the cursor")
	fmt.Println("  update <payload>   Overwrite the record at the cursor")
	fmt.Println("  del                Delete the record at the cursor")
	fmt.Println("  top / next         Move the cursor across enabled records")
	fmt.Println("  list               Walk and print all enabled records")
	fmt.Println("  count              Show the live-record counter")
	fmt.Println("  clean              Disable every record")
	fmt.Println("  save               Persist the table to the device")
	fmt.Println("  load               Rebuild the table from the device")
	fmt.Println("  dump               Hex dump of the region with the frontier marked")
	fmt.Println("  info               Show region layout and addresses")
	fmt.Println("  export <path>      Write an atomic copy of the device image")
	fmt.Println("  fill <n>           Insert n sequential records")
	fmt.Println("  help               Show this help")
	fmt.Println("  exit / quit / q    Exit")
	fmt.Println()
	fmt.Println("Payloads: hex (e.g., 'deadbeef') or plain text (e.g., 'foo').")
	fmt.Println("          Zero-padded or truncated to item_size.")
}

// parsePayload parses a payload from user input.
// Tries hex first, falls back to plain text.
func (r *REPL) parsePayload(s string) []byte {
	raw, err := hex.DecodeString(s)
	if err != nil {
		raw = []byte(s)
	}

	payload := make([]byte, r.cfg.ItemSize)
	copy(payload, raw)

	return payload
}

// formatPayload formats a payload for display: text if printable, hex
// otherwise.
func formatPayload(payload []byte) string {
	printable := true

	for _, b := range payload {
		if (b < 0x20 || b > 0x7E) && b != 0 {
			printable = false

			break
		}
	}

	if printable {
		return strconv.Quote(strings.TrimRight(string(payload), "\x00"))
	}

	return hex.EncodeToString(payload)
}

func (r *REPL) cmdInsert(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: insert <payload>")

		return
	}

	err := r.table.Insert(r.parsePayload(args[0]))
	if err != nil {
		fmt.Printf("insert failed: %v\n", err)

		return
	}

	fmt.Printf("OK (%d live)\n", r.table.Counter())
}

func (r *REPL) cmdSelect() {
	payload, err := r.table.Select()
	if err != nil {
		fmt.Printf("select failed: %v\n", err)

		return
	}

	fmt.Println(formatPayload(payload))
}

func (r *REPL) cmdUpdate(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: update <payload>")

		return
	}

	err := r.table.Update(r.parsePayload(args[0]))
	if err != nil {
		fmt.Printf("update failed: %v\n", err)

		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdDelete() {
	err := r.table.Delete()
	if err != nil {
		fmt.Printf("delete failed: %v\n", err)

		return
	}

	fmt.Printf("OK (%d live)\n", r.table.Counter())
}

func (r *REPL) cmdTop() {
	err := r.table.Top()
	if err != nil {
		fmt.Printf("top failed: %v\n", err)

		return
	}

	r.cmdSelect()
}

func (r *REPL) cmdNext() {
	err := r.table.Next()
	if err != nil {
		fmt.Printf("next failed: %v\n", err)

		return
	}

	r.cmdSelect()
}

func (r *REPL) cmdList() {
	n := 0

	for err := r.table.Top(); err == nil; err = r.table.Next() {
		payload, selErr := r.table.Select()
		if selErr != nil {
			fmt.Printf("walk failed: %v\n", selErr)

			return
		}

		fmt.Printf("  [%d] %s\n", n, formatPayload(payload))
		n++
	}

	fmt.Printf("%d record(s)\n", n)
}

func (r *REPL) cmdSave() {
	err := r.store.Save()
	if err != nil {
		fmt.Printf("save failed: %v\n", err)

		return
	}

	if syncErr := r.dev.Sync(); syncErr != nil {
		fmt.Printf("sync failed: %v\n", syncErr)

		return
	}

	top, _ := r.store.TopAddress()
	fmt.Printf("OK (%d record(s) at %d)\n", r.table.Counter(), top)
}

func (r *REPL) cmdLoad() {
	err := r.store.Load()
	if err != nil {
		fmt.Printf("load failed: %v\n", err)

		return
	}

	fmt.Printf("OK (%d live)\n", r.table.Counter())
}

func (r *REPL) cmdDump() {
	top, err := r.store.TopAddress()
	if err != nil {
		fmt.Printf("dump failed: %v\n", err)

		return
	}

	next, err := r.store.NextFreeAddress()
	if err != nil {
		fmt.Printf("dump failed: %v\n", err)

		return
	}

	const perLine = 16

	for base := r.cfg.Start; base < next; base += perLine {
		var sb strings.Builder

		fmt.Fprintf(&sb, "%06x  ", base)

		for addr := base; addr < base+perLine && addr < next; addr++ {
			b, readErr := r.dev.ReadByte(addr)
			if readErr != nil {
				fmt.Printf("dump failed: %v\n", readErr)

				return
			}

			if addr == top {
				fmt.Fprintf(&sb, "[%02x]", b)
			} else {
				fmt.Fprintf(&sb, " %02x ", b)
			}
		}

		fmt.Println(sb.String())
	}

	fmt.Printf("frontier record at %d\n", top)
}

func (r *REPL) cmdInfo() {
	top, err := r.store.TopAddress()
	if err != nil {
		fmt.Printf("info failed: %v\n", err)

		return
	}

	next, err := r.store.NextFreeAddress()
	if err != nil {
		fmt.Printf("info failed: %v\n", err)

		return
	}

	fmt.Printf("Image:          %s\n", r.path)
	fmt.Printf("Device size:    %d bytes\n", r.dev.Size())
	fmt.Printf("Region:         [%d, %d)\n", r.cfg.Start, next)
	fmt.Printf("Items:          %d x %d-byte payloads\n", r.cfg.Items, r.cfg.ItemSize)
	fmt.Printf("Live records:   %d\n", r.table.Counter())
	fmt.Printf("Frontier slot:  address %d\n", top)
}

func (r *REPL) cmdExport(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: export <path>")

		return
	}

	err := eeprom.ExportImage(r.dev, args[0])
	if err != nil {
		fmt.Printf("export failed: %v\n", err)

		return
	}

	fmt.Printf("exported %d bytes to %s\n", r.dev.Size(), args[0])
}

func (r *REPL) cmdFill(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: fill <n>")

		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		fmt.Println("fill: n must be a positive integer")

		return
	}

	inserted := 0

	for i := range n {
		insErr := r.table.Insert(r.parsePayload(fmt.Sprintf("rec-%d", i)))
		if insErr != nil {
			fmt.Printf("insert %d failed: %v\n", i, insErr)

			break
		}

		inserted++
	}

	fmt.Printf("inserted %d record(s), %d live\n", inserted, r.table.Counter())
}
