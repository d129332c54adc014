// cmd/shell.go
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/spf13/cobra"

	// Import the attack modules so they register themselves
	_ "github.com/SaudiLinux/urlget/internal/modules/dns_attacks"
)

type ShellContext struct {
	CurrentModule core.Plugin
	Options       map[string]interface{}
}

// StartShell runs the interactive module shell until exit, quit or EOF.
func StartShell(in io.Reader, out io.Writer) {
	shellCtx := &ShellContext{Options: map[string]interface{}{}}
	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "\n🦾 Welcome to the URLGET DNS attack shell")
	for {
		prompt := "urlget> "
		if shellCtx.CurrentModule != nil {
			prompt = fmt.Sprintf("urlget (%s)> ", shellCtx.CurrentModule.Name())
		}
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" || (err != nil && line == "") {
			fmt.Fprintln(out, "Goodbye!")
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "list":
			for _, p := range core.ListPlugins() {
				fmt.Fprintf(out, "%s\t%s\t%s\n", p.Category(), p.Name(), p.Description())
			}
		case "search":
			if len(args) < 2 {
				fmt.Fprintln(out, "Usage: search <keyword>")
				continue
			}
			kw := strings.ToLower(args[1])
			for _, p := range core.ListPlugins() {
				if strings.Contains(strings.ToLower(p.Name()), kw) || strings.Contains(strings.ToLower(p.Description()), kw) {
					fmt.Fprintf(out, "%s\t%s\t%s\n", p.Category(), p.Name(), p.Description())
				}
			}
		case "use":
			if len(args) < 2 {
				fmt.Fprintln(out, "Usage: use <module>")
				continue
			}
			p, ok := core.GetPlugin(args[1])
			if !ok {
				fmt.Fprintln(out, "Module not found.")
				continue
			}
			shellCtx.CurrentModule = p
			shellCtx.Options = map[string]interface{}{}
			fmt.Fprintf(out, "Module '%s' selected. Type 'info' to see options.\n", p.Name())
		case "info":
			if shellCtx.CurrentModule == nil {
				fmt.Fprintln(out, "No module selected.")
				continue
			}
			fmt.Fprintf(out, "\nModule: %s\nDescription: %s\nCategory: %s\n", shellCtx.CurrentModule.Name(), shellCtx.CurrentModule.Description(), shellCtx.CurrentModule.Category())
			fmt.Fprintln(out, "\nOptions:")
			printOptions(out, shellCtx)
		case "help":
			if shellCtx.CurrentModule == nil {
				fmt.Fprintln(out, "Commands: list, search, use, set, info, show options, help, run, back, exit")
				continue
			}
			fmt.Fprintln(out, shellCtx.CurrentModule.Help())
		case "set":
			if shellCtx.CurrentModule == nil {
				fmt.Fprintln(out, "No module selected. Use 'use <module>' first.")
				continue
			}
			if len(args) < 3 {
				fmt.Fprintln(out, "Usage: set <option> <value>")
				continue
			}
			opt := args[1]
			val := strings.Join(args[2:], " ")

			validOption := opt == "target"
			for _, moduleOpt := range shellCtx.CurrentModule.Options() {
				if moduleOpt.Name == opt {
					validOption = true
					break
				}
			}
			if !validOption {
				fmt.Fprintf(out, "Invalid option '%s'. Use 'info' to see available options.\n", opt)
				continue
			}

			shellCtx.Options[opt] = val
			fmt.Fprintf(out, "Set %s = %s\n", opt, val)
		case "run":
			if shellCtx.CurrentModule == nil {
				fmt.Fprintln(out, "No module selected.")
				continue
			}

			missingRequired := []string{}
			for _, opt := range shellCtx.CurrentModule.Options() {
				if opt.Required {
					if _, ok := shellCtx.Options[opt.Name]; !ok {
						missingRequired = append(missingRequired, opt.Name)
					}
				}
			}
			if len(missingRequired) > 0 {
				fmt.Fprintf(out, "Missing required options: %s\n", strings.Join(missingRequired, ", "))
				continue
			}

			target := core.OptionString(shellCtx.Options, "target", "")
			if target == "" {
				fmt.Fprint(out, "Enter target: ")
				target, _ = reader.ReadString('\n')
				target = strings.TrimSpace(target)
			}

			fmt.Fprintf(out, "Running %s against %s...\n", shellCtx.CurrentModule.Name(), target)
			res, err := shellCtx.CurrentModule.Run(target, shellCtx.Options)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			} else {
				fmt.Fprintf(out, "%v\n", res)
			}
		case "back":
			shellCtx.CurrentModule = nil
			shellCtx.Options = map[string]interface{}{}
			fmt.Fprintln(out, "Back to main shell.")
		case "show":
			if len(args) > 1 && args[1] == "options" {
				if shellCtx.CurrentModule == nil {
					fmt.Fprintln(out, "No module selected.")
					continue
				}
				fmt.Fprintln(out, "\nModule Options:")
				printOptions(out, shellCtx)
			} else {
				fmt.Fprintln(out, "Usage: show options")
			}
		default:
			fmt.Fprintln(out, "Unknown command. Try: list, search, use, set, info, show options, help, run, back, exit")
		}
	}
}

func printOptions(out io.Writer, shellCtx *ShellContext) {
	options := shellCtx.CurrentModule.Options()
	if len(options) == 0 {
		fmt.Fprintln(out, "  No configurable options for this module.")
		return
	}
	fmt.Fprintf(out, "  %-15s %-10s %-15s %s\n", "Name", "Required", "Current Value", "Description")
	fmt.Fprintf(out, "  %-15s %-10s %-15s %s\n", "----", "--------", "-------------", "-----------")
	for _, opt := range options {
		required := "no"
		if opt.Required {
			required = "yes"
		}
		currentVal := opt.Default
		if val, ok := shellCtx.Options[opt.Name]; ok {
			currentVal = val
		}
		fmt.Fprintf(out, "  %-15s %-10s %-15v %s\n", opt.Name, required, currentVal, opt.Description)
	}
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Interactive Metasploit-style shell over the DNS attack modules",
		Run: func(cmd *cobra.Command, args []string) {
			StartShell(os.Stdin, os.Stdout)
		},
	})
}
