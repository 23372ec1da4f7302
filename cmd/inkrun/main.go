// Command inkrun is an interactive driver over the inkrunner session
// façade: it loads a story file and walks prose and choices at the
// terminal until the story ends.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/windlore/inkrunner"
	"github.com/windlore/inkrunner/internal/follow"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "inkrun <story-file>",
		Short: "Play an inkrunner story interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log failed resume and choice operations to stderr")
	return cmd
}

func run(path string, verbose bool) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var opts []inkrunner.Option
	if verbose {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		opts = append(opts, inkrunner.WithLogger(logger))
	}

	sess, err := inkrunner.LoadStory(string(source), opts...)
	if err != nil {
		return err
	}

	prompt, err := sess.Resume()
	if err != nil {
		return err
	}

	input := bufio.NewScanner(os.Stdin)
	for {
		renderLines(prompt.Lines)

		if prompt.Done {
			pterm.Info.Println("-- the end --")
			return nil
		}

		selection, err := promptChoice(input, prompt.Choices)
		if err != nil {
			return err
		}

		prompt, err = sess.MakeChoice(selection)
		if err != nil {
			return err
		}
	}
}

func renderLines(lines []follow.LineEntry) {
	for _, l := range lines {
		if l.Text == "" {
			continue
		}
		pterm.DefaultParagraph.Println(l.Text)
	}
}

func promptChoice(input *bufio.Scanner, choices []follow.ChoiceInfo) (int, error) {
	menu := make([]string, len(choices))
	for i, c := range choices {
		menu[i] = fmt.Sprintf("%d. %s", i+1, c.Text)
	}
	pterm.DefaultBox.Println(strings.Join(menu, "\n"))

	for {
		pterm.Print("> ")
		if !input.Scan() {
			return 0, fmt.Errorf("no more input")
		}
		n, err := strconv.Atoi(strings.TrimSpace(input.Text()))
		if err != nil || n < 1 || n > len(choices) {
			pterm.Warning.Println("enter a number from the menu above")
			continue
		}
		return choices[n-1].Index, nil
	}
}
