package commands

import (
	"fmt"
	"os"
	"strings"

	"quizagent/internal/components/telemetry"
	"quizagent/internal/decoder"
	"quizagent/internal/locator"
	"quizagent/internal/quiz"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var decodeBaseUrl *string

func init() {
	decodeBaseUrl = decodeCmd.Flags().String("base-url", "", "The url relative table links in a local file resolve against.")
	rootCmd.AddCommand(decodeCmd)
}

var decodeCmd = &cobra.Command{
	Use:   "decode <file|url> [--base-url <url>]",
	Short: "Prints the decoded payload, submit target and tables of a quiz page without submitting anything.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tel := telemetry.SlogAPI{}
		source := args[0]

		var page quiz.RenderedPage
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			renderer, err := newRenderer(ctx, cfg, tel)
			if err != nil {
				return err
			}
			defer renderer.Close()
			page, err = renderer.Render(ctx, source)
			if err != nil {
				return err
			}
		} else {
			contents, err := os.ReadFile(source)
			if err != nil {
				return err
			}
			page = quiz.RenderedPage{Url: *decodeBaseUrl, Html: string(contents)}
		}

		payload, err := decoder.Decode(page.Html)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		fmt.Printf("obfuscated: %v\n\n%s\n\n", payload.WasObfuscated, payload.Text)

		submitUrl, err := locator.SubmitUrl(payload.Text)
		if err != nil {
			fmt.Printf("submit target: %v\n", err)
		} else {
			fmt.Printf("submit target: %s\n", submitUrl)
		}

		located := newTableLocator(cfg, tel).Locate(ctx, payload, page.Url)
		for i, lt := range located {
			printTable(i, lt)
		}
		if len(located) == 0 {
			fmt.Println("no tables found")
		}
		return nil
	},
}

func printTable(idx int, lt quiz.LocatedTable) {
	fmt.Printf("\ntable %d (%s %s)\n", idx, lt.Provenance.Kind, lt.Provenance.Url)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	if len(lt.Table.Columns) > 0 {
		header := table.Row{}
		for _, c := range lt.Table.Columns {
			header = append(header, c)
		}
		t.AppendHeader(header)
	}
	for _, row := range lt.Table.Rows {
		r := table.Row{}
		for _, cell := range row {
			r = append(r, cell)
		}
		t.AppendRow(r)
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
