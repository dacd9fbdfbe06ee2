package commands

import (
	"fmt"
	"os"

	"screwdata/lib/datasets"
	"screwdata/lib/scenario"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	scenariosCmd.AddCommand(showCmd)
	rootCmd.AddCommand(scenariosCmd)
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Prints the scenario catalog.",
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "Name", "Classes", "Observations", "Published"})

		for _, s := range datasets.List() {
			t.AppendRow(table.Row{s.Short, s.Full, s.Classes, s.Observations, s.Published})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <scenario>",
	Short: "Prints the classes and record metadata of one scenario.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := scenario.Resolve(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		fmt.Printf("%s (%s)\n", s.FullName(), s.Names.Long)
		fmt.Printf("title:   %s\n", s.Metadata.Title)
		fmt.Printf("license: %s\n", s.Metadata.License)
		fmt.Printf("doi:     %s\n", s.Metadata.Doi)
		fmt.Printf("archive: %s (md5 %s)\n", s.Data.FileName, s.Data.Md5Checksum)
		fmt.Printf("url:     %s\n", s.DownloadUrl())

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Class", "Name", "Condition", "Count"})

		for _, c := range s.Classes {
			t.AppendRow(table.Row{c.Id, c.Name, c.Condition, c.Count})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
