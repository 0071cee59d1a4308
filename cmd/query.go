/*
Copyright © 2025 The Knot Language Authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"knotlang.dev/knot/compiler"
	"knotlang.dev/knot/query"
	"knotlang.dev/knot/toolchain"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <file> [selector]",
	Short: "Select variables from compiled knot sources",
	Long: `Compile the workspace covering a file and print the variables matched by a
dotted path selector. With no selector, every variable is printed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		selector := ""
		if len(args) == 2 {
			selector = args[1]
		}

		tool := toolchain.Default()
		workspaces, failed := tool.LookupCompileWorkspaces(file, true)
		for key, err := range failed {
			pterm.Warning.Printf("discovery: %s: %v\n", key, err)
		}
		if len(workspaces) == 0 {
			return fmt.Errorf("no workspace found for %s", file)
		}

		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}

		for _, unit := range workspaces {
			diags, _, gs, err := compiler.Compile(compiler.Params{Tool: tool}, unit.Files, unit.Options)
			if err != nil {
				return err
			}
			for _, d := range diags.Values() {
				pterm.Warning.Printf("%s:%d: %s: %s\n", d.File, d.Line, d.Severity, d.Message)
			}
			vars, err := query.Select(gs, selector)
			if err != nil {
				return err
			}
			if output == "json" {
				data, err := json.MarshalIndent(vars, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				for _, v := range vars {
					fmt.Printf("%s: %s = %s\n", v.Name, v.Type, v.Value)
				}
			}
			return nil
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().String("output", "text", "output format (text, json)")
}
