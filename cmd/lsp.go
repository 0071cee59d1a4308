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
	"fmt"
	"os"

	LSP "knotlang.dev/knot/lsp"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// lspCmd represents the lsp command
var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Launch the knot language server",
	Long: `Launch a Language Server Protocol (LSP) server for knot sources.

The server discovers workspaces from knot.work and knot.mod files in the
editor's workspace folders, compiles them in the background as buffers
change, and publishes diagnostics per file.

Features provided:
- Diagnostics from background compiles
- Hover, go-to-definition and references for bindings
- Completion from workspace symbols
- Workspace symbol search`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Redirect all pterm output to stderr immediately to keep the LSP
		// stdout stream clean.
		pterm.SetDefaultOutput(os.Stderr)

		transport := LSP.TransportStdio
		tcpFlag, _ := cmd.Flags().GetBool("tcp")
		if tcpFlag {
			transport = LSP.TransportTCP
		}

		addr, _ := cmd.Flags().GetString("addr")
		server, err := LSP.NewServer(transport, LSP.WithAddr(addr))
		if err != nil {
			return fmt.Errorf("failed to create LSP server: %w", err)
		}
		return server.Run()
	},
}

func init() {
	rootCmd.AddCommand(lspCmd)
	lspCmd.Flags().Bool("stdio", true, "use stdio transport (default)")
	lspCmd.Flags().Bool("tcp", false, "use TCP transport")
	lspCmd.Flags().String("addr", "localhost:7658", "listen address for the TCP transport")
}
