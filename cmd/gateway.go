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
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"knotlang.dev/knot/gateway"
)

// gatewayCmd represents the gateway command
var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Serve the toolchain gateway for non-editor clients",
	Long: `Serve toolchain services (Ping, Version, Query) over a length-prefixed JSON
bytestream, for clients that do not speak the Language Server Protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return err
		}
		pterm.Info.Printf("gateway listening on %s\n", addr)
		return gateway.NewServer().ListenAndServe(addr)
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
	gatewayCmd.Flags().String("addr", "localhost:7659", "listen address")
}
