// File: cmd/root.go
// Author: momentics <momentics@gmail.com>

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-relay/cmd/bench"
	"github.com/momentics/hioload-relay/cmd/serve"
	"github.com/momentics/hioload-relay/cmd/util"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "hioload-relay",
		Short: "high-throughput UDP session relay",
		Long: fmt.Sprintf(`hioload-relay (v%s)

Relays UDP datagrams between remote peers and registered client endpoints.
Clients announce an 8-byte session id on the client port; datagrams arriving
on the peer port are forwarded to the endpoint registered for their id.`, util.Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hioload-relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			if !asJSON {
				fmt.Fprintf(cmd.OutOrStdout(), "hioload-relay v%s (%s %s/%s)\n",
					util.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
				return nil
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(util.ServiceInfo())
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitEnv)

	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("json", false, util.WrapString("Print build information as JSON"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
