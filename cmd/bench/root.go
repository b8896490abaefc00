// File: cmd/bench/root.go
// Author: momentics <momentics@gmail.com>

package bench

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/momentics/hioload-relay/cmd/util"
	"github.com/momentics/hioload-relay/internal/loadgen"
	"github.com/momentics/hioload-relay/internal/logging"
)

var (
	benchCmdConfig = loadgen.DefaultConfig()
	BenchCmd       = &cobra.Command{
		Use:   "bench",
		Short: "Load-test a running relay",
		Long: `Allocate sessions on the relay's client port and stream paced datagrams
into its peer port, reporting throughput, round-trip time and loss. The format
of the environment variables is HIOLOAD_<flag> (e.g. HIOLOAD_SESSIONS=500)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	d := loadgen.DefaultConfig()
	flags := BenchCmd.Flags()
	key := "relay"
	flags.String(key, d.Relay, cmdUtil.WrapString("Relay IPv4 address"))
	key = "client-port"
	flags.Int(key, d.ClientPort, cmdUtil.WrapString("Relay client port"))
	key = "peer-port"
	flags.Int(key, d.PeerPort, cmdUtil.WrapString("Relay peer port"))
	key = "sessions"
	flags.Int(key, d.Sessions, cmdUtil.WrapString("Number of sessions to allocate"))
	key = "kbps"
	flags.Int(key, d.KbpsPerSession, cmdUtil.WrapString("Bitrate in Kbps to send per session"))
	key = "bytes"
	flags.Int(key, d.PacketSize, cmdUtil.WrapString("Packet size to send. Shrinks when the bitrate is too low for one packet per second"))
	key = "duration"
	flags.Duration(key, 0, cmdUtil.WrapString("How long to send, 0 runs until interrupted"))
	key = "update"
	flags.Duration(key, d.ReportInterval, cmdUtil.WrapString("Report interval"))
	key = "log-level"
	flags.String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	benchCmdConfig.Relay = viper.GetString("relay")
	benchCmdConfig.ClientPort = viper.GetInt("client-port")
	benchCmdConfig.PeerPort = viper.GetInt("peer-port")
	benchCmdConfig.Sessions = viper.GetInt("sessions")
	benchCmdConfig.KbpsPerSession = viper.GetInt("kbps")
	benchCmdConfig.PacketSize = viper.GetInt("bytes")
	benchCmdConfig.Duration = viper.GetDuration("duration")
	benchCmdConfig.ReportInterval = viper.GetDuration("update")

	return benchCmdConfig.Validate()
}

func run(cmd *cobra.Command, _ []string) error {
	log := logging.NewLogger(viper.GetString("log-level"), "text")
	gen, err := loadgen.New(benchCmdConfig, loadgen.WithLogger(log))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pps, size := gen.PacketRate()
	fmt.Fprintf(out, "Talking to relay %s (client :%d, peer :%d)\n",
		benchCmdConfig.Relay, benchCmdConfig.ClientPort, benchCmdConfig.PeerPort)
	fmt.Fprintf(out, "%d sessions, each sending %.1f packet(s) of %d bytes per second\n",
		benchCmdConfig.Sessions, pps, size)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	final, err := gen.Run(ctx, func(r loadgen.Report) {
		fmt.Fprintf(out, "[%s] %s\n", r.Elapsed.Truncate(time.Second), r)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal over %s: %s\n", final.Elapsed.Truncate(time.Millisecond), final)
	return nil
}
