package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kstaniek/go-socketcan"
)

var sendCmd = &cobra.Command{
	Use:   "send <interface> <frame>",
	Short: "Send a single frame onto a SocketCAN interface",
	Long: `Send a single frame. The frame is given in the usual ID#BYTES text
form, e.g. 7B#DEADBEEF, 1F334455#1122334455667788 or 123#R for a remote
request.`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().Duration(flagTimeout, time.Second, "write timeout")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)

	fr, err := socketcan.ParseFrame(args[1])
	if err != nil {
		return fmt.Errorf("parse frame %q: %w", args[1], err)
	}

	sock, err := socketcan.Open(args[0])
	if err != nil {
		return err
	}
	defer sock.Close()

	if timeout > 0 {
		if err := sock.SetWriteTimeout(timeout); err != nil {
			return fmt.Errorf("set write timeout: %w", err)
		}
	}
	if err := sock.WriteRetry(fr); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
