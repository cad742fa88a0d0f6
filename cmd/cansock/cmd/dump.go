package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kstaniek/go-socketcan"
)

var (
	blue  = color.New(color.FgHiBlue).SprintfFunc()
	red   = color.New(color.FgRed).SprintfFunc()
	green = color.New(color.FgGreen).SprintfFunc()
)

var dumpCmd = &cobra.Command{
	Use:   "dump <interface>",
	Short: "Dump frames received on a SocketCAN interface",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	f := dumpCmd.Flags()
	f.StringSlice(flagFilter, nil, "acceptance filter as hex id:mask, repeatable (e.g. --filter 100:7FF)")
	f.Bool(flagJoinFilters, false, "frames must match all filters instead of any")
	f.Uint32(flagErrorMask, socketcan.ErrorMaskAll, "error mask controlling which error frames are delivered")
	f.Duration(flagTimeout, 500*time.Millisecond, "poll interval for shutdown checks")
	f.Bool(flagNoColor, false, "disable colored output")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	specs, _ := cmd.Flags().GetStringSlice(flagFilter)
	joinFilters, _ := cmd.Flags().GetBool(flagJoinFilters)
	errorMask, _ := cmd.Flags().GetUint32(flagErrorMask)
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)
	if noColor, _ := cmd.Flags().GetBool(flagNoColor); noColor {
		color.NoColor = true
	}

	filters, err := parseFilterSpecs(specs)
	if err != nil {
		return err
	}

	iface := args[0]
	sock, err := socketcan.Open(iface)
	if err != nil {
		return err
	}
	defer sock.Close()

	if err := sock.SetErrorMask(errorMask); err != nil {
		return fmt.Errorf("set error mask: %w", err)
	}
	if filters != nil {
		if err := sock.SetFilters(filters); err != nil {
			return fmt.Errorf("set filters: %w", err)
		}
	}
	if joinFilters {
		if err := sock.SetJoinFilters(true); err != nil {
			return fmt.Errorf("set join filters: %w", err)
		}
	}
	if timeout > 0 {
		if err := sock.SetReadTimeout(timeout); err != nil {
			return fmt.Errorf("set read timeout: %w", err)
		}
	}

	ctx := cmd.Context()
	for {
		if ctx.Err() != nil {
			return nil
		}
		fr, ts, err := sock.Read()
		if err != nil {
			if socketcan.ShouldRetry(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Println(renderFrame(iface, fr, ts))
	}
}

// renderFrame formats one frame candump style, one line per frame.
func renderFrame(iface string, fr socketcan.Frame, ts time.Time) string {
	var out strings.Builder
	out.WriteString(ts.Format("15:04:05.000000"))
	out.WriteString("  ")
	out.WriteString(fmt.Sprintf("%-6s", iface))
	out.WriteString("  ")
	if fr.IsError() {
		out.WriteString(red("%X", fr.ID()))
		out.WriteString("  [")
		out.WriteString(strconv.Itoa(fr.Len()))
		out.WriteString("]  ")
		out.WriteString(hexView(fr))
		if report, err := socketcan.DecodeError(fr); err == nil {
			out.WriteString("  ")
			out.WriteString(red("%s", report.Error()))
		}
		return out.String()
	}
	if fr.IsExtended() {
		out.WriteString(blue("%08X", fr.ID()))
	} else {
		out.WriteString(green("%03X", fr.ID()))
	}
	if fr.IsRTR() {
		out.WriteString("  [")
		out.WriteString(strconv.Itoa(fr.Len()))
		out.WriteString("]  remote request")
		return out.String()
	}
	out.WriteString("  [")
	out.WriteString(strconv.Itoa(fr.Len()))
	out.WriteString("]  ")
	out.WriteString(hexView(fr))
	return out.String()
}

func hexView(fr socketcan.Frame) string {
	var hv strings.Builder
	data := fr.Data()
	for i, b := range data {
		hv.WriteString(fmt.Sprintf("%02X", b))
		if i != len(data)-1 {
			hv.WriteString(" ")
		}
	}
	return hv.String()
}

// parseFilterSpecs parses repeated hex id:mask pairs. Nil input means no
// filter call at all, preserving the kernel accept-all default.
func parseFilterSpecs(specs []string) ([]socketcan.Filter, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	filters := make([]socketcan.Filter, 0, len(specs))
	for _, s := range specs {
		idPart, maskPart, ok := strings.Cut(strings.TrimSpace(s), ":")
		if !ok {
			return nil, fmt.Errorf("invalid filter %q: want id:mask", s)
		}
		id, err := strconv.ParseUint(idPart, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid filter id %q: %w", idPart, err)
		}
		mask, err := strconv.ParseUint(maskPart, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid filter mask %q: %w", maskPart, err)
		}
		filters = append(filters, socketcan.Filter{ID: uint32(id), Mask: uint32(mask)})
	}
	return filters, nil
}
