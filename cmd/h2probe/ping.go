package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping <address>",
	Short: "Dial a server and send it a handful of PING frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address := args[0]
		count, _ := cmd.Flags().GetInt("count")

		tr, l, err := dialTransport(cmd, address)
		if err != nil {
			return err
		}
		if err := waitReady(cmd.Context(), l, 10*time.Second); err != nil {
			tr.Shutdown()
			return err
		}

		rows := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == 0 {
					return headerStyle
				}
				return cellStyle
			}).
			Headers("N", "RTT", "ERROR")

		for i := 1; i <= count; i++ {
			result := make(chan struct {
				rtt time.Duration
				err error
			}, 1)
			tr.Ping(func(rtt time.Duration, err error) {
				result <- struct {
					rtt time.Duration
					err error
				}{rtt, err}
			})

			select {
			case r := <-result:
				errStr := ""
				if r.err != nil {
					errStr = r.err.Error()
				}
				rows.Row(fmt.Sprintf("%d", i), r.rtt.String(), errStr)
			case <-cmd.Context().Done():
				tr.Shutdown()
				return cmd.Context().Err()
			case <-time.After(10 * time.Second):
				rows.Row(fmt.Sprintf("%d", i), "-", "timed out")
			}
		}

		fmt.Println(rows)
		log.Info().Msg("ping run complete, shutting down")
		tr.Shutdown()
		<-l.doneCh
		return nil
	},
}

func init() {
	pingCmd.Flags().Int("count", 4, "number of pings to send")
}
