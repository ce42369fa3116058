package main

import (
	"fmt"
	"time"

	"github.com/corvid-systems/h2transport/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var streamCmd = &cobra.Command{
	Use:   "stream <address> <method>",
	Short: "Open one RPC stream, send a single message, and print the result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, method := args[0], args[1]
		payload, _ := cmd.Flags().GetString("payload")

		tr, l, err := dialTransport(cmd, address)
		if err != nil {
			return err
		}
		if err := waitReady(cmd.Context(), l, 10*time.Second); err != nil {
			tr.Shutdown()
			return err
		}

		s := tr.NewStream(&transport.MethodDescriptor{FullName: method, ClientSendsOneMessage: true}, nil)
		if err := s.Write([]byte(payload), true); err != nil {
			log.Error().Err(err).Msg("write failed")
		}

		select {
		case <-s.Done():
		case <-cmd.Context().Done():
			tr.Shutdown()
			return cmd.Context().Err()
		case <-time.After(30 * time.Second):
			s.RST(uint32(0x8)) // CANCEL
			log.Warn().Msg("stream timed out, sent RST(CANCEL)")
		}

		st := s.Status()
		if st != nil {
			fmt.Printf("stream %d finished: %s\n", s.ID(), st.String())
		}
		if body := s.Read(); len(body) > 0 {
			fmt.Printf("received %d bytes: %q\n", len(body), body)
		}

		tr.Shutdown()
		<-l.doneCh
		return nil
	},
}

func init() {
	streamCmd.Flags().String("payload", "", "raw bytes to send as the single DATA frame")
}
