package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/corvid-systems/h2transport/transport"
	"github.com/corvid-systems/h2transport/utils/certs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/status"
)

var (
	re          = lipgloss.NewRenderer(os.Stdout)
	headerStyle = re.NewStyle().Bold(true).Align(lipgloss.Center)
	cellStyle   = re.NewStyle().Padding(0, 1)
)

// cliListener renders each lifecycle callback as a row appended to a
// running table, and signals readyCh/doneCh so subcommands
// can wait for the state they care about.
type cliListener struct {
	rows    *table.Table
	readyCh chan struct{}
	doneCh  chan struct{}
}

func newCLIListener() *cliListener {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("TIME", "EVENT", "DETAIL")
	return &cliListener{
		rows:    t,
		readyCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (l *cliListener) row(event, detail string) {
	l.rows.Row(time.Now().Format("15:04:05.000"), event, detail)
}

func (l *cliListener) TransportReady() {
	l.row("READY", "first SETTINGS observed")
	close(l.readyCh)
}

func (l *cliListener) TransportShutdown(st *status.Status) {
	l.row("GOING_AWAY", st.String())
}

func (l *cliListener) TransportTerminated() {
	l.row("TERMINATED", "")
	close(l.doneCh)
}

func buildNegotiator(address string, insecure, selfSigned bool) (transport.Negotiator, error) {
	switch {
	case selfSigned:
		cm := certs.NewSelfSignedCertManager("h2probe-dev", os.TempDir())
		pool, err := cm.TrustPool()
		if err != nil {
			return nil, fmt.Errorf("building dev trust pool: %w", err)
		}
		return transport.NewTLSNegotiator(address, &tls.Config{RootCAs: pool}, transport.DefaultConnectionSpec)
	case insecure:
		return transport.NewTLSNegotiator(address, &tls.Config{InsecureSkipVerify: true}, transport.DefaultConnectionSpec)
	default:
		return transport.NewTLSNegotiator(address, nil, transport.DefaultConnectionSpec)
	}
}

func dialTransport(cmd *cobra.Command, address string) (*transport.Transport, *cliListener, error) {
	tlsFlag, _ := cmd.Flags().GetBool("tls")
	insecureFlag, _ := cmd.Flags().GetBool("insecure")
	selfSignedFlag, _ := cmd.Flags().GetBool("self-signed")
	keepalive, _ := cmd.Flags().GetDuration("keepalive")

	var negotiator transport.Negotiator = transport.PlaintextNegotiator{}
	if tlsFlag || insecureFlag || selfSignedFlag {
		n, err := buildNegotiator(address, insecureFlag, selfSignedFlag)
		if err != nil {
			return nil, nil, err
		}
		negotiator = n
	}

	tr := transport.New(address, transport.Options{
		Authority:     address,
		Negotiator:    negotiator,
		KeepaliveTime: keepalive,
	})
	l := newCLIListener()
	l.row("CONNECTING", address)
	tr.Start(l)
	return tr, l, nil
}

func waitReady(ctx context.Context, l *cliListener, timeout time.Duration) error {
	select {
	case <-l.readyCh:
		return nil
	case <-l.doneCh:
		return fmt.Errorf("transport terminated before becoming ready")
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for transport ready", timeout)
	}
}

var dialCmd = &cobra.Command{
	Use:   "dial <address>",
	Short: "Connect to a server and print lifecycle transitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address := args[0]
		tr, l, err := dialTransport(cmd, address)
		if err != nil {
			return err
		}

		if err := waitReady(cmd.Context(), l, 10*time.Second); err != nil {
			log.Error().Err(err).Msg("dial failed")
		} else {
			log.Info().Str("address", address).Msg("transport ready")
		}

		tr.Shutdown()
		<-l.doneCh

		fmt.Println(l.rows)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{dialCmd, pingCmd, streamCmd} {
		c.Flags().Bool("tls", false, "negotiate TLS")
		c.Flags().Bool("insecure", false, "negotiate TLS without verifying the server certificate")
		c.Flags().Bool("self-signed", false, "negotiate TLS trusting h2probe's own self-signed dev certificate")
		c.Flags().Duration("keepalive", 0, "keepalive ping interval (0 disables)")
	}
}
