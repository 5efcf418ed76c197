package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/snehjoshi/seqrelay/pkg/client"
)

// runStatus queries a running admin server and prints a short report.
func runStatus(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(out)
	addr := fs.String("addr", "http://127.0.0.1:8090", "admin server base URL")
	events := fs.Int("events", 10, "number of recent not-found events to show")
	timeout := fs.Duration("timeout", 5*time.Second, "per-request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := client.New(*addr, client.WithTimeout(*timeout))

	h, err := c.Health(ctx)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	fmt.Fprintf(out, "peer %d (instance %s) %s, up %s, %d resent\n",
		h.PeerID, h.Instance, h.Status, h.Uptime.Round(time.Second), h.Resent)

	peers, err := c.Peers(ctx)
	if err != nil {
		return fmt.Errorf("peers: %w", err)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nPEER\tQUALITY\tREQUESTS\tMISSING")
	for _, p := range peers {
		fmt.Fprintf(tw, "%d\t%.3f\t%d\t%d\n", p.ID, p.Quality, p.Requests, p.MissingMessages)
	}

	logs, err := c.Logs(ctx)
	if err != nil {
		return fmt.Errorf("logs: %w", err)
	}
	fmt.Fprintln(tw, "\nLOG\tRECEIVED\tSENT\tINDEXED")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%d/%d\t%d/%d\t%d/%d\n", l.Name,
			l.Received, l.ReceivedLimit, l.Sent, l.SentLimit, l.Indexed, l.SentMapLimit)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if *events <= 0 {
		return nil
	}
	page, err := c.Events(ctx, client.KindMessageNotInLog, *events)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	fmt.Fprintf(out, "\n%d requested messages were not in the log\n", page.Total)
	for _, e := range page.Events {
		fmt.Fprintf(out, "  %s peer=%d msg=%d %s\n", e.At.Format(time.RFC3339), e.Peer, e.MsgID, e.Detail)
	}
	return nil
}
