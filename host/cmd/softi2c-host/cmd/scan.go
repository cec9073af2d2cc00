package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"microi2c/host/mqtt"
)

var (
	scanCapacity int
	scanPublish  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the bus for responding addresses",
	Long: `Probe every address from 0x08 to 0x77 and list the ones that answer.
The scan ends once --capacity devices have been found.

Examples:
  softi2c-host scan
  softi2c-host scan --capacity 4 --publish`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntVarP(&scanCapacity, "capacity", "n", 16, "stop after this many devices")
	scanCmd.Flags().BoolVar(&scanPublish, "publish", false, "publish the result to MQTT")
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.client.Scan(cmd.Context(), s.oid(), scanCapacity)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Bus %s: found %d device(s)\n", s.cfg.Bus.Name, res.Count)
	for _, a := range res.Addresses {
		fmt.Fprintf(out, "  0x%02x\n", a)
	}
	if res.Count > len(res.Addresses) {
		fmt.Fprintf(out, "  (%d not stored)\n", res.Count-len(res.Addresses))
	}

	if scanPublish {
		pub, err := mqtt.Connect(s.cfg.MQTT, s.log.Named("mqtt"))
		if err != nil {
			return err
		}
		defer pub.Close()

		report := mqtt.NewScanReport(s.cfg.Bus.Name, res.Status.String(), res.Count, res.Addresses, time.Now())
		topic, err := pub.PublishScan(report)
		if err != nil {
			return err
		}
		s.log.Info("scan published", zap.String("topic", topic))
		fmt.Fprintf(out, "Published to %s\n", topic)
	}

	if err := res.Status.Err(); err != nil {
		return fmt.Errorf("scan incomplete: %w", err)
	}
	return nil
}
