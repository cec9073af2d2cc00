package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"microi2c/core"
)

var (
	simCapacity     int
	simStretchLimit uint32
	simTrace        bool
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the bus engine against simulated devices",
	Long: `Run the bit-banged master directly over a simulated wired-AND bus,
without firmware or protocol in between. Timing is virtual, so the
reported bus time is what the transfers would take on hardware at the
configured delay.

Examples:
  softi2c-host sim --devices 0x20,0x42
  softi2c-host sim --devices 0x3c --stretch-us 500 --stretch-limit-us 100 --trace`,
	RunE: runSim,
}

func init() {
	rootCmd.AddCommand(simCmd)

	simCmd.Flags().IntVarP(&simCapacity, "capacity", "n", 16, "stop the scan after this many devices")
	simCmd.Flags().Uint32Var(&simStretchLimit, "stretch-limit-us", 0, "give up on clock stretching after this long (0 waits forever)")
	simCmd.Flags().BoolVar(&simTrace, "trace", false, "dump the bus trace afterwards")
}

func runSim(cmd *cobra.Command, args []string) error {
	if simCapacity < 0 {
		return fmt.Errorf("invalid capacity %d", simCapacity)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bus, err := newSimBus(simDevices, stretchUS)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	core.ClearBusTrace()

	busCfg := core.DefaultSoftI2CConfig()
	busCfg.DelayMicros = cfg.Bus.DelayUS
	busCfg.ClockStretchLimit = simStretchLimit
	i2c := core.NewSoftI2C(bus.SCL(), bus.SDA(), bus, busCfg)
	if err := i2c.Begin(); err != nil {
		return fmt.Errorf("bus did not go idle: %w", err)
	}

	found := make([]core.I2CAddress, simCapacity)
	t0 := bus.Now()
	count, scanErr := i2c.Scan(found, simCapacity)
	stored := min(count, len(found))
	fmt.Fprintf(out, "Scan: %d device(s) in %dus\n", count, bus.Now()-t0)
	for _, a := range found[:stored] {
		ack, err := i2c.Probe(a)
		fmt.Fprintf(out, "  0x%02x probe ack=%v err=%v\n", uint8(a), ack, err)
	}

	if simTrace {
		dumpTrace(out)
	}
	if scanErr != nil {
		return fmt.Errorf("scan stopped: %w", scanErr)
	}
	return nil
}

// dumpTrace prints the engine's bus trace through its debug writer.
func dumpTrace(out io.Writer) {
	core.SetDebugWriter(func(msg string) {
		fmt.Fprintln(out, msg)
	})
	defer core.SetDebugWriter(func(string) {})
	core.DumpBusTrace()
}
