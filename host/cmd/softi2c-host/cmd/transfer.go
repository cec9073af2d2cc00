package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	xferAddr string
	xferReg  string
	xferData string
	readLen  int
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read bytes from a device",
	Long: `Write the optional register bytes, then read --len bytes after a
repeated start.

Examples:
  softi2c-host read --addr 0x68 --reg 00 --len 7
  softi2c-host read --addr 0x50 --len 2`,
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write bytes to a device",
	Long: `Send --data to the device in a single transaction.

Example:
  softi2c-host write --addr 0x50 --data 10cafe`,
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)

	readCmd.Flags().StringVarP(&xferAddr, "addr", "a", "", "device address (e.g. 0x68)")
	readCmd.Flags().StringVarP(&xferReg, "reg", "r", "", "register bytes to write first (hex)")
	readCmd.Flags().IntVarP(&readLen, "len", "l", 1, "number of bytes to read")
	readCmd.MarkFlagRequired("addr")

	writeCmd.Flags().StringVarP(&xferAddr, "addr", "a", "", "device address (e.g. 0x50)")
	writeCmd.Flags().StringVarP(&xferData, "data", "x", "", "bytes to write (hex)")
	writeCmd.MarkFlagRequired("addr")
	writeCmd.MarkFlagRequired("data")
}

// parseHex accepts "0a1b", "0x0a1b" and "0a 1b".
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(s, " ", ""), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

func runRead(cmd *cobra.Command, args []string) error {
	addr, err := parseAddr(xferAddr)
	if err != nil {
		return err
	}
	reg, err := parseHex(xferReg)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := s.client.Read(cmd.Context(), s.oid(), addr, reg, readLen)
	if err != nil {
		return fmt.Errorf("read 0x%02x: %w", addr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "0x%02x: % x\n", addr, data)
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	addr, err := parseAddr(xferAddr)
	if err != nil {
		return err
	}
	data, err := parseHex(xferData)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.Write(cmd.Context(), s.oid(), addr, data); err != nil {
		return fmt.Errorf("write 0x%02x: %w", addr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "0x%02x: wrote %d byte(s)\n", addr, len(data))
	return nil
}
