package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var dictRaw bool

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Print the firmware message dictionary",
	RunE:  runDict,
}

func init() {
	rootCmd.AddCommand(dictCmd)
	dictCmd.Flags().BoolVar(&dictRaw, "raw", false, "print the JSON as downloaded")
}

func runDict(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if dictRaw {
		fmt.Fprintf(out, "%s\n", s.client.RawDictionary())
		return nil
	}

	d := s.client.Dictionary()
	fmt.Fprintf(out, "Version: %s\n", d.Version)

	fmt.Fprintln(out, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(out, "  %s = %s\n", k, d.Config[k])
	}
	for _, section := range []struct {
		title string
		ids   map[string]int
	}{{"Commands", d.Commands}, {"Responses", d.Responses}} {
		fmt.Fprintf(out, "\n%s (%d):\n", section.title, len(section.ids))
		sigs := sortedKeys(section.ids)
		sort.SliceStable(sigs, func(i, j int) bool {
			return section.ids[sigs[i]] < section.ids[sigs[j]]
		})
		for _, sig := range sigs {
			fmt.Fprintf(out, "  [%d] %s\n", section.ids[sig], sig)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
