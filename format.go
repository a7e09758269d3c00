package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Chris-Boho/stingray-vrm-sub000/services/vrm"
)

var formatInPlace bool

func init() {
	formatCmd.Flags().BoolVarP(&formatInPlace, "write", "w", false, "write the result back to the file")
	rootCmd.AddCommand(formatCmd)
}

var formatCmd = &cobra.Command{
	Use:   "fmt FILE",
	Short: "Re-render a document in canonical form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		out, warnings, err := format(string(raw))
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), w.String())
		}
		if formatInPlace {
			return os.WriteFile(args[0], []byte(out), info.Mode().Perm())
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

// format parses raw and renders it back. Components that failed to parse are
// dropped from the output and reported as warnings.
func format(raw string) (string, []vrm.Warning, error) {
	doc, warnings, err := vrm.ParseDocument(raw)
	if err != nil {
		return "", nil, err
	}
	return vrm.RenderDocument(doc), warnings, nil
}
