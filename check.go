package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Chris-Boho/stingray-vrm-sub000/services/editor"
	"github.com/Chris-Boho/stingray-vrm-sub000/services/vrm"
)

var strictCheck bool

func init() {
	checkCmd.Flags().BoolVar(&strictCheck, "strict", false, "fail when any warning or finding is reported")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Report parse warnings, dangling connections and duplicate ids",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		findings, err := check(cmd.OutOrStdout(), string(raw))
		if err != nil {
			return err
		}
		if strictCheck && findings > 0 {
			return fmt.Errorf("%s: %d findings", args[0], findings)
		}
		return nil
	},
}

// check writes a YAML diagnostics report for raw and returns the number of
// findings. A structural parse error is returned as is.
func check(w io.Writer, raw string) (int, error) {
	doc, warnings, err := vrm.ParseDocument(raw)
	if err != nil {
		return 0, err
	}

	diag := editor.Diagnostics{
		Dangling:   vrm.FindDanglingConnections(doc),
		Duplicates: vrm.FindDuplicateIDs(doc),
		Warnings:   warnings,
	}
	if diag.Warnings == nil {
		diag.Warnings = []vrm.Warning{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(diag); err != nil {
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return len(diag.Dangling) + len(diag.Duplicates) + len(diag.Warnings), nil
}
