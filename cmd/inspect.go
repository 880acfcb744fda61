package cmd

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

var inspectDump bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <reference>",
	Short: "Prints manifest and config of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		r := newRun(nil)
		defer func() { r.finish(err) }()

		s, err := r.inspector.Inspect(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if inspectDump {
			spew.Fdump(out, s.Reference, s.Manifest, s.Config)
			return nil
		}

		printImage(out, s.Reference.String(), s.Manifest, s.Config)
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectDump, "dump", false, "dump the decoded documents instead of a summary")
	rootCmd.AddCommand(inspectCmd)
}
