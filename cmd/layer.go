package cmd

import (
	"io"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
)

var (
	layerProgress bool
	layerTree     bool
)

var layerCmd = &cobra.Command{
	Use:   "layer <reference> <index|digest>",
	Short: "Lists the filesystem entries of one layer of an image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var wrapBody func(io.ReadCloser, int64) io.ReadCloser
		if layerProgress {
			wrapBody = func(body io.ReadCloser, size int64) io.ReadCloser {
				bar := pb.New64(size).Set(pb.Bytes, true)
				bar.SetWriter(cmd.ErrOrStderr())
				bar.SetWidth(50)
				bar.Start()
				return bar.NewProxyReader(body)
			}
		}

		r := newRun(wrapBody)
		defer func() { r.finish(err) }()

		s, err := r.inspector.Inspect(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		i, err := s.FindLayer(args[1])
		if err != nil {
			return err
		}

		c, err := s.Layer(cmd.Context(), i)
		if err != nil {
			return err
		}

		if layerTree {
			printTree(cmd.OutOrStdout(), c)
		} else {
			printCatalog(cmd.OutOrStdout(), c)
		}

		return nil
	},
}

func init() {
	layerCmd.Flags().BoolVar(&layerProgress, "progress", false, "show a progress bar while the layer is downloaded")
	layerCmd.Flags().BoolVar(&layerTree, "tree", false, "print the entries as a tree")
	rootCmd.AddCommand(layerCmd)
}
