package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/cubeconv/pkg/compression"
	"github.com/ajitpratap0/cubeconv/pkg/remap"
)

func newRemapCommand() *cobra.Command {
	var intrinsicsFile, output string
	var camera, level int

	cmd := &cobra.Command{
		Use:   "remap",
		Short: "Generate a remap table from a camera description",
		Long: `Generate the per-pixel direction table of one camera. The table format
follows the output extension: .bin is raw float32, .zst and .lz4 are
compressed.

Example:
  cubeconv remap --intrinsics cameras.toml --camera 0 --output remap_camera00.bin.zst`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := remap.LoadIntrinsics(intrinsicsFile)
			if err != nil {
				return err
			}
			c, err := in.Camera(camera)
			if err != nil {
				return err
			}
			table, err := remap.BuildCameraTable(c)
			if err != nil {
				return err
			}
			if err := remap.SaveTable(output, table, compression.Level(level)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %dx%d %s table to %s\n", table.Width, table.Height, c.Model, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&intrinsicsFile, "intrinsics", "i", "", "TOML camera description (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Table file to write (required)")
	cmd.Flags().IntVar(&camera, "camera", 0, "Camera index in the description")
	cmd.Flags().IntVar(&level, "level", int(compression.Default), "Compression level (1 fastest, 9 best)")
	_ = cmd.MarkFlagRequired("intrinsics")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
