package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/probe/internal/backend"
	"github.com/born-ml/probe/internal/scenario"
	"github.com/born-ml/probe/internal/tensor"
)

func addFixedCmd() *cli.Command {
	return &cli.Command{
		Name:  "add-fixed",
		Usage: "Add two zero vectors on the CPU and backpropagate a zero seed, 10 times",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, func(ctx context.Context, r *scenario.Runner) error {
				res, err := r.AddFixed(ctx)
				if err != nil {
					return err
				}
				return res.Close()
			})
		},
	}
}

func addChainedCmd() *cli.Command {
	return &cli.Command{
		Name:  "add-chained",
		Usage: "Like add-fixed, with the sum added to itself before backpropagation",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, func(ctx context.Context, r *scenario.Runner) error {
				res, err := r.AddChained(ctx)
				if err != nil {
					return err
				}
				return res.Close()
			})
		},
	}
}

func addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Run the add-fixed loop on the given device (sizes from --iterations and config)",
		ArgsUsage: "<device>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			device, err := deviceArg(cmd)
			if err != nil {
				return err
			}
			return run(ctx, func(ctx context.Context, r *scenario.Runner) error {
				res, err := r.AddOnDevice(ctx, device)
				if err != nil {
					return err
				}
				return res.Close()
			})
		},
	}
}

func resnetCmd() *cli.Command {
	return &cli.Command{
		Name:      "resnet",
		Usage:     "Classify the sample image with a pretrained ResNet",
		ArgsUsage: "<device>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			device, err := deviceArg(cmd)
			if err != nil {
				return err
			}
			return run(ctx, func(ctx context.Context, r *scenario.Runner) error {
				res, err := r.Classify(ctx, device)
				if err != nil {
					return err
				}
				r.Log.Info("classified", "device", res.Device.String(), "class", res.Class)
				return res.Close()
			})
		},
	}
}

func devicesCmd() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List compiled-in backends and whether they can be used",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w := cmd.Root().Writer
			for _, name := range backend.Names() {
				dev := tensor.MustParseDevice(name)
				status := "unavailable"
				if backend.Available(dev) {
					status = "available"
				}
				if _, err := fmt.Fprintf(w, "%-8s %s\n", dev, status); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func deviceArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("%s: expected exactly one <device> argument, got %d", cmd.Name, cmd.Args().Len())
	}
	return cmd.Args().First(), nil
}
