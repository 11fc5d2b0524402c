package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/oy3o/lmarshal"
	"github.com/oy3o/lmarshal/wire"
)

func newConvertCmd(g *globalFlags) *cobra.Command {
	var (
		ff     formatFlags
		stream bool
	)
	cmd := &cobra.Command{
		Use:   "convert <input> [output]",
		Short: "Check a tree and re-encode it in another format",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if stream {
				return convertStream(cmd, cfg, args, ff)
			}
			tree, in, err := readTree(cmd, args[0], ff.from)
			if err != nil {
				return err
			}
			stats, err := lmarshal.Inspect(tree, cfg)
			if err != nil {
				return err
			}
			loggerFromContext(cmd.Context()).Debug("checked tree",
				zap.Int("objects", stats.Objects), zap.Int("references", stats.References))
			return writeTree(cmd, outputPath(args), ff.to, in, tree)
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&stream, "stream", false, "read and write length-prefixed streams of trees")
	return cmd
}

// convertStream checks every frame of a tree stream and re-encodes it frame by frame.
func convertStream(cmd *cobra.Command, cfg lmarshal.Config, args []string, ff formatFlags) (err error) {
	in, err := pickFormat(ff.from, args[0])
	if err != nil {
		return err
	}
	out := outputPath(args)
	f, err := outputFormat(ff.to, out, in)
	if err != nil {
		return err
	}
	dst, err := openOutput(cmd, out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := wire.NewStreamWriter(dst, f)
	if err != nil {
		return err
	}
	if _, err := readStream(cmd, args[0], in.Name(), func(_ int, tree any) error {
		if _, err := lmarshal.Inspect(tree, cfg); err != nil {
			return err
		}
		w.WriteTree(tree)
		return w.Err()
	}); err != nil {
		return err
	}
	n, err := w.Result()
	loggerFromContext(cmd.Context()).Debug("wrote stream",
		zap.Int("frames", w.Frames()), zap.Int64("bytes", n), zap.String("format", f.Name()))
	return err
}

func newInspectCmd(g *globalFlags) *cobra.Command {
	var (
		from   string
		stream bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Check a tree and print its statistics as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			var report any
			if stream {
				var all []lmarshal.Stats
				_, err := readStream(cmd, args[0], from, func(_ int, tree any) error {
					stats, err := lmarshal.Inspect(tree, cfg)
					all = append(all, stats)
					return err
				})
				if err != nil {
					return err
				}
				report = all
			} else {
				tree, _, err := readTree(cmd, args[0], from)
				if err != nil {
					return err
				}
				if report, err = lmarshal.Inspect(tree, cfg); err != nil {
					return err
				}
			}
			out, err := yaml.Marshal(report)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "input format (default: from the file extension)")
	cmd.Flags().BoolVar(&stream, "stream", false, "read a length-prefixed stream of trees and print a list of statistics")
	return cmd
}

func newFlattenCmd(g *globalFlags) *cobra.Command {
	var ff formatFlags
	cmd := &cobra.Command{
		Use:   "flatten <input> [output]",
		Short: "Join nested mapping keys with the configured flat_dict_key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			tree, in, err := readTree(cmd, args[0], ff.from)
			if err != nil {
				return err
			}
			m, err := rootMapping(tree)
			if err != nil {
				return err
			}
			flat, err := lmarshal.Flatten(m, cfg.FlatDictKey)
			if err != nil {
				return err
			}
			return writeTree(cmd, outputPath(args), ff.to, in, flat)
		},
	}
	ff.register(cmd)
	return cmd
}

func newUnflattenCmd(g *globalFlags) *cobra.Command {
	var ff formatFlags
	cmd := &cobra.Command{
		Use:   "unflatten <input> [output]",
		Short: "Split flat mapping keys on the configured flat_dict_key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			tree, in, err := readTree(cmd, args[0], ff.from)
			if err != nil {
				return err
			}
			m, err := rootMapping(tree)
			if err != nil {
				return err
			}
			nested, err := lmarshal.Unflatten(m, cfg.FlatDictKey)
			if err != nil {
				return err
			}
			return writeTree(cmd, outputPath(args), ff.to, in, nested)
		},
	}
	ff.register(cmd)
	return cmd
}

func rootMapping(tree any) (map[string]any, error) {
	m, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root is %T, want a mapping", lmarshal.ErrMalformedTree, tree)
	}
	return m, nil
}
