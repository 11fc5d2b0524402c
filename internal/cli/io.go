package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oy3o/lmarshal/wire"
)

// stdio is the path naming standard input or output.
const stdio = "-"

type formatFlags struct {
	from, to string
}

func (f *formatFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "input format (default: from the file extension)")
	cmd.Flags().StringVar(&f.to, "to", "", "output format (default: from the file extension, or the input format)")
}

func pickFormat(name, path string) (wire.Format, error) {
	if name != "" {
		return wire.Lookup(name)
	}
	if path == stdio || path == "" {
		return nil, fmt.Errorf("%w: cannot infer the format of standard input or output", wire.ErrUnknownFormat)
	}
	return wire.ForPath(path)
}

func readTree(cmd *cobra.Command, path, formatName string) (any, wire.Format, error) {
	f, err := pickFormat(formatName, path)
	if err != nil {
		return nil, nil, err
	}
	var data []byte
	if path == stdio {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, nil, err
	}
	tree, err := f.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	loggerFromContext(cmd.Context()).Sugar().Debugf("read %d bytes of %s from %s", len(data), f.Name(), path)
	return tree, f, nil
}

// outputFormat picks the format written to path. Without an explicit or inferable
// output format the input format is reused.
func outputFormat(formatName, path string, input wire.Format) (wire.Format, error) {
	if formatName != "" || (path != "" && path != stdio) {
		return pickFormat(formatName, path)
	}
	return input, nil
}

// writeTree encodes tree to path, or to standard output when path is empty or "-".
func writeTree(cmd *cobra.Command, path, formatName string, input wire.Format, tree any) error {
	f, err := outputFormat(formatName, path, input)
	if err != nil {
		return err
	}
	data, err := f.Encode(tree)
	if err != nil {
		return err
	}
	if path == "" || path == stdio {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write([]byte{'\n'})
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	loggerFromContext(cmd.Context()).Sugar().Debugf("wrote %d bytes of %s to %s", len(data), f.Name(), path)
	return nil
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == stdio {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == stdio {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

// readStream decodes each frame of a tree stream and passes it to fn with its index.
func readStream(cmd *cobra.Command, path, formatName string, fn func(frame int, tree any) error) (wire.Format, error) {
	f, err := pickFormat(formatName, path)
	if err != nil {
		return nil, err
	}
	src, err := openInput(cmd, path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	r, err := wire.NewStreamReader(src, f)
	if err != nil {
		return nil, err
	}
	for {
		tree, err := r.ReadTree()
		if r.IsEOF() {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", r.Frames(), err)
		}
		if err := fn(r.Frames()-1, tree); err != nil {
			return nil, fmt.Errorf("frame %d: %w", r.Frames()-1, err)
		}
	}
	loggerFromContext(cmd.Context()).Sugar().Debugf("read %d frames (%d bytes) of %s from %s",
		r.Frames(), r.Count(), f.Name(), path)
	return f, nil
}

func outputPath(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}
