package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ritu-thombre99/catalyst/core/artifact"
)

func inspectCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Decode a staging artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return watchArtifact(cmd.OutOrStdout(), args[0])
			}
			return printArtifact(cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-decode whenever the file changes")

	return cmd
}

func printArtifact(out io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	art, hash, err := artifact.Read(f)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}

	canonical, err := art.Canonicalize()
	if err != nil {
		return err
	}
	canonicalHash, err := canonical.Hash()
	if err != nil {
		return err
	}

	created := time.Unix(0, int64(art.Header.CreatedAt)).UTC()
	fmt.Fprintf(out, "target:    %s\n", art.Target)
	fmt.Fprintf(out, "compiler:  %s\n", art.Header.Compiler)
	fmt.Fprintf(out, "created:   %s\n", created.Format(time.RFC3339))
	fmt.Fprintf(out, "digest:    blake2b:%x\n", hash)
	fmt.Fprintf(out, "canonical: sha256:%x\n", canonicalHash)

	if len(art.Mappings) > 0 {
		fmt.Fprintf(out, "source map (%d entries):\n", len(art.Mappings))
		for _, m := range art.Mappings {
			fmt.Fprintf(out, "  %s:%d -> %s at %s:%d\n",
				filepath.Base(m.GeneratedFile), m.GeneratedLine, m.Function, m.File, m.Line)
		}
	}

	fmt.Fprintln(out, art.Report.Summary())
	for _, o := range art.Report.Outcomes {
		if o.Reason != "" {
			fmt.Fprintf(out, "  %-4s %-10s %s (%s)\n", o.Statement, o.Function, o.Strategy, o.Reason)
		} else {
			fmt.Fprintf(out, "  %-4s %-10s %s\n", o.Statement, o.Function, o.Strategy)
		}
	}
	return nil
}

// watchArtifact re-decodes the artifact whenever it changes on disk, for
// the edit/re-stage loop. The watch sits on the directory rather than the
// file: re-staging replaces the file, which would drop a watch held on the
// old inode.
func watchArtifact(out io.Writer, path string) error {
	if err := printArtifact(out, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			fmt.Fprintf(out, "\n-- %s --\n", time.Now().Format(time.TimeOnly))
			if err := printArtifact(out, path); err != nil {
				// A re-staging run may still be mid-write; the next
				// event re-reads.
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", werr)
		}
	}
}
