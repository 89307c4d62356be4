package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"charsheet/internal/blob"
	"charsheet/internal/core"
	"charsheet/internal/editor"
	"charsheet/internal/export"
	"charsheet/pkg/domain"
)

// withApp opens the application for a one-shot command and closes it after.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, flags, appOptions{notifier: func(*zap.Logger) core.Notifier {
		return stderrNotifier(cmd.ErrOrStderr())
	}})
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored characters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				chars, err := a.svc.ListCharacters(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(chars) == 0 {
					fmt.Fprintln(out, "No characters yet. Create one with: charsheet new <name>")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCLASS\tLEVEL")
				for _, c := range chars {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.ID, c.Name, c.Class, c.Level)
				}
				return tw.Flush()
			})
		},
	}
}

func newNewCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "new [name...]",
		Short: "Create a character from the template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				c, err := a.svc.CreateCharacter(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", c.ID, c.Name)
				return nil
			})
		},
	}
}

func newShowCmd(flags *globalFlags) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a character sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				c, st, err := load(ctx, a, args[0])
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := (export.MarkdownRenderer{}).Render(&buf, c, st); err != nil {
					return err
				}
				if raw {
					_, err := cmd.OutOrStdout().Write(buf.Bytes())
					return err
				}
				return renderMarkdown(cmd.OutOrStdout(), buf.String())
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print Markdown without terminal styling")
	return cmd
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a character with its status and exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.svc.DeleteCharacter(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var (
		formatName string
		outPath    string
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Render a character to the export store",
		Long: `Renders the stored character as PDF or Markdown and writes it to the
configured blob store under exports/<id>/. With --out the document is also
copied to a local file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				art, err := a.svc.Export(ctx, args[0], format)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %s (%d bytes)\n", art.Key, art.Size)
				if art.URL != "" {
					fmt.Fprintln(cmd.OutOrStdout(), art.URL)
				}
				if outPath == "" {
					return nil
				}
				return copyArtifact(ctx, a.blobs, art.Key, outPath)
			})
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", string(export.FormatPDF), "Export format: pdf or markdown")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Also write the document to this path")
	return cmd
}

func newExportsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exports <id>",
		Short: "List the stored exports of a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				infos, err := a.exporter.List(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(infos) == 0 {
					fmt.Fprintf(out, "No exports for %s. Create one with: charsheet export %s\n", args[0], args[0])
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tTYPE\tSIZE\tCREATED")
				for _, info := range infos {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", info.Key, info.ContentType, info.Size, info.LastModified.UTC().Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func newApplyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <id> <command...>",
		Short: "Run one editor command and save",
		Long: "Runs a single editor command against the character and saves it.\n\n" + editor.Help,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				sess, err := open(ctx, a, args[0])
				if err != nil {
					return err
				}
				defer sess.Close()
				reply, err := editor.New(sess).Execute(ctx, strings.Join(args[1:], " "))
				if editor.IsUsage(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Run \"charsheet apply --help\" for the command list.")
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if reply.Message != "" {
					fmt.Fprintln(out, reply.Message)
				}
				if reply.Markdown != "" {
					fmt.Fprint(out, reply.Markdown)
				}
				for _, v := range reply.Result.Violations {
					if v.Severity != core.SeverityLog {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", v.Severity, v.Message)
					}
				}
				if !sess.Dirty() {
					return nil
				}
				return sess.Save(ctx)
			})
		},
	}
}

func load(ctx context.Context, a *app, id string) (domain.Character, domain.Status, error) {
	c, st, found, err := a.svc.Load(ctx, id)
	if err != nil {
		return c, st, err
	}
	if !found {
		return c, st, domain.ErrNotFound{Collection: domain.CollectionCharacters, ID: id}
	}
	return c, st, nil
}

func open(ctx context.Context, a *app, id string) (*core.Session, error) {
	sess, err := a.svc.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrNotFound{Collection: domain.CollectionCharacters, ID: id}
	}
	return sess, nil
}

// copyArtifact writes the stored document to path. A failed copy removes the
// partial file.
func copyArtifact(ctx context.Context, blobs blob.Store, key, path string) error {
	_, rc, err := blobs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	defer rc.Close()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, rc)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func renderMarkdown(w io.Writer, md string) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
