package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/brizzai/labportal/internal/app"
	"github.com/brizzai/labportal/internal/canvas"
	"github.com/brizzai/labportal/internal/tui"
)

func (c *cli) newCanvasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canvas",
		Short: "Manage the workflow canvases saved on this machine",
		Long: `Manage named workflow canvases. The live graph is the workspace file
(canvas.workspace, JSON or YAML); save stores it under a name, load
replaces it with a saved canvas.`,
	}

	cmd.AddCommand(
		c.newCanvasListCmd(),
		c.newCanvasStatusCmd(),
		c.newCanvasSaveCmd(),
		c.newCanvasLoadCmd(),
		c.newCanvasDeleteCmd(),
		c.newCanvasBrowseCmd(),
	)
	return cmd
}

// withCanvases runs fn with the canvas manager; only local storage is touched.
func (c *cli) withCanvases(cmd *cobra.Command, fn func(ctx context.Context, m *canvas.Manager) error) error {
	var m *canvas.Manager
	return app.Run(cmd.Context(), c.cfg, func(ctx context.Context) error {
		return fn(ctx, m)
	}, &m)
}

func (c *cli) newCanvasListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved canvases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCanvases(cmd, func(ctx context.Context, m *canvas.Manager) error {
				current, _, err := m.Reconcile(ctx)
				if err != nil {
					return err
				}
				names, err := m.List(ctx)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					pterm.Info.Println("No saved canvases.")
					return nil
				}

				data := pterm.TableData{{"Name", "Nodes", "Edges", "Current"}}
				for _, name := range names {
					doc, found, err := m.Get(ctx, name)
					if err != nil {
						return err
					}
					if !found {
						continue
					}
					marker := ""
					if name == current {
						marker = "*"
					}
					data = append(data, []string{name, strconv.Itoa(len(doc.Nodes)), strconv.Itoa(len(doc.Edges)), marker})
				}
				return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			})
		},
	}
}

func (c *cli) newCanvasStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the workspace has unsaved changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			live, err := canvas.ReadWorkspace(c.cfg.Canvas.Workspace)
			if err != nil {
				return err
			}
			return c.withCanvases(cmd, func(ctx context.Context, m *canvas.Manager) error {
				if _, _, err := m.Reconcile(ctx); err != nil {
					return err
				}
				state, err := m.State(ctx, live)
				if err != nil {
					return err
				}
				name, _, err := m.Current(ctx)
				if err != nil {
					return err
				}

				switch state {
				case canvas.NoCurrentDocument:
					if live.IsEmpty() {
						pterm.Info.Println("No canvas selected and the workspace is empty.")
					} else {
						pterm.Warning.Println("No canvas selected; the workspace graph has not been saved.")
					}
				case canvas.CurrentDocumentClean:
					pterm.Success.Printfln("%s is up to date.", pterm.LightGreen(name))
				case canvas.CurrentDocumentDirty:
					pterm.Warning.Printfln("%s has unsaved changes.", pterm.LightYellow(name))
				}
				return nil
			})
		},
	}
}

func (c *cli) newCanvasSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [name]",
		Short: "Save the workspace graph, under the current name by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			live, err := canvas.ReadWorkspace(c.cfg.Canvas.Workspace)
			if err != nil {
				return err
			}
			return c.withCanvases(cmd, func(ctx context.Context, m *canvas.Manager) error {
				current, ok, err := m.Reconcile(ctx)
				if err != nil {
					return err
				}

				name := current
				if len(args) == 1 {
					name = args[0]
				} else if !ok {
					return fmt.Errorf("no canvas selected, pass a name: labportal canvas save <name>")
				}

				if name != current {
					exists, err := m.Exists(ctx, name)
					if err != nil {
						return err
					}
					if exists {
						yes, err := c.confirm(fmt.Sprintf("Overwrite the saved canvas %q?", name))
						if err != nil {
							return err
						}
						if !yes {
							pterm.Info.Println("Nothing saved.")
							return nil
						}
					}
				}

				if err := m.Save(ctx, name, live); err != nil {
					return fmt.Errorf("failed to save %q: %w", name, err)
				}
				pterm.Success.Printfln("Saved %s (%d nodes, %d edges)", pterm.LightGreen(name), len(live.Nodes), len(live.Edges))
				return nil
			})
		},
	}
}

func (c *cli) newCanvasLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <name>",
		Short: "Replace the workspace graph with a saved canvas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path := c.cfg.Canvas.Workspace
			live, err := canvas.ReadWorkspace(path)
			if err != nil {
				return err
			}
			return c.withCanvases(cmd, func(ctx context.Context, m *canvas.Manager) error {
				exists, err := m.Exists(ctx, name)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("canvas %q not found", name)
				}

				dirty, err := m.HasUnsavedChanges(ctx, live)
				if err != nil {
					return err
				}
				if dirty {
					yes, err := c.confirm(fmt.Sprintf("The workspace has unsaved changes. Discard them and load %q?", name))
					if err != nil {
						return err
					}
					if !yes {
						pterm.Info.Println("Nothing loaded.")
						return nil
					}
				}

				g, err := m.Load(ctx, name)
				if err != nil {
					return err
				}
				if err := canvas.WriteWorkspace(path, g); err != nil {
					return err
				}
				pterm.Success.Printfln("Loaded %s into %s", pterm.LightGreen(name), path)
				return nil
			})
		},
	}
}

func (c *cli) newCanvasDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved canvas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return c.withCanvases(cmd, func(ctx context.Context, m *canvas.Manager) error {
				exists, err := m.Exists(ctx, name)
				if err != nil {
					return err
				}
				if !exists {
					pterm.Info.Printfln("Canvas %q does not exist.", name)
					return nil
				}

				yes, err := c.confirm(fmt.Sprintf("Delete %q? This cannot be undone.", name))
				if err != nil {
					return err
				}
				if !yes {
					return nil
				}
				if err := m.Delete(ctx, name); err != nil {
					return err
				}
				pterm.Success.Printfln("Deleted %s", name)
				return nil
			})
		},
	}
}

func (c *cli) newCanvasBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse saved canvases interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var m *canvas.Manager
			var guard *canvas.UnloadGuard
			return app.Run(cmd.Context(), c.cfg, func(ctx context.Context) error {
				if _, _, err := m.Reconcile(ctx); err != nil {
					return err
				}
				return tui.Run(ctx, m, guard, c.cfg.Canvas.Workspace)
			}, &m, &guard)
		},
	}
}
