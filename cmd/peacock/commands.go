package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/m5trevino/peacock-mem/internal/files"
	"github.com/m5trevino/peacock-mem/internal/search"
	"github.com/m5trevino/peacock-mem/internal/store"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import Claude or ChatGPT export files",
		Long: `Import one or more JSON exports. The format of each file is detected
from its structure: Claude conversations, ChatGPT conversations or Claude
projects. Files that fail are listed; the command fails only when every
file failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				sum, err := a.services.Importer().ImportFiles(cmd.Context(), args)
				if jsonOutput {
					if perr := printJSON(cmd.OutOrStdout(), sum); perr != nil {
						return perr
					}
				} else {
					renderBatch(cmd.OutOrStdout(), sum)
				}
				return err
			})
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file>",
		Short: "Describe the structure of an export without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				an, err := a.services.Importer().AnalyzeFile(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), an)
				}
				renderAnalysis(cmd.OutOrStdout(), args[0], an)
				return nil
			})
		},
	}
}

func newAddCmd() *cobra.Command {
	var (
		disposition string
		project     string
		gitProject  bool
		include     []string
	)
	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Add files or directories to memory",
		Long: `Add local files. Directories are walked recursively, honoring .gitignore
and skipping binary files.

Examples:
  peacock add main.go --disposition Codebase
  peacock add ./src --git-project --include '**/*.go'
  peacock add ideas.md --disposition idea --project garden`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ok := store.ParseDisposition(disposition)
			if !ok {
				return fmt.Errorf("unknown disposition %q", disposition)
			}
			return withApp(cmd, func(a *app) error {
				rep, err := a.services.Files().AddPaths(cmd.Context(), args, files.Options{
					Disposition: d,
					Project:     project,
					GitProject:  gitProject,
					Include:     include,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), rep)
				}
				renderReport(cmd.OutOrStdout(), rep)
				if len(rep.Added) == 0 && len(rep.Failed) > 0 {
					return fmt.Errorf("no files added")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&disposition, "disposition", "d", string(store.NoDisposition), "Codebase, Plan/Brainstorm, Idea, Note, man-page or None")
	cmd.Flags().StringVarP(&project, "project", "p", "", "store in this project instead of global files")
	cmd.Flags().BoolVar(&gitProject, "git-project", false, "name the project after the enclosing git repository")
	cmd.Flags().StringSliceVar(&include, "include", nil, "only add files matching these globs (directories only)")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		types []string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memory by meaning",
		Long: `Search every collection, or only the given document types.

Types: codebase, conversations, ideas, brainstorm, notes, manpages, projects.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := make([]search.Category, 0, len(types))
			for _, t := range types {
				c, err := search.ParseCategory(t)
				if err != nil {
					return err
				}
				cats = append(cats, c)
			}
			return withApp(cmd, func(a *app) error {
				svc := a.services.Search()
				var (
					results []search.SearchResult
					err     error
				)
				switch len(cats) {
				case 0:
					results, err = svc.SearchAll(cmd.Context(), args[0], limit)
				case 1:
					results, err = svc.SearchByType(cmd.Context(), args[0], cats[0], limit)
				default:
					results, err = svc.SearchCategories(cmd.Context(), args[0], cats, limit)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), results)
				}
				renderSearch(cmd.OutOrStdout(), args[0], results)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "restrict to these document types (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [type]",
		Short: "List every document of a type, or the types with their counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return withApp(cmd, func(a *app) error {
					st, err := a.services.Search().Stats(cmd.Context())
					if err != nil {
						return err
					}
					if jsonOutput {
						return printJSON(cmd.OutOrStdout(), st.ByType)
					}
					renderCategories(cmd.OutOrStdout(), st)
					return nil
				})
			}
			c, err := search.ParseCategory(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				items, err := a.services.Search().ListByType(cmd.Context(), c)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), items)
				}
				renderItems(cmd.OutOrStdout(), c, items)
				return nil
			})
		},
	}
}

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects with their item counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app) error {
				ps, err := a.services.Search().ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), ps)
				}
				renderProjects(cmd.OutOrStdout(), ps)
				return nil
			})
		},
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				c, err := a.store.CreateProject(cmd.Context(), args[0], description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s created %s\n", okStyle.Render("✓"), c.Name)
				return nil
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "project description")
	cmd.AddCommand(create)
	return cmd
}

func newProjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project <name>",
		Short: "Show every document of one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				pc, err := a.services.Search().ProjectContents(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), pc)
				}
				renderProjectContents(cmd.OutOrStdout(), pc)
				return nil
			})
		},
	}
}

func newRecentCmd() *cobra.Command {
	var (
		days  int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show documents created in the last few days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			return withApp(cmd, func(a *app) error {
				items, err := a.services.Search().Recent(cmd.Context(), time.Duration(days)*24*time.Hour, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), items)
				}
				renderRecent(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "how far back to look")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum items, 0 for all")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the contents of memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app) error {
				st, err := a.services.Search().Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), st)
				}
				renderStats(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a document or a whole collection",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "item <collection> <id>",
			Short: "Delete one document",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(a *app) error {
					if !a.store.DeleteItem(cmd.Context(), args[0], args[1]) {
						return fmt.Errorf("%s/%s: %w", args[0], args[1], store.ErrNotFound)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s/%s\n", okStyle.Render("✓"), args[0], args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "collection <name>",
			Short: "Delete a collection and everything in it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(a *app) error {
					if !a.store.DeleteCollection(cmd.Context(), args[0]) {
						return fmt.Errorf("%s: %w", args[0], store.ErrNotFound)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s deleted collection %s\n", okStyle.Render("✓"), args[0])
					return nil
				})
			},
		},
	)
	return cmd
}
