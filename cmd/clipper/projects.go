package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mahira-clipper/internal/projects"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "list or delete worker-created projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "list projects, newest first",
	Args:  cobra.NoArgs,
	RunE:  doProjectsList,
}

var projectsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "print one project with its clips",
	Args:  cobra.ExactArgs(1),
	RunE:  doProjectsShow,
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "delete project folders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doProjectsDelete,
}

func init() {
	projectsListCmd.Flags().BoolVar(&flagJSON, "json", false, "print projects as JSON")
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsShowCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
}

func catalog() *projects.Catalog {
	return projects.NewCatalog(paths.ProjectsDir, paths.WorkerDir, logger)
}

func doProjectsList(cmd *cobra.Command, _ []string) error {
	c := catalog()
	list, err := c.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("no projects in "+c.Dir()))
		return nil
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Projects (%d)", len(list))))
	for _, p := range list {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		fmt.Fprintf(out, "%s  %s  %s\n",
			truncateRunes(name, 40),
			mutedStyle.Render(fmt.Sprintf("%d clip(s)", len(p.Clips))),
			mutedStyle.Render(p.UpdatedAt),
		)
		fmt.Fprintln(out, mutedStyle.Render("  "+p.ID+"  "+p.Folder))
	}
	return nil
}

func doProjectsShow(cmd *cobra.Command, args []string) error {
	project, err := catalog().Get(args[0])
	if err != nil {
		return fmt.Errorf("loading project %s: %w", args[0], err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(project)
}

func doProjectsDelete(cmd *cobra.Command, args []string) error {
	c := catalog()
	for _, id := range args {
		if err := c.Delete(id); err != nil {
			return fmt.Errorf("deleting project %s: %w", id, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("deleted ")+id)
	}
	return nil
}
