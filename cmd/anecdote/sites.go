package main

import "fmt"

// Run executes the sites command.
func (c *SitesCmd) Run(deps *Dependencies) error {
	if len(deps.Config.Sites) == 0 {
		fmt.Fprintln(deps.Stdout, "No sites configured. Add sites to the config file to get started.")
		return nil
	}

	for _, sc := range deps.Config.Sites {
		svc, ok := deps.Services[sc.ID]
		if !ok {
			continue
		}
		site := svc.Site()
		fmt.Fprintf(deps.Stdout, "%s  %s  %d/page  %s\n", site.ID, site.Name, site.ItemsPerPage, site.URLTemplate)
	}

	return nil
}
