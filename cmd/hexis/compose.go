package main

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// newComposeCommands builds the docker-compose plumbing subcommands
// (up/down/logs/ps/start/stop): thin passthroughs to `docker compose`
// against the repository's compose file, with stdio wired straight through
// so output streams live.
func newComposeCommands() []*cobra.Command {
	specs := []struct {
		use   string
		short string
		args  []string
	}{
		{"up", "Start the Hexis substrate and worker containers", []string{"up", "-d"}},
		{"down", "Stop and remove the Hexis containers", []string{"down"}},
		{"logs", "Tail container logs", []string{"logs", "-f"}},
		{"ps", "List container status", []string{"ps"}},
		{"start", "Start previously created containers", []string{"start"}},
		{"stop", "Stop running containers without removing them", []string{"stop"}},
	}

	cmds := make([]*cobra.Command, 0, len(specs))
	for _, s := range specs {
		s := s
		cmds = append(cmds, &cobra.Command{
			Use:   s.use,
			Short: s.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCompose(append(s.args, args...)...)
			},
		})
	}
	return cmds
}

func runCompose(args ...string) error {
	c := exec.Command("docker", append([]string{"compose"}, args...)...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}
