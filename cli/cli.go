package cli

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
	ms "pfeifer.dev/scurve/settings"
)

func Handle() {
	ms.Settings.LoadWithRetries(1)

	cmd := &cli.Command{
		Commands: []*cli.Command{
			{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Pick an action from a menu",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return interactive(ctx)
				},
			},
			planCommand(),
			plotCommand(),
			simulateCommand(),
			replayCommand(),
			{
				Name:    "settings",
				Aliases: []string{"s"},
				Usage:   "Edit the persisted planner settings",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return editSettings()
				},
			},
			{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Jog a simulated axis in a live terminal view",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return watch()
				},
			},
		},
		Name:  "scurve",
		Usage: "Plan and simulate jerk-limited single axis motion",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
