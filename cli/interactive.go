package cli

import (
	"context"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
)

func interactive(ctx context.Context) error {
	prompt := promptui.Select{
		Label: "Select Action",
		Items: []string{"Watch", "Settings", "Replay Last Trace"},
	}

	_, result, err := prompt.Run()
	if err != nil {
		return errors.Wrap(err, "prompt failed")
	}

	switch result {
	case "Watch":
		return watch()
	case "Settings":
		return editSettings()
	case "Replay Last Trace":
		return replay(ctx, "")
	}
	return nil
}
