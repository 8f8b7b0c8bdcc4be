package cli

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
	ms "pfeifer.dev/scurve/settings"
)

const (
	saveItem        = "Save Settings"
	defaultItem     = "Load Default Settings"
	recommendedItem = "Load Recommended Settings"
	exitItem        = "Exit"
)

func settingsItems(s *ms.ScurveSettings) []string {
	items := []string{}
	for _, name := range s.Names() {
		value, _ := s.Get(name)
		items = append(items, fmt.Sprintf("%s = %s", name, value))
	}
	return append(items, saveItem, defaultItem, recommendedItem, exitItem)
}

// editSetting prompts for a new value, validating it against a copy of s.
func editSetting(s *ms.ScurveSettings, name string) error {
	current, err := s.Get(name)
	if err != nil {
		return err
	}
	prompt := promptui.Prompt{
		Label:   name,
		Default: current,
		Validate: func(input string) error {
			candidate := *s
			return candidate.Set(name, input)
		},
	}
	result, err := prompt.Run()
	if err != nil {
		return errors.Wrap(err, "prompt failed")
	}
	return s.Set(name, result)
}

func editSettings() error {
	s := &ms.Settings
	names := s.Names()
	for {
		prompt := promptui.Select{
			Label: "Planner Settings",
			Items: settingsItems(s),
			Size:  len(names) + 4,
		}
		i, result, err := prompt.Run()
		if err != nil {
			return errors.Wrap(err, "prompt failed")
		}

		switch result {
		case saveItem:
			s.Save()
			fmt.Printf("saved to %s\n", ms.SettingsPath())
		case defaultItem:
			s.Default()
		case recommendedItem:
			s.Recommended()
		case exitItem:
			return nil
		default:
			if err := editSetting(s, names[i]); err != nil {
				if errors.Is(err, promptui.ErrInterrupt) {
					return nil
				}
				fmt.Println(errorStyle.Render(err.Error()))
			}
		}
	}
}
