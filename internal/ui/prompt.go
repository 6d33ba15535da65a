package ui

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ConfirmPrompt asks a yes/no confirmation question
func ConfirmPrompt(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, fmt.Errorf("operation cancelled by user")
		}
		return false, err
	}

	// promptui returns "y" for yes
	return result == "y", nil
}

// ConfirmDangerousAction asks for confirmation with a warning
func ConfirmDangerousAction(action string, target string) (bool, error) {
	PrintWarning("You are about to %s: %s", action, target)
	PrintWarning("This action cannot be undone!")
	fmt.Println()

	return ConfirmPrompt(fmt.Sprintf("Are you sure you want to %s", action))
}
