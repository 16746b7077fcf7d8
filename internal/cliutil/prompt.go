package cliutil

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

func wrapPromptErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		return ErrAborted
	}
	return err
}

// PromptInput asks for free text, falling back to defaultValue on Enter.
func PromptInput(label, defaultValue string) (string, error) {
	p := promptui.Prompt{Label: label, Default: defaultValue}
	result, err := p.Run()
	return result, wrapPromptErr(err)
}

// PromptRequired asks for free text that must not be empty.
func PromptRequired(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("value required")
			}
			return nil
		},
	}
	result, err := p.Run()
	return result, wrapPromptErr(err)
}

// PromptPort asks for a TCP/UNIX listen address's port, 1-65535.
func PromptPort(label string, defaultValue int) (int, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(defaultValue),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("must be a valid integer")
			}
			if n < 1 || n > 65535 {
				return fmt.Errorf("must be between 1 and 65535")
			}
			return nil
		},
	}
	result, err := p.Run()
	if err != nil {
		return 0, wrapPromptErr(err)
	}
	n, _ := strconv.Atoi(result)
	return n, nil
}

// PromptConfirm asks a yes/no question.
func PromptConfirm(label string, defaultYes bool) (bool, error) {
	defaultStr := "y/N"
	if defaultYes {
		defaultStr = "Y/n"
	}
	p := promptui.Prompt{Label: fmt.Sprintf("%s [%s]", label, defaultStr), IsConfirm: true}
	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if result == "" {
			return defaultYes, nil
		}
		return false, err
	}
	return result == "y" || result == "Y" || result == "yes", nil
}
